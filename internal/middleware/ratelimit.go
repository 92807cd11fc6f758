package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateRule is a per-caller budget of Limit requests every Window.
type RateRule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Budgets for the write endpoints.
var (
	CreatePostRule = RateRule{Name: "create_post", Limit: 5, Window: 5 * time.Minute}
	RegisterRule   = RateRule{Name: "register", Limit: 3, Window: 10 * time.Minute}
	LoginRule      = RateRule{Name: "login", Limit: 10, Window: 5 * time.Minute}
	LikeToggleRule = RateRule{Name: "like_toggle", Limit: 30, Window: time.Minute}
	CommentRule    = RateRule{Name: "create_comment", Limit: 10, Window: time.Minute}
)

// RateLimiter counts hits per rule and caller in fixed Redis windows.
// A store error lets the request through.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewRateLimiter returns a limiter for env. Development and test environments,
// or a nil client, get a limiter that allows everything.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	enabled := rdb != nil
	switch strings.ToLower(env) {
	case "", "development", "dev", "test":
		enabled = false
	}
	if rdb == nil && enabled {
		Logger.Warn("rate limiting disabled: no redis client")
	}
	return &RateLimiter{rdb: rdb, enabled: enabled}
}

// Enabled reports whether requests are counted at all.
func (l *RateLimiter) Enabled() bool {
	return l.enabled
}

// Hit records one request by caller against rule and returns the count in the
// current window along with the time until the window resets.
func (l *RateLimiter) Hit(ctx context.Context, rule RateRule, caller string) (int64, time.Duration, error) {
	key := fmt.Sprintf("rl:%s:%s", rule.Name, caller)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, rule.Window).Err(); err != nil {
			return 0, 0, err
		}
		return count, rule.Window, nil
	}

	ttl, err := l.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// The expire after the first hit was lost; start the window now.
		if err := l.rdb.Expire(ctx, key, rule.Window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = rule.Window
	}
	return count, ttl, nil
}

// Limit enforces rule on the route. Callers are keyed by user ID when
// authenticated and by remote IP otherwise.
func (l *RateLimiter) Limit(rule RateRule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.enabled {
			return c.Next()
		}

		count, ttl, err := l.Hit(c.UserContext(), rule, callerKey(c))
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, allowing request",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			return c.Next()
		}

		remaining := rule.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(rule.Limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			return models.Respond(c, models.NewRateLimitedError(rule.Name))
		}
		return c.Next()
	}
}

func callerKey(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok {
		return "user:" + strconv.FormatUint(uint64(uid), 10)
	}
	return "ip:" + c.IP()
}
