package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionCookie = "session"
	tokenIssuer   = "inkwell-api"
	tokenAudience = "inkwell-client"
	tokenTTL      = 7 * 24 * time.Hour
)

var errNoToken = errors.New("no token")

// tokenClaims is the subset of a verified token the handlers need.
type tokenClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

// generateToken creates a JWT for the given user and returns it with its expiry.
func (s *Server) generateToken(userID uint, username string) (string, time.Time, error) {
	if s.config.JWTSecret == "" {
		return "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	exp := now.Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	return signed, exp, err
}

// tokenFromRequest reads a bearer token, falling back to the session cookie.
func tokenFromRequest(c *fiber.Ctx) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.Cookies(sessionCookie)
}

// parseToken verifies signature, issuer, audience and expiry.
func (s *Server) parseToken(tokenString string) (*tokenClaims, error) {
	if tokenString == "" {
		return nil, errNoToken
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, errors.New("invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, errors.New("invalid user ID in token")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("invalid expiry claim")
	}
	jti, _ := claims["jti"].(string)

	return &tokenClaims{UserID: uint(userID), JTI: jti, ExpiresAt: exp.Time}, nil
}

// identify resolves the caller from the request, rejecting revoked tokens.
func (s *Server) identify(c *fiber.Ctx) (*tokenClaims, error) {
	claims, err := s.parseToken(tokenFromRequest(c))
	if err != nil {
		return nil, err
	}
	revoked, err := cache.IsRevoked(c.UserContext(), claims.JTI)
	if err != nil {
		// Fail open when Redis is unreachable.
		middleware.Logger.WarnContext(c.UserContext(), "revocation check failed", slog.String("error", err.Error()))
	} else if revoked {
		return nil, errors.New("token has been revoked")
	}
	return claims, nil
}

// OptionalAuth records the caller's user id when a valid token is present
// and otherwise lets the request through anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if claims, err := s.identify(c); err == nil {
			setUser(c, claims.UserID)
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUserID(c) != 0 {
			return c.Next()
		}
		claims, err := s.identify(c)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, errNoToken) {
				msg = "Authentication required"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}
		setUser(c, claims.UserID)
		return c.Next()
	}
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, userID))
}

// currentUserID returns the authenticated user's id, or 0 for anonymous callers.
func currentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string, exp time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
