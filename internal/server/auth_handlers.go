package server

import (
	"log/slog"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /register/ and logs the new user in.
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return models.Respond(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Register(c.UserContext(), req)
	if err != nil {
		return models.Respond(c, err)
	}

	return s.startSession(c, fiber.StatusCreated, user)
}

// Login handles POST /login/
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.Respond(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return models.Respond(c, err)
	}

	return s.startSession(c, fiber.StatusOK, user)
}

// Logout handles POST /logout/. Anonymous callers get the same response.
// The cookie is always cleared. A token that cannot be revoked stays valid
// until it expires.
func (s *Server) Logout(c *fiber.Ctx) error {
	token := tokenFromRequest(c)
	s.clearSessionCookie(c)
	if claims, err := s.parseToken(token); err == nil {
		if err := cache.Revoke(c.UserContext(), claims.JTI, time.Until(claims.ExpiresAt)); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "token revocation failed",
				slog.String("jti", claims.JTI),
				slog.String("error", err.Error()),
			)
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

func (s *Server) startSession(c *fiber.Ctx, status int, user *models.User) error {
	token, exp, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}
	s.setSessionCookie(c, token, exp)

	return c.Status(status).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}
