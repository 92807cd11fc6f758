package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"
	"inkwell/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type likeToggleRequest struct {
	BlogID int64 `json:"blog_id" validate:"gt=0"`
}

// LikeToggle handles POST /api/like-toggle/
// Responds 201 "Liked" when a like was added and 200 "Unliked" when one was removed.
func (s *Server) LikeToggle(c *fiber.Ctx) error {
	req := likeToggleRequest{BlogID: parseIntField(c, "blog_id")}
	if fields := validation.Struct(req); fields != nil {
		return models.Respond(c, models.NewFieldValidationError(fields))
	}

	res, err := s.likeService.Toggle(c.UserContext(), currentUserID(c), uint(req.BlogID))
	if err != nil {
		return models.Respond(c, err)
	}

	if res.Liked {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":     "Liked",
			"likes_count": res.LikesCount,
		})
	}
	return c.JSON(fiber.Map{
		"message":     "Unliked",
		"likes_count": res.LikesCount,
	})
}

// CreateComment handles POST /api/blog/:blog_id/comment/
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	postID, err := c.ParamsInt("blog_id")
	if err != nil || postID <= 0 {
		return models.Respond(c, models.NewNotFoundError("Post", c.Params("blog_id")))
	}

	var req struct {
		Text string `json:"text" form:"text"`
	}
	malformed := false
	if len(c.Body()) > 0 {
		malformed = c.BodyParser(&req) != nil
	}

	if _, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:        userID,
		PostID:        uint(postID),
		Text:          req.Text,
		MalformedBody: malformed,
	}); err != nil {
		return models.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Comment created successfully",
	})
}

// ListComments handles GET /api/blog/:blog_id/comments/
func (s *Server) ListComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "blog_id")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(comments)
}

// GetUserProfile handles GET /api/users/:id/
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return models.Respond(c, err)
	}
	// Email stays private to its owner.
	if currentUserID(c) != user.ID {
		user.Email = ""
	}
	return c.JSON(user)
}
