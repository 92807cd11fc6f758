package server

import (
	"mime/multipart"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postRequest is the create/update payload. Nil fields were not sent.
type postRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// readPostRequest parses a JSON or multipart post payload. The returned file, if any, must be closed.
func readPostRequest(c *fiber.Ctx) (postRequest, *service.Upload, multipart.File, error) {
	var req postRequest
	if !isMultipart(c) {
		if len(c.Body()) == 0 {
			return req, nil, nil, nil
		}
		if err := c.BodyParser(&req); err != nil {
			return req, nil, nil, models.NewValidationError("Invalid request body")
		}
		return req, nil, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return req, nil, nil, models.NewValidationError("Invalid multipart form")
	}
	if v, ok := formField(form, "title"); ok {
		req.Title = &v
	}
	if v, ok := formField(form, "content"); ok {
		req.Content = &v
	}
	upload, file, err := openUpload(c, "media")
	if err != nil {
		return req, nil, nil, models.NewValidationError("Invalid media upload")
	}
	return req, upload, file, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Feed handles GET /?search=&sorted_by=&page=
func (s *Server) Feed(c *fiber.Ctx) error {
	page, err := s.postService.Feed(c.UserContext(), service.FeedInput{
		Search:   c.Query("search"),
		SortBy:   c.Query("sorted_by"),
		Page:     c.Query("page"),
		ViewerID: currentUserID(c),
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /blog/:id/ and counts the view.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.ViewPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /blog/post/
func (s *Server) CreatePost(c *fiber.Ctx) error {
	req, upload, file, err := readPostRequest(c)
	if err != nil {
		return models.Respond(c, err)
	}
	if file != nil {
		defer file.Close()
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: currentUserID(c),
		Title:    deref(req.Title),
		Content:  deref(req.Content),
		Media:    upload,
	})
	if err != nil {
		return models.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "The blog post was successfully posted.",
		"post":    post,
	})
}

// UpdatePost handles POST /blog/update/:id/ for the post's author.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	req, upload, file, err := readPostRequest(c)
	if err != nil {
		return models.Respond(c, err)
	}
	if file != nil {
		defer file.Close()
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:  currentUserID(c),
		PostID:  id,
		Title:   req.Title,
		Content: req.Content,
		Media:   upload,
	})
	if err != nil {
		return models.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "The blog post was successfully updated.",
		"post":    post,
	})
}

// DeletePost handles POST /blog/delete/:id/ for the post's author.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	}); err != nil {
		return models.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "The blog post was successfully deleted.",
	})
}
