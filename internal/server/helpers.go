package server

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "blog_id" -> "blog ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "_id"); ok {
		return strings.ReplaceAll(prefix, "_", " ") + " ID"
	}
	return strings.Map(func(r rune) rune {
		if r == '_' {
			return ' '
		}
		return unicode.ToLower(r)
	}, param)
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// formField returns a form value and whether the client sent the field at all.
func formField(form *multipart.Form, name string) (string, bool) {
	if form == nil {
		return "", false
	}
	values, ok := form.Value[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// openUpload opens the named file of a multipart request. A missing file is not an error.
// The caller closes the returned file.
func openUpload(c *fiber.Ctx, name string) (*service.Upload, multipart.File, error) {
	header, err := c.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, fiber.ErrUnprocessableEntity) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.Upload{Filename: header.Filename, Reader: f}, f, nil
}

// parseIntField reads an integer from a JSON or form body. Numbers and numeric
// strings are accepted; anything else yields 0.
func parseIntField(c *fiber.Ctx, name string) int64 {
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return 0
		}
		raw, ok := body[name]
		if !ok {
			return 0
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			var str string
			if err := json.Unmarshal(raw, &str); err != nil {
				return 0
			}
			n = json.Number(strings.TrimSpace(str))
		}
		v, err := n.Int64()
		if err != nil {
			return 0
		}
		return v
	}
	v, err := strconv.ParseInt(strings.TrimSpace(c.FormValue(name)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
