package models

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func respondWith(t *testing.T, status int, err error) (int, ErrorResponse) {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if status == 0 {
			return Respond(c, err)
		}
		return RespondWithError(c, status, err)
	})

	resp, rerr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, rerr)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRespond_InternalErrorHidesCause(t *testing.T) {
	cause := errors.New(`pq: relation "posts" does not exist`)

	status, body := respondWith(t, 0, NewInternalError(cause))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, CodeInternal, body.Code)
	assert.Empty(t, body.Details)
	assert.Empty(t, body.Fields)
}

func TestRespondWithError_PlainServerErrorHidesMessage(t *testing.T) {
	status, body := respondWith(t, http.StatusInternalServerError, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, CodeInternal, body.Code)
	assert.Empty(t, body.Details)
}

func TestRespond_ClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
		wantFields map[string][]string
	}{
		{
			name:       "Field Validation",
			err:        NewFieldValidationError(map[string][]string{"title": {"This field is required."}}),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeValidation,
			wantError:  "Invalid input",
			wantFields: map[string][]string{"title": {"This field is required."}},
		},
		{
			name:       "Not Found",
			err:        NewNotFoundError("Post", 9),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeNotFound,
			wantError:  "Post with ID 9 not found",
		},
		{
			name:       "Rate Limited",
			err:        NewRateLimitedError("login"),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   CodeRateLimited,
			wantError:  "Rate limit exceeded for login",
		},
		{
			name:       "Record Not Found",
			err:        gorm.ErrRecordNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  gorm.ErrRecordNotFound.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := respondWith(t, 0, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantFields, body.Fields)
			assert.Empty(t, body.Details)
		})
	}
}

func TestRespondWithError_ClientErrorKeepsWrappedDetails(t *testing.T) {
	err := &AppError{Code: CodeValidation, Message: "Invalid image", Err: errors.New("unsupported type text/plain")}

	status, body := respondWith(t, http.StatusBadRequest, err)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid image", body.Error)
	assert.Equal(t, "unsupported type text/plain", body.Details)
}
