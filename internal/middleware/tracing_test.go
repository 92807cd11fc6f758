package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prevTracer, prevProp := observability.Tracer, otel.GetTextMapPropagator()
	observability.Tracer = tp.Tracer("test")
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		observability.Tracer = prevTracer
		otel.SetTextMapPropagator(prevProp)
	})
	return rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func newTracedApp() *fiber.App {
	app := fiber.New()
	app.Use(Tracing())
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/", ok)
	app.Get("/blog/:id/", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/users/:id/", ok)
	app.Get("/api/blog/:blog_id/comments/", ok)
	app.Get("/boom", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusInternalServerError)
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return errors.New("db gone")
	})
	return app
}

func traceOne(t *testing.T, app *fiber.App, rec *tracetest.SpanRecorder, req *http.Request) (*http.Response, sdktrace.ReadOnlySpan) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	spans := rec.Ended()
	require.NotEmpty(t, spans)
	return resp, spans[len(spans)-1]
}

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantName  string
		wantAttrs map[attribute.Key]attribute.Value
		absent    []attribute.Key
	}{
		{
			name:     "Post Detail",
			path:     "/blog/42/",
			wantName: "GET /blog/:id/",
			wantAttrs: map[attribute.Key]attribute.Value{
				"http.route":                attribute.StringValue("/blog/:id/"),
				"blog.post_id":              attribute.Int64Value(42),
				"enduser.id":                attribute.Int64Value(7),
				"http.response.status_code": attribute.IntValue(200),
			},
		},
		{
			name:     "Comments Use Blog ID",
			path:     "/api/blog/9/comments/",
			wantName: "GET /api/blog/:blog_id/comments/",
			wantAttrs: map[attribute.Key]attribute.Value{
				"blog.post_id": attribute.Int64Value(9),
			},
			absent: []attribute.Key{"enduser.id"},
		},
		{
			name:     "User Profile",
			path:     "/api/users/3/",
			wantName: "GET /api/users/:id/",
			wantAttrs: map[attribute.Key]attribute.Value{
				"blog.user_id": attribute.Int64Value(3),
			},
			absent: []attribute.Key{"blog.post_id"},
		},
		{
			name:     "Non Numeric ID Is Not Recorded",
			path:     "/blog/abc/",
			wantName: "GET /blog/:id/",
			absent:   []attribute.Key{"blog.post_id"},
		},
		{
			name:     "Feed Query",
			path:     "/?sorted_by=title&page=2&search=go",
			wantName: "GET /",
			wantAttrs: map[attribute.Key]attribute.Value{
				"blog.feed.sorted_by": attribute.StringValue("title"),
				"blog.feed.page":      attribute.StringValue("2"),
				"blog.feed.search":    attribute.BoolValue(true),
			},
		},
		{
			name:     "Unknown Route Keeps Raw Path",
			path:     "/nope",
			wantName: "GET /nope",
			wantAttrs: map[attribute.Key]attribute.Value{
				"http.response.status_code": attribute.IntValue(404),
			},
			absent: []attribute.Key{"http.route"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordSpans(t)
			_, span := traceOne(t, newTracedApp(), rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantName, span.Name())
			attrs := spanAttrs(span)
			for k, v := range tt.wantAttrs {
				assert.Equal(t, v, attrs[k], "attribute %s", k)
			}
			for _, k := range tt.absent {
				_, ok := attrs[k]
				assert.False(t, ok, "attribute %s should be absent", k)
			}
		})
	}
}

func TestTracing_ServerErrorsMarkSpan(t *testing.T) {
	rec := recordSpans(t)
	app := newTracedApp()

	_, span := traceOne(t, app, rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, codes.Error, span.Status().Code)

	_, span = traceOne(t, app, rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "db gone", span.Status().Description)

	_, span = traceOne(t, app, rec, httptest.NewRequest(http.MethodGet, "/blog/1/", nil))
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracing_ContinuesPropagatedTrace(t *testing.T) {
	rec := recordSpans(t)

	req := httptest.NewRequest(http.MethodGet, "/blog/1/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	resp, span := traceOne(t, newTracedApp(), rec, req)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", resp.Header.Get("X-Trace-ID"))
}
