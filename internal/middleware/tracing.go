package middleware

import (
	"errors"
	"strconv"

	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type routeParam struct {
	param string
	attr  attribute.Key
}

// routeParams lists the path parameters recorded on the server span, by route.
var routeParams = map[string]routeParam{
	"/blog/:id/":                   {"id", "blog.post_id"},
	"/blog/update/:id/":            {"id", "blog.post_id"},
	"/blog/delete/:id/":            {"id", "blog.post_id"},
	"/api/blog/:blog_id/comment/":  {"blog_id", "blog.post_id"},
	"/api/blog/:blog_id/comments/": {"blog_id", "blog.post_id"},
	"/api/users/:id/":              {"id", "blog.user_id"},
}

// Tracing starts a server span per request, continuing any trace the caller
// propagated. Once the handler has run the span is renamed after the matched
// route and tagged with the post or user the request addressed.
func Tracing() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
				attribute.String("client.address", c.IP()),
				attribute.String("user_agent.original", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		c.Set("X-Trace-ID", traceID)
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		// Errors are turned into responses by the app's error handler, after this returns.
		status := c.Response().StatusCode()
		routed := true
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
				routed = fe.Code != fiber.StatusNotFound
			}
		}
		span.SetAttributes(attribute.Int("http.response.status_code", status))

		if route := c.Route(); route != nil && routed {
			span.SetName(c.Method() + " " + route.Path)
			span.SetAttributes(attribute.String("http.route", route.Path))
			span.SetAttributes(routeAttributes(c, route.Path)...)
		}
		if uid, ok := c.Locals("userID").(uint); ok {
			span.SetAttributes(attribute.Int64("enduser.id", int64(uid)))
		}

		if status >= fiber.StatusInternalServerError {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Error, strconv.Itoa(status))
			}
		}
		return err
	}
}

func routeAttributes(c *fiber.Ctx, path string) []attribute.KeyValue {
	if path == "/" && c.Method() == fiber.MethodGet {
		return []attribute.KeyValue{
			attribute.String("blog.feed.sorted_by", c.Query("sorted_by")),
			attribute.String("blog.feed.page", c.Query("page")),
			attribute.Bool("blog.feed.search", c.Query("search") != ""),
		}
	}
	rp, ok := routeParams[path]
	if !ok {
		return nil
	}
	id, err := strconv.ParseUint(c.Params(rp.param), 10, 64)
	if err != nil {
		return nil
	}
	return []attribute.KeyValue{rp.attr.Int64(int64(id))}
}
