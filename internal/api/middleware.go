package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// deployOutcomeKey is the gin context key deploy handlers use to report what
// happened to the request ("accepted", "conflict", a result status, ...).
const deployOutcomeKey = "deploy.outcome"

// Recovery returns a middleware that recovers from panics, logs the stack trace,
// and returns a 500 to the client so the agent keeps serving. A panic while
// starting a deploy never leaves the caller without a response.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", r,
					"stack", string(debug.Stack()),
					"method", c.Request.Method,
					"route", c.FullPath(),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status": "error",
					"error":  "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// Tracing returns a middleware that starts an OTEL span per request using
// otelgin. A deploy triggered over HTTP runs under that span, and
// RequestLogger tags it with the deploy outcome.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// RequestLogger returns a middleware that emits a structured slog line for
// every request. The line carries the matched route (the raw path when none
// matched) and, on deploy routes, the outcome the handler recorded. It must
// run inside Tracing so the outcome lands on the request span.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if outcome := c.GetString(deployOutcomeKey); outcome != "" {
			attrs = append(attrs, "deploy_outcome", outcome)
			trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String(deployOutcomeKey, outcome))
		}

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request", attrs...)
	}
}
