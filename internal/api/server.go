package api

import (
	"context"
	"log/slog"
	"net/http"

	_ "github.com/dayniel-caadiang/logistics-api/docs" // register generated Swagger spec

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine  *gin.Engine
	handler *Handler
}

// NewRouter constructs a Router with the full middleware chain and all routes
// registered. Deploys triggered over HTTP run under ctx and are cancelled
// with it. When m is nil the /metrics route is omitted. Middleware order:
//  1. Recovery: panic → 500
//  2. Tracing: one span per request
//  3. RequestLogger: structured request/response logging
func NewRouter(ctx context.Context, o orchestratorService, m *Metrics, serviceName string) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(Recovery(slog.Default()))
	engine.Use(Tracing(serviceName))
	engine.Use(RequestLogger(slog.Default()))

	h := newHandler(ctx, o)

	v1 := engine.Group("/api/v1")
	v1.POST("/deploy", h.Deploy)
	v1.GET("/deploy", h.LastDeploy)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)

	if m != nil {
		engine.GET("/metrics", m.Handler())
	}

	// API docs at /api-docs/index.html
	engine.GET("/api-docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/api-docs/index.html")
	})
	engine.GET("/api-docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return &Router{engine: engine, handler: h}
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Wait blocks until background deploys have finished. Call it after the
// HTTP server has shut down and ctx has been cancelled.
func (r *Router) Wait() {
	r.handler.Wait()
}
