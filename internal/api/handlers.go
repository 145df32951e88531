package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// orchestratorService is the subset of *orchestrator.Orchestrator used by the
// HTTP handlers. Declaring it as an interface allows test doubles to be injected.
type orchestratorService interface {
	RunDeploy(ctx context.Context) (*orchestrator.DeployResult, error)
	RunDeepHealth(ctx context.Context) map[string]orchestrator.ProbeResult
	LastResult() *orchestrator.DeployResult
	IsReady() bool
	IsDeployInProgress() bool
}

type statusResponse struct {
	Status string `json:"status" example:"accepted"`
}

type deployStatusResponse struct {
	Status     string                     `json:"status,omitempty" example:"none"`
	InProgress bool                       `json:"inProgress"`
	Last       *orchestrator.DeployResult `json:"last,omitempty"`
}

type healthResponse struct {
	Status string `json:"status" example:"healthy"`
	Mode   string `json:"mode" example:"shallow"`
}

type deepHealthResponse struct {
	Status       string                              `json:"status" example:"healthy"`
	Dependencies map[string]orchestrator.ProbeResult `json:"dependencies"`
}

type readyResponse struct {
	Ready bool `json:"ready"`
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	orchestrator orchestratorService

	// baseCtx bounds background deploys; cancelling it kills the running
	// step's child process.
	baseCtx context.Context
	runs    sync.WaitGroup
}

func newHandler(baseCtx context.Context, o orchestratorService) *Handler {
	return &Handler{orchestrator: o, baseCtx: baseCtx}
}

// Wait blocks until every deploy started by Deploy has returned.
func (h *Handler) Wait() {
	h.runs.Wait()
}

// Deploy handles POST /api/v1/deploy.
// It returns 202 immediately when a new deploy run is started, 409 if one
// is already in progress, or 503 once the server is shutting down. The
// deploy runs in a background goroutine under the handler's base context,
// parented to the request's span.
//
//	@Summary		Start a deploy
//	@Description	Runs install, configure-env, collectstatic and migrate in the background.
//	@Tags			deploy
//	@Produce		json
//	@Success		202	{object}	statusResponse
//	@Failure		409	{object}	statusResponse
//	@Failure		503	{object}	statusResponse
//	@Router			/api/v1/deploy [post]
func (h *Handler) Deploy(c *gin.Context) {
	if h.baseCtx.Err() != nil {
		c.Set(deployOutcomeKey, "shutting-down")
		c.JSON(http.StatusServiceUnavailable, statusResponse{Status: "shutting-down"})
		return
	}
	if h.orchestrator.IsDeployInProgress() {
		c.Set(deployOutcomeKey, "conflict")
		c.JSON(http.StatusConflict, statusResponse{Status: orchestrator.StatusInProgress})
		return
	}

	ctx := trace.ContextWithSpan(h.baseCtx, trace.SpanFromContext(c.Request.Context()))
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		result, err := h.orchestrator.RunDeploy(ctx)
		switch {
		case errors.Is(err, orchestrator.ErrDeployInProgress):
			slog.InfoContext(ctx, "deploy request lost race with a running deploy")
		case err != nil:
			slog.ErrorContext(ctx, "deploy could not start", "err", err)
		default:
			slog.InfoContext(ctx, "deploy finished", "deploy_id", result.ID, "status", result.Status)
		}
	}()
	c.Set(deployOutcomeKey, "accepted")
	c.JSON(http.StatusAccepted, statusResponse{Status: "accepted"})
}

// LastDeploy handles GET /api/v1/deploy.
// It returns the most recent completed run, or 404 when none has finished.
//
//	@Summary	Last deploy result
//	@Tags		deploy
//	@Produce	json
//	@Success	200	{object}	deployStatusResponse
//	@Failure	404	{object}	deployStatusResponse
//	@Router		/api/v1/deploy [get]
func (h *Handler) LastDeploy(c *gin.Context) {
	resp := deployStatusResponse{
		InProgress: h.orchestrator.IsDeployInProgress(),
		Last:       h.orchestrator.LastResult(),
	}
	if resp.Last == nil {
		resp.Status = "none"
		c.JSON(http.StatusNotFound, resp)
		return
	}
	c.Set(deployOutcomeKey, resp.Last.Status)
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /health.
// It always returns 200; this is the liveness probe.
//
//	@Summary	Liveness
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Router		/health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "healthy", Mode: "shallow"})
}

// DeepHealth handles GET /health/deep.
// It probes every configured dependency and returns 200 only when all are OK.
//
//	@Summary	Dependency health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	deepHealthResponse
//	@Failure	503	{object}	deepHealthResponse
//	@Router		/health/deep [get]
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.orchestrator.RunDeepHealth(c.Request.Context())

	allOK := true
	for _, p := range probes {
		if !p.OK {
			allOK = false
			break
		}
	}

	resp := deepHealthResponse{Status: "healthy", Dependencies: probes}
	code := http.StatusOK
	if !allOK {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// Ready handles GET /ready.
// It returns 200 only after a successful deploy; 503 otherwise.
//
//	@Summary	Readiness
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	readyResponse
//	@Failure	503	{object}	readyResponse
//	@Router		/ready [get]
func (h *Handler) Ready(c *gin.Context) {
	if h.orchestrator.IsReady() {
		c.JSON(http.StatusOK, readyResponse{Ready: true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, readyResponse{Ready: false})
}
