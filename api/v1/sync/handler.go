package sync

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"domainsync/internal/httpx"
	"domainsync/internal/store"
	syncsvc "domainsync/internal/sync"
	"domainsync/internal/upstream"
)

// Handler exposes the batch sync engine over HTTP
type Handler struct {
	orchestrator *syncsvc.Orchestrator
	store        *store.Store
}

// NewHandler creates a sync API handler
func NewHandler(orchestrator *syncsvc.Orchestrator, st *store.Store) *Handler {
	return &Handler{orchestrator: orchestrator, store: st}
}

// RunBatchRequest is the request body for one batch invocation
type RunBatchRequest struct {
	TenantID    int64 `json:"tenantId" binding:"required"`
	BatchNumber int   `json:"batchNumber" binding:"required"`
	BatchSize   int   `json:"batchSize" binding:"required"`
}

// RunBatch handles POST /api/v1/sync/run
func (h *Handler) RunBatch(c *gin.Context) {
	var req RunBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}

	result, err := h.orchestrator.RunBatch(c.Request.Context(), req.TenantID, req.BatchNumber, req.BatchSize)
	if err != nil {
		// A failed-but-logged batch still returns its result so the
		// caller sees the run id; pre-log failures only carry an error.
		if result != nil {
			httpx.OK(c, result)
			return
		}
		failClassified(c, err)
		return
	}

	httpx.OK(c, result)
}

// tenantIDQuery extracts the mandatory tenantId query parameter
func tenantIDQuery(c *gin.Context) (int64, *httpx.AppError) {
	raw := c.Query("tenantId")
	if raw == "" {
		return 0, httpx.ErrParamMissing("tenantId is required")
	}
	tenantID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || tenantID < 1 {
		return 0, httpx.ErrParamInvalid("tenantId must be a positive integer")
	}
	return tenantID, nil
}

// ListLogs handles GET /api/v1/sync/logs
func (h *Handler) ListLogs(c *gin.Context) {
	tenantID, appErr := tenantIDQuery(c)
	if appErr != nil {
		httpx.FailErr(c, appErr)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	logs, err := h.store.ListRunLogs(c.Request.Context(), tenantID, limit)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list sync logs", err))
		return
	}

	httpx.OK(c, logs)
}

// Overview handles GET /api/v1/sync/overview
func (h *Handler) Overview(c *gin.Context) {
	tenantID, appErr := tenantIDQuery(c)
	if appErr != nil {
		httpx.FailErr(c, appErr)
		return
	}

	overview, err := h.orchestrator.Overview(c.Request.Context(), tenantID)
	if err != nil {
		failClassified(c, err)
		return
	}

	httpx.OK(c, overview)
}

// ClearCacheRequest is the request body for a manual cache clear
type ClearCacheRequest struct {
	TenantID int64 `json:"tenantId" binding:"required"`
}

// ClearCache handles POST /api/v1/sync/cache/clear
func (h *Handler) ClearCache(c *gin.Context) {
	var req ClearCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}

	removed, err := h.orchestrator.ClearCache(c.Request.Context(), req.TenantID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to clear cache", err))
		return
	}

	httpx.OK(c, gin.H{"removed": removed})
}

// failClassified maps a classified upstream error onto the HTTP edge
func failClassified(c *gin.Context, err error) {
	if ue, ok := upstream.AsError(err); ok {
		switch ue.Kind {
		case upstream.KindConfiguration:
			httpx.FailErr(c, httpx.ErrConfigError(ue.Message, ue.Err))
		default:
			httpx.FailErr(c, httpx.ErrUpstreamError(ue.Message, ue.Err))
		}
		return
	}
	httpx.FailErr(c, httpx.ErrInternalError("sync failed", err))
}
