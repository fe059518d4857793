package settings

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"domainsync/internal/cache"
	"domainsync/internal/httpx"
	"domainsync/internal/model"
	"domainsync/internal/secrets"
	"domainsync/internal/store"
)

// Handler manages per-tenant upstream settings
type Handler struct {
	store  *store.Store
	cache  cache.ResponseCache
	cipher secrets.Cipher
}

// NewHandler creates a settings API handler
func NewHandler(st *store.Store, respCache cache.ResponseCache, cipher secrets.Cipher) *Handler {
	return &Handler{store: st, cache: respCache, cipher: cipher}
}

// SettingsView is the client-facing settings shape; the secret never
// leaves the server
type SettingsView struct {
	TenantID    int64  `json:"tenantId"`
	APIURL      string `json:"apiUrl"`
	Identifier  string `json:"identifier"`
	HasSecret   bool   `json:"hasSecret"`
	CacheTTLSec int    `json:"cacheTtlSec"`
}

// Get handles GET /api/v1/settings
func (h *Handler) Get(c *gin.Context) {
	raw := c.Query("tenantId")
	if raw == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("tenantId is required"))
		return
	}
	tenantID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || tenantID < 1 {
		httpx.FailErr(c, httpx.ErrParamInvalid("tenantId must be a positive integer"))
		return
	}

	setting, err := h.store.GetSettings(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("no upstream settings for this tenant"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load settings", err))
		return
	}

	httpx.OK(c, SettingsView{
		TenantID:    setting.TenantID,
		APIURL:      setting.APIURL,
		Identifier:  setting.Identifier,
		HasSecret:   setting.SecretEncrypted != "",
		CacheTTLSec: setting.CacheTTLSec,
	})
}

// PutRequest is the request body for a settings update
type PutRequest struct {
	TenantID    int64  `json:"tenantId" binding:"required"`
	APIURL      string `json:"apiUrl" binding:"required,url"`
	Identifier  string `json:"identifier" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
	CacheTTLSec int    `json:"cacheTtlSec"`
}

// Put handles PUT /api/v1/settings. Every update invalidates the
// tenant's cached upstream responses so stale payloads are never
// served against the new configuration.
func (h *Handler) Put(c *gin.Context) {
	var req PutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request: "+err.Error()))
		return
	}

	sealed, err := h.cipher.Encrypt(req.Secret)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to encrypt secret", err))
		return
	}

	setting := &model.UpstreamSetting{
		TenantID:        req.TenantID,
		APIURL:          req.APIURL,
		Identifier:      req.Identifier,
		SecretEncrypted: sealed,
		CacheTTLSec:     req.CacheTTLSec,
	}
	if err := h.store.UpsertSettings(c.Request.Context(), setting); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to save settings", err))
		return
	}

	if _, err := h.cache.InvalidateTenant(c.Request.Context(), req.TenantID); err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("settings saved but cache invalidation failed", err))
		return
	}

	httpx.OK(c, gin.H{"tenantId": req.TenantID})
}
