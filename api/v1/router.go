package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	settingsapi "domainsync/api/v1/settings"
	syncapi "domainsync/api/v1/sync"
	"domainsync/internal/cache"
	"domainsync/internal/secrets"
	"domainsync/internal/store"
	syncsvc "domainsync/internal/sync"
)

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, orchestrator *syncsvc.Orchestrator, st *store.Store, respCache cache.ResponseCache, cipher secrets.Cipher) {
	syncHandler := syncapi.NewHandler(orchestrator, st)
	settingsHandler := settingsapi.NewHandler(st, respCache, cipher)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"code": 0, "message": "pong"})
		})

		syncGroup := v1.Group("/sync")
		{
			syncGroup.POST("/run", syncHandler.RunBatch)
			syncGroup.GET("/logs", syncHandler.ListLogs)
			syncGroup.GET("/overview", syncHandler.Overview)
			syncGroup.POST("/cache/clear", syncHandler.ClearCache)
		}

		settingsGroup := v1.Group("/settings")
		{
			settingsGroup.GET("", settingsHandler.Get)
			settingsGroup.PUT("", settingsHandler.Put)
		}
	}
}
