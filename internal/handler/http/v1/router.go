package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	auth := APIKeyAuthMiddleware(h.cfg, h.logger)

	// Прием инцидентов и управление жизненным циклом
	incidents := api.Group("/incidents", auth)
	{
		incidents.POST("", SignatureMiddleware(h.cfg.IngestSecret, h.logger), h.createIncident)
		incidents.GET("", h.listIncidents)
		incidents.GET("/nearby", h.findNearby)
		incidents.GET("/stats", h.getStats)
		incidents.GET("/:id", h.getIncident)
		incidents.POST("/:id/transition", h.transitionIncident)
	}

	alerts := api.Group("/alerts", auth)
	{
		alerts.GET("", h.listAlerts)
		alerts.POST("/:id/delivered", h.recordDelivery)
		alerts.POST("/:id/read", h.recordRead)
		if h.alertStream != nil {
			alerts.GET("/ws", h.alertStream.ServeWS)
		}
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
