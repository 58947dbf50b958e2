package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	session := SessionAuthMiddleware(h.cfg, h.logger)
	admin := AdminOnlyMiddleware(h.logger)

	// Учетные записи
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
	}

	// Подача обращений и публичная лента
	api.POST("/submit", session, h.submitReport)
	api.GET("/history", h.getHistory)
	api.GET("/user/reports", session, h.getUserReports)

	// Административная панель
	adminGroup := api.Group("/admin", session, admin)
	{
		adminGroup.GET("/reports", h.getAdminReports)
		adminGroup.POST("/reports/:id/update", h.updateReportStatus)
	}

	// Живой канал для дашбордов
	api.GET("/ws", h.serveWS)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
