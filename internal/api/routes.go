package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes on the given router
func SetupRoutes(router *gin.Engine, handler *Handler, hub *Hub) {
	v1 := router.Group("/api/v1")
	{
		// System endpoints
		v1.GET("/status", handler.GetStatus)
		v1.GET("/config", handler.GetConfig)

		// Measurement loop control
		v1.GET("/measure/status", handler.MeasureStatus)
		v1.POST("/measure/start", handler.StartMeasure)
		v1.POST("/measure/stop", handler.StopMeasure)
		v1.POST("/measure/flag", handler.SetFaultFlag)
		v1.GET("/measure/history", handler.GetHistory)

		// Analysis
		v1.POST("/analyze", handler.Analyze)
		v1.GET("/analyze/history", handler.AnalyzeHistory)
		v1.POST("/analyze/upload", handler.AnalyzeUpload)

		// Lab topology and fault injection
		v1.GET("/topology", handler.GetTopology)
		v1.POST("/fault", handler.InjectFault)

		// WebSocket endpoint
		if hub != nil {
			v1.GET("/ws", ServeWebSocket(hub))
		}
	}

	// Health check endpoint (outside versioned API)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})
}
