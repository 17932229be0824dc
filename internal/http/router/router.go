package router

import (
	"github.com/gin-gonic/gin"

	"mesadesk.app/triage/internal/http/handler"
)

type Handlers struct {
	Messages *handler.MessageHandler
	Queue    *handler.QueueHandler
	Tickets  *handler.TicketHandler
	Reviews  *handler.ReviewHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		MessageRouter(v1.Group("/messages"), h.Messages)
		QueueRouter(v1.Group("/queue"), h.Queue)
		TicketRouter(v1.Group("/tickets"), h.Tickets)
		ReviewRouter(v1.Group("/reviews"), h.Reviews)
	}
}
