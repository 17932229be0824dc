package router

import (
	"github.com/gin-gonic/gin"

	"mesadesk.app/triage/internal/http/handler"
)

func TicketRouter(router *gin.RouterGroup, handler *handler.TicketHandler) {
	router.GET("/:id/thread", handler.GetThread)
}
