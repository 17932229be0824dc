package router

import (
	"github.com/gin-gonic/gin"

	"mesadesk.app/triage/internal/http/handler"
)

func QueueRouter(router *gin.RouterGroup, handler *handler.QueueHandler) {
	router.GET("/:id", handler.GetStatus)
}
