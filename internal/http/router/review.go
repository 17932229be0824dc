package router

import (
	"github.com/gin-gonic/gin"

	"mesadesk.app/triage/internal/http/handler"
)

func ReviewRouter(router *gin.RouterGroup, handler *handler.ReviewHandler) {
	router.GET("", handler.List)
}
