package app

import (
	"github.com/gin-gonic/gin"

	"github.com/stickerlab/packsmith-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		PackHandler:    handlerset.Pack,
		AuthMiddleware: mw.Auth,
		AllowOrigins:   cfg.AllowOrigins,
	})
}
