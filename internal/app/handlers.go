package app

import (
	"github.com/stickerlab/packsmith-backend/internal/handlers"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

type Handlers struct {
	Pack *handlers.PackHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Pack: handlers.NewPackHandler(log, serviceset.Publish),
	}
}
