package app

import (
	"gorm.io/gorm"

	"github.com/stickerlab/packsmith-backend/internal/data/repos"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

type Repos struct {
	User        repos.UserRepo
	OutboxEvent repos.OutboxEventRepo
	DeadLetter  repos.DeadLetterRepo
	Pack        repos.PackRepo
	PackItem    repos.PackItemRepo
	PackUpload  repos.PackUploadRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:        repos.NewUserRepo(db, log),
		OutboxEvent: repos.NewOutboxEventRepo(db, log),
		DeadLetter:  repos.NewDeadLetterRepo(db, log),
		Pack:        repos.NewPackRepo(db, log),
		PackItem:    repos.NewPackItemRepo(db, log),
		PackUpload:  repos.NewPackUploadRepo(db, log),
	}
}
