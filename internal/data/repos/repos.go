package repos

import (
	"gorm.io/gorm"

	"github.com/stickerlab/packsmith-backend/internal/data/repos/outbox"
	"github.com/stickerlab/packsmith-backend/internal/data/repos/packs"
	"github.com/stickerlab/packsmith-backend/internal/data/repos/user"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type OutboxEventRepo = outbox.OutboxEventRepo
type DeadLetterRepo = outbox.DeadLetterRepo

type PackRepo = packs.PackRepo
type PackItemRepo = packs.PackItemRepo
type PackUploadRepo = packs.PackUploadRepo
type UploadStatusCounts = packs.StatusCounts

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return user.NewUserRepo(db, baseLog)
}

func NewOutboxEventRepo(db *gorm.DB, baseLog *logger.Logger) OutboxEventRepo {
	return outbox.NewOutboxEventRepo(db, baseLog)
}

func NewDeadLetterRepo(db *gorm.DB, baseLog *logger.Logger) DeadLetterRepo {
	return outbox.NewDeadLetterRepo(db, baseLog)
}

func NewPackRepo(db *gorm.DB, baseLog *logger.Logger) PackRepo {
	return packs.NewPackRepo(db, baseLog)
}

func NewPackItemRepo(db *gorm.DB, baseLog *logger.Logger) PackItemRepo {
	return packs.NewPackItemRepo(db, baseLog)
}

func NewPackUploadRepo(db *gorm.DB, baseLog *logger.Logger) PackUploadRepo {
	return packs.NewPackUploadRepo(db, baseLog)
}
