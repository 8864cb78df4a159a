package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos fall back to their own *gorm.DB when Tx is nil, so callers can run
// the same code path inside or outside an enclosing transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
