package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/sims/backend/internal/domain/shared"
)

// txKey is the context key carrying the active transaction handle
type txKey struct{}

// GormTxManager implements shared.TxManager on a gorm connection. The
// transaction handle travels in the context so repositories inside the
// unit of work write through it without knowing about transactions.
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a new GormTxManager
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// Do runs fn inside a database transaction. Any error from fn rolls the
// whole unit of work back.
func (m *GormTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// dbFromContext resolves the connection for the current call: the active
// transaction if one is running, the base connection otherwise.
func dbFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

var _ shared.TxManager = (*GormTxManager)(nil)
