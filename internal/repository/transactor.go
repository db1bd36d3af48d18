package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxFunc receives repositories bound to the open transaction.
type TxFunc func(ctx context.Context, deliveries DeliveryRepository, recipients RecipientRepository) error

// Transactor runs fn atomically. A non-nil error from fn rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

type GormTransactor struct {
	db *gorm.DB
}

func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

func (t *GormTransactor) WithinTx(ctx context.Context, fn TxFunc) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormDeliveryRepo(tx), NewGormRecipientRepo(tx))
	})
}
