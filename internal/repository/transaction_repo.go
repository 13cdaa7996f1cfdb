// Package repository implements the domain.TransactionStore port on top of
// gorm.
package repository

import (
	"context"
	"errors"

	"github.com/ticketpt/mbway-payments/internal/domain"
	"gorm.io/gorm"
)

// TransactionRepository is the gorm-backed transaction record store.
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a repository over the given database.
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction record. The unique indexes on
// transaction_id and payment_ref back the duplicate check, so a concurrent
// double insert still yields exactly one record.
func (r *TransactionRepository) Create(ctx context.Context, rec *domain.TransactionRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateTransaction
		}
		return err
	}
	return nil
}

// GetByTransactionID looks up a record by its gateway-issued id.
func (r *TransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// GetByPaymentRef looks up a record by the ticketing core's payment ref.
func (r *TransactionRepository) GetByPaymentRef(ctx context.Context, paymentRef string) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	err := r.db.WithContext(ctx).Where("payment_ref = ?", paymentRef).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteByOrderRef removes every record owned by an order.
func (r *TransactionRepository) DeleteByOrderRef(ctx context.Context, orderRef string) error {
	return r.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Delete(&domain.TransactionRecord{}).Error
}
