// Package repository provides data access interfaces and implementations
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"zkaccount-backend/internal/models"
)

// ErrNotFound no journal row for the key
var ErrNotFound = errors.New("transaction not found")

// TransactionRepository defines the interface for the transaction journal
type TransactionRepository interface {
	RecordSubmitted(ctx context.Context, rec *models.TransactionRecord) error
	ApplySettlement(ctx context.Context, s models.Settlement) error
	GetByTxHash(ctx context.Context, txHash string) (*models.TransactionRecord, error)
	ListByAccount(ctx context.Context, chainID int64, address string, page, pageSize int) ([]*models.TransactionRecord, int64, error)
}

// transactionRepository implements TransactionRepository
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new TransactionRepository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// RecordSubmitted inserts a journal row for a transaction the node accepted
func (r *transactionRepository) RecordSubmitted(ctx context.Context, rec *models.TransactionRecord) error {
	if rec.Status == "" {
		rec.Status = models.SettlementSubmitted
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// ApplySettlement stores the confirmation result on the matching row
func (r *transactionRepository) ApplySettlement(ctx context.Context, s models.Settlement) error {
	result := r.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Where("tx_hash = ?", s.TxHash).
		Updates(SettlementUpdates(s))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByTxHash retrieves a journal row by transaction hash
func (r *transactionRepository) GetByTxHash(ctx context.Context, txHash string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByAccount paginated history of transactions sent from address, newest first
func (r *transactionRepository) ListByAccount(ctx context.Context, chainID int64, address string, page, pageSize int) ([]*models.TransactionRecord, int64, error) {
	var records []*models.TransactionRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.TransactionRecord{}).
		Where("chain_id = ? AND LOWER(\"from\") = LOWER(?)", chainID, address)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = NormalizePage(page, pageSize)
	err := query.
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&records).Error
	return records, total, err
}

// SettlementUpdates column values written for a settlement
func SettlementUpdates(s models.Settlement) map[string]interface{} {
	updates := map[string]interface{}{
		"status": s.Status,
		"reason": s.Reason,
	}
	if s.Confirmed {
		block := s.BlockNumber
		updates["block_number"] = &block
	}
	if !s.SettledAt.IsZero() {
		settled := s.SettledAt
		updates["settled_at"] = &settled
	}
	return updates
}

// NormalizePage clamps pagination to page >= 1 and 1 <= pageSize <= 100
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = 20
	case pageSize > 100:
		pageSize = 100
	}
	return page, pageSize
}

// SettlementJournal adapts the repository to the confirmation tracker's notifier hook
type SettlementJournal struct {
	repo TransactionRepository
}

// NewSettlementJournal creates the notifier
func NewSettlementJournal(repo TransactionRepository) *SettlementJournal {
	return &SettlementJournal{repo: repo}
}

// Name notifier name
func (j *SettlementJournal) Name() string { return "journal" }

// NotifySettlement persists the settlement. Transactions never journaled are ignored.
func (j *SettlementJournal) NotifySettlement(ctx context.Context, s models.Settlement) error {
	if err := j.repo.ApplySettlement(ctx, s); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
