package models

import (
	"time"
)

// TransactionKind what a journaled transaction does
type TransactionKind string

const (
	TransactionKindTransfer      TransactionKind = "transfer"
	TransactionKindCreateAccount TransactionKind = "create_account"
)

// TransactionRecord journal row for a transaction accepted by the node
type TransactionRecord struct {
	ID          string           `json:"id" gorm:"primaryKey"` // UUID
	AttemptID   string           `json:"attempt_id" gorm:"index"`
	Kind        TransactionKind  `json:"kind" gorm:"not null"`
	ChainID     int64            `json:"chain_id" gorm:"not null;index:idx_zk_tx_chain_from"`
	From        string           `json:"from" gorm:"not null;size:42;index:idx_zk_tx_chain_from"`
	To          string           `json:"to" gorm:"size:42"`
	Token       string           `json:"token" gorm:"size:42"`
	Amount      string           `json:"amount"`
	TxHash      string           `json:"tx_hash" gorm:"uniqueIndex;size:66"`
	Status      SettlementStatus `json:"status" gorm:"not null;default:submitted;index"`
	Reason      string           `json:"reason" gorm:"type:text"`
	BlockNumber *uint64          `json:"block_number"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	SettledAt   *time.Time       `json:"settled_at"`
}

// SettlementSubmitted status of a journaled transaction awaiting confirmation
const SettlementSubmitted SettlementStatus = "submitted"

// TableName table name
func (TransactionRecord) TableName() string {
	return "zk_transactions"
}
