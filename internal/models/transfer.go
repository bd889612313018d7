package models

import (
	"time"

	"zkaccount-backend/internal/types"
)

// TransferRequest spend from a ZK Account
type TransferRequest struct {
	FromZkAccount string `json:"from_zk_account" binding:"required"`
	To            string `json:"to" binding:"required"`     // address or email
	TokenAddress  string `json:"token_address,omitempty"`   // empty = native asset
	Amount        string `json:"amount" binding:"required"` // decimal string in human units
	ChainID       int64  `json:"chain_id" binding:"required"`
}

// IsNative reports whether the request moves the native asset
func (r *TransferRequest) IsNative() bool {
	return r.TokenAddress == ""
}

// SessionContext authenticates the caller towards the proof issuer
type SessionContext struct {
	BearerToken string
}

// TransferOutcome terminal result of a transfer or account creation attempt.
// Confirmation is reported separately through a Settlement.
type TransferOutcome struct {
	Success          bool             `json:"success"`
	TxHash           string           `json:"transaction_hash,omitempty"`
	AttemptID        string           `json:"attempt_id,omitempty"`
	ZkAccountAddress string           `json:"zk_account_address,omitempty"`
	AlreadyExisted   bool             `json:"already_existed,omitempty"`
	ExplorerURL      string           `json:"explorer_url,omitempty"`
	ErrorKind        types.ErrorKind  `json:"error_kind,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	Retryable        bool             `json:"retryable,omitempty"`
	Shortfall        *types.Shortfall `json:"shortfall,omitempty"`
}

// FailedOutcome renders a classified error as an outcome
func FailedOutcome(attemptID string, te *types.TransferError) *TransferOutcome {
	return &TransferOutcome{
		Success:      false,
		AttemptID:    attemptID,
		ErrorKind:    te.Kind,
		ErrorMessage: te.UserMessage(),
		Retryable:    te.Kind.Retryable(),
		Shortfall:    te.Shortfall,
	}
}

// SettlementStatus on-chain result of a submitted transaction
type SettlementStatus string

const (
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementReverted  SettlementStatus = "reverted"
	SettlementUnknown   SettlementStatus = "unknown"
)

// Settlement follow-up notification for a submitted transaction
type Settlement struct {
	TxHash      string           `json:"transaction_hash"`
	ChainID     int64            `json:"chain_id"`
	Confirmed   bool             `json:"confirmed"`
	Status      SettlementStatus `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	BlockNumber uint64           `json:"block_number,omitempty"`
	GasUsed     uint64           `json:"gas_used,omitempty"`
	ExplorerURL string           `json:"explorer_url,omitempty"`
	SettledAt   time.Time        `json:"settled_at"`
}
