package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the user-facing failure category of a transfer or account creation
type ErrorKind string

const (
	ErrorKindInvalidInput                    ErrorKind = "InvalidInput"
	ErrorKindRecipientNotFound               ErrorKind = "RecipientNotFound"
	ErrorKindInsufficientTransferBalance     ErrorKind = "InsufficientTransferBalance"
	ErrorKindInsufficientGasReserve          ErrorKind = "InsufficientGasReserve"
	ErrorKindProofUnavailable                ErrorKind = "ProofUnavailable"
	ErrorKindProofReplay                     ErrorKind = "ProofReplay"
	ErrorKindWouldRevert                     ErrorKind = "WouldRevert"
	ErrorKindEstimationInfrastructureFailure ErrorKind = "EstimationInfrastructureFailure"
	ErrorKindTimeout                         ErrorKind = "Timeout"
	ErrorKindCancelled                       ErrorKind = "Cancelled"
	ErrorKindChainUnavailable                ErrorKind = "ChainUnavailable"
	ErrorKindSubmissionFailed                ErrorKind = "SubmissionFailed"
)

var kindTemplates = map[ErrorKind]string{
	ErrorKindInvalidInput:                    "The request is invalid. Check the address, amount and key and try again.",
	ErrorKindRecipientNotFound:               "No account is bound to this email address.",
	ErrorKindInsufficientTransferBalance:     "The account balance is too low for this transfer.",
	ErrorKindInsufficientGasReserve:          "The owner wallet does not hold enough native balance to pay for gas.",
	ErrorKindProofUnavailable:                "The identity proof could not be obtained. Sign in again or retry later.",
	ErrorKindProofReplay:                     "The identity proof was already used. Retry to fetch a fresh proof.",
	ErrorKindWouldRevert:                     "The transaction would be rejected by the contract.",
	ErrorKindEstimationInfrastructureFailure: "Gas could not be estimated because the network node is unavailable. Retry later.",
	ErrorKindTimeout:                         "The network did not answer in time. Retry later.",
	ErrorKindCancelled:                       "The transfer was cancelled before it was sent.",
	ErrorKindChainUnavailable:                "The selected network is not available.",
	ErrorKindSubmissionFailed:                "The network rejected the transaction.",
}

// Template returns the stable human readable message for the kind
func (k ErrorKind) Template() string {
	if t, ok := kindTemplates[k]; ok {
		return t
	}
	return "The operation failed."
}

// Retryable reports whether a fresh attempt of the same request is expected to succeed
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindProofReplay
}

// Stage is a state of the transfer state machine
type Stage string

const (
	StageValidating         Stage = "Validating"
	StageResolvingRecipient Stage = "ResolvingRecipient"
	StageCheckingBalance    Stage = "CheckingBalance"
	StageResolvingProof     Stage = "ResolvingProof"
	StageEstimatingGas      Stage = "EstimatingGas"
	StageSubmitting         Stage = "Submitting"
	StageSubmitted          Stage = "Submitted"
	StageFailed             Stage = "Failed"
)

// Shortfall carries the available and required amounts of a failed balance check
type Shortfall struct {
	AvailableRaw       string `json:"available_raw"`
	AvailableFormatted string `json:"available"`
	RequiredRaw        string `json:"required_raw"`
	RequiredFormatted  string `json:"required"`
	Symbol             string `json:"symbol,omitempty"`
}

// TransferError is a classified failure together with the stage it happened in
type TransferError struct {
	Kind      ErrorKind
	Stage     Stage
	Reason    string // raw revert reason or node message, diagnostics only
	Shortfall *Shortfall
	Err       error
}

// NewTransferError builds a classified error
func NewTransferError(kind ErrorKind, stage Stage, err error) *TransferError {
	te := &TransferError{Kind: kind, Stage: stage, Err: err}
	if err != nil {
		te.Reason = err.Error()
	}
	return te
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s during %s: %s", e.Kind, e.Stage, e.Reason)
	}
	return fmt.Sprintf("%s during %s", e.Kind, e.Stage)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// UserMessage renders the template of the kind, with amounts or the revert reason where the kind carries them
func (e *TransferError) UserMessage() string {
	msg := e.Kind.Template()
	switch {
	case e.Shortfall != nil:
		sym := e.Shortfall.Symbol
		if sym != "" {
			sym = " " + sym
		}
		msg = fmt.Sprintf("%s Available: %s%s (%s), required: %s%s (%s).", msg,
			e.Shortfall.AvailableFormatted, sym, e.Shortfall.AvailableRaw,
			e.Shortfall.RequiredFormatted, sym, e.Shortfall.RequiredRaw)
	case e.Kind == ErrorKindWouldRevert && e.Reason != "":
		msg = fmt.Sprintf("%s Reason: %s", msg, e.Reason)
	}
	return msg
}

// AsTransferError extracts a TransferError from an error chain
func AsTransferError(err error) (*TransferError, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
