package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/clients"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/types"
	"zkaccount-backend/internal/utils"
)

// ChainConnector hands out node connections for a profile
type ChainConnector interface {
	Client(ctx context.Context, profile models.ChainProfile) (clients.ChainBackend, error)
}

// Signer signing capability of the owner key
type Signer interface {
	Address() common.Address
	SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// usable reports whether signer can still sign
func usable(signer Signer) bool {
	if signer == nil {
		return false
	}
	if c, ok := signer.(interface{ Cleared() bool }); ok && c.Cleared() {
		return false
	}
	return true
}

// SettlementTracker background confirmation of submitted transactions
type SettlementTracker interface {
	Track(txHash common.Hash, profile models.ChainProfile, onSettled func(models.Settlement))
}

// TransactionJournal records transactions accepted by the node
type TransactionJournal interface {
	RecordSubmitted(ctx context.Context, rec *models.TransactionRecord) error
}

// TransactionSender estimates, prices, signs and submits legacy transactions
type TransactionSender struct {
	gas    *clients.GasPriceClient
	logger *logrus.Logger
}

// NewTransactionSender creates a sender
func NewTransactionSender(gas *clients.GasPriceClient, logger *logrus.Logger) *TransactionSender {
	return &TransactionSender{gas: gas, logger: logger}
}

// Estimate runs eth_estimateGas, retrying only infrastructure failures up to attempts times.
// On failure the returned kind tells revert classes apart from node problems.
func (s *TransactionSender) Estimate(ctx context.Context, backend clients.ChainBackend, msg ethereum.CallMsg, attempts int) (uint64, types.ErrorKind, string, error) {
	var gas uint64
	err := utils.Retry(ctx, utils.RetryPolicy{
		Attempts: attempts,
		ShouldRetry: func(err error) bool {
			kind, _ := types.ClassifyEstimateError(err)
			return kind == types.ErrorKindEstimationInfrastructureFailure
		},
	}, func(ctx context.Context, attempt int) error {
		estimate, err := backend.EstimateGas(ctx, msg)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"attempt": attempt, "to": toHex(msg.To)}).WithError(err).Debug("⛽ [Gas] Estimation failed")
			return err
		}
		gas = estimate
		return nil
	})
	if err != nil {
		kind, reason := types.ClassifyEstimateError(err)
		return 0, kind, reason, err
	}
	return gas, "", "", nil
}

// Send signs and submits a transaction from signer and returns its hash as soon as the node accepts it
func (s *TransactionSender) Send(ctx context.Context, backend clients.ChainBackend, profile models.ChainProfile, signer Signer, to common.Address, value *big.Int, data []byte, gasLimit uint64) (common.Hash, error) {
	from := signer.Address()
	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice := s.gas.GasPrice(ctx, backend, profile)
	if value == nil {
		value = new(big.Int)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := signer.SignTx(tx, big.NewInt(profile.ChainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"chain_id":  profile.ChainID,
		"tx_hash":   signed.Hash().Hex(),
		"address":   from.Hex(),
		"nonce":     nonce,
		"gas_limit": gasLimit,
		"gas_price": gasPrice.String(),
	}).Info("📤 Transaction sent")
	return signed.Hash(), nil
}

// classifySendError maps a submission error to a kind; only known patterns change the default
func classifySendError(err error) types.ErrorKind {
	if kind, ok := types.ClassifyMessage(err.Error()); ok {
		return kind
	}
	if errors.Is(err, context.Canceled) {
		return types.ErrorKindCancelled
	}
	return types.ErrorKindSubmissionFailed
}

// scaleGas multiplies an estimate, saturating instead of overflowing
func scaleGas(estimate, multiplier uint64) uint64 {
	if multiplier == 0 {
		multiplier = 1
	}
	if estimate > math.MaxUint64/multiplier {
		return math.MaxUint64
	}
	return estimate * multiplier
}

func toHex(addr *common.Address) string {
	if addr == nil {
		return ""
	}
	return addr.Hex()
}
