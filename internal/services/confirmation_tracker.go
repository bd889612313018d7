package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/metrics"
	"zkaccount-backend/internal/models"
)

// SettlementNotifier receives every settlement in addition to the per-call callback
type SettlementNotifier interface {
	Name() string
	NotifySettlement(ctx context.Context, s models.Settlement) error
}

const notifyTimeout = 5 * time.Second

// ConfirmationTracker polls for receipts in the background and reports each settlement once.
// A timeout is reported as unknown, never as a failure of the transfer.
type ConfirmationTracker struct {
	connector    ChainConnector
	timeout      time.Duration
	pollInterval time.Duration
	logger       *logrus.Logger

	mu        sync.RWMutex
	notifiers []SettlementNotifier

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConfirmationTracker creates a tracker
func NewConfirmationTracker(connector ChainConnector, cfg config.ConfirmationConfig, logger *logrus.Logger, notifiers ...SettlementNotifier) *ConfirmationTracker {
	base, cancel := context.WithCancel(context.Background())
	return &ConfirmationTracker{
		connector:    connector,
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		logger:       logger,
		notifiers:    notifiers,
		base:         base,
		cancel:       cancel,
	}
}

// AddNotifier registers another settlement receiver
func (t *ConfirmationTracker) AddNotifier(n SettlementNotifier) {
	t.mu.Lock()
	t.notifiers = append(t.notifiers, n)
	t.mu.Unlock()
}

// Track waits for txHash in the background and returns immediately.
// onSettled may be nil; it is called exactly once, from the tracking goroutine.
func (t *ConfirmationTracker) Track(txHash common.Hash, profile models.ChainProfile, onSettled func(models.Settlement)) {
	t.wg.Add(1)
	metrics.TrackedTransactions.Inc()
	go func() {
		defer t.wg.Done()
		defer metrics.TrackedTransactions.Dec()

		start := time.Now()
		settlement := t.Await(t.base, txHash, profile)
		metrics.ConfirmationWait.Observe(time.Since(start).Seconds())
		metrics.ConfirmationsTotal.WithLabelValues(string(settlement.Status)).Inc()
		t.deliver(settlement, onSettled)
	}()
}

// Await polls for the receipt until it appears, the timeout elapses or ctx ends
func (t *ConfirmationTracker) Await(ctx context.Context, txHash common.Hash, profile models.ChainProfile) models.Settlement {
	log := t.logger.WithFields(logrus.Fields{"chain_id": profile.ChainID, "tx_hash": txHash.Hex()})
	settlement := models.Settlement{
		TxHash:      txHash.Hex(),
		ChainID:     profile.ChainID,
		Status:      models.SettlementUnknown,
		ExplorerURL: profile.TxURL(txHash.Hex()),
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		if receipt := t.poll(ctx, txHash, profile, log); receipt != nil {
			settlement.Confirmed = true
			if receipt.BlockNumber != nil {
				settlement.BlockNumber = receipt.BlockNumber.Uint64()
			}
			settlement.GasUsed = receipt.GasUsed
			if receipt.Status == ethtypes.ReceiptStatusSuccessful {
				settlement.Status = models.SettlementConfirmed
			} else {
				settlement.Status = models.SettlementReverted
				settlement.Reason = "execution reverted"
			}
			settlement.SettledAt = time.Now().UTC()
			log.WithFields(logrus.Fields{"status": settlement.Status, "block": settlement.BlockNumber}).Info("🎉 [Confirmation] Transaction settled")
			return settlement
		}

		select {
		case <-ctx.Done():
			settlement.Reason = "timeout"
			if errors.Is(ctx.Err(), context.Canceled) {
				settlement.Reason = "cancelled"
			}
			settlement.SettledAt = time.Now().UTC()
			log.WithField("reason", settlement.Reason).Warn("⏰ [Confirmation] Receipt not found, status unknown")
			return settlement
		case <-ticker.C:
		}
	}
}

func (t *ConfirmationTracker) poll(ctx context.Context, txHash common.Hash, profile models.ChainProfile, log *logrus.Entry) *ethtypes.Receipt {
	backend, err := t.connector.Client(ctx, profile)
	if err != nil {
		log.WithError(err).Debug("🔄 [Confirmation] Node unavailable, will retry")
		return nil
	}
	receipt, err := backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) {
			log.WithError(err).Debug("🔄 [Confirmation] Receipt query failed, will retry")
		}
		return nil
	}
	return receipt
}

func (t *ConfirmationTracker) deliver(s models.Settlement, onSettled func(models.Settlement)) {
	if onSettled != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.WithField("tx_hash", s.TxHash).Errorf("❌ [Confirmation] Settlement callback panicked: %v", r)
				}
			}()
			onSettled(s)
		}()
	}

	t.mu.RLock()
	notifiers := append([]SettlementNotifier(nil), t.notifiers...)
	t.mu.RUnlock()
	for _, n := range notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if err := n.NotifySettlement(ctx, s); err != nil {
			metrics.NotifierFailures.WithLabelValues(n.Name()).Inc()
			t.logger.WithFields(logrus.Fields{"tx_hash": s.TxHash, "notifier": n.Name()}).WithError(err).Warn("⚠️ [Confirmation] Notifier failed")
		}
		cancel()
	}
}

// Close abandons pending waits, reporting them as cancelled, and waits for delivery to finish
func (t *ConfirmationTracker) Close() {
	t.cancel()
	t.wg.Wait()
}

// Wait blocks until every tracked transaction has been reported
func (t *ConfirmationTracker) Wait() {
	t.wg.Wait()
}
