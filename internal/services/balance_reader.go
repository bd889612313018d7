package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"zkaccount-backend/internal/clients"
	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/contracts"
	"zkaccount-backend/internal/metrics"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/utils"
)

// ErrInvalidAddress the address is malformed; such reads are never retried
var ErrInvalidAddress = errors.New("invalid address")

// BalanceQuery one balance to read; empty Token means the native asset
type BalanceQuery struct {
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
}

// BalanceReader node balance reads raced against a timeout with bounded retry
type BalanceReader struct {
	connector ChainConnector
	timeout   time.Duration
	attempts  int
	delay     time.Duration
	logger    *logrus.Logger
}

// NewBalanceReader creates a reader using the transfer tunables
func NewBalanceReader(connector ChainConnector, cfg config.TransferConfig, logger *logrus.Logger) *BalanceReader {
	return &BalanceReader{
		connector: connector,
		timeout:   cfg.BalanceTimeout,
		attempts:  cfg.BalanceAttempts,
		delay:     cfg.BalanceRetryDelay,
		logger:    logger,
	}
}

// GetBalance native balance of address
func (r *BalanceReader) GetBalance(ctx context.Context, address string, profile models.ChainProfile) (*models.Balance, error) {
	if !utils.IsEvmAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	holder := common.HexToAddress(address)
	raw, err := readWithRetry(ctx, r, profile, func(ctx context.Context, backend clients.ChainBackend) (*big.Int, error) {
		return backend.BalanceAt(ctx, holder, nil)
	})
	if err != nil {
		return nil, err
	}
	return &models.Balance{
		Address:   holder,
		Raw:       raw,
		Formatted: utils.FormatUnits(raw, utils.NativeDecimals),
		Decimals:  utils.NativeDecimals,
	}, nil
}

// GetTokenBalance ERC-20 balance of address, formatted with the token's declared decimals
func (r *BalanceReader) GetTokenBalance(ctx context.Context, address, token string, profile models.ChainProfile) (*models.Balance, error) {
	if !utils.IsEvmAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if !utils.IsEvmAddress(token) {
		return nil, fmt.Errorf("%w: token %q", ErrInvalidAddress, token)
	}
	holder, tokenAddr := common.HexToAddress(address), common.HexToAddress(token)

	decimals, err := readWithRetry(ctx, r, profile, func(ctx context.Context, backend clients.ChainBackend) (uint8, error) {
		return contracts.TokenDecimals(ctx, backend, tokenAddr)
	})
	if err != nil {
		return nil, err
	}
	raw, err := readWithRetry(ctx, r, profile, func(ctx context.Context, backend clients.ChainBackend) (*big.Int, error) {
		return contracts.TokenBalance(ctx, backend, tokenAddr, holder)
	})
	if err != nil {
		return nil, err
	}
	return &models.Balance{
		Address:   holder,
		Token:     &tokenAddr,
		Raw:       raw,
		Formatted: utils.FormatUnits(raw, decimals),
		Decimals:  decimals,
	}, nil
}

// Get dispatches on q.Token
func (r *BalanceReader) Get(ctx context.Context, q BalanceQuery, profile models.ChainProfile) (*models.Balance, error) {
	if q.Token == "" {
		return r.GetBalance(ctx, q.Address, profile)
	}
	return r.GetTokenBalance(ctx, q.Address, q.Token, profile)
}

// GetBalances reads all queries concurrently. Results keep the query order; the first error cancels the rest.
func (r *BalanceReader) GetBalances(ctx context.Context, queries []BalanceQuery, profile models.ChainProfile) ([]*models.Balance, error) {
	out := make([]*models.Balance, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			b, err := r.Get(gctx, q, profile)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", q.Address, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readWithRetry[T any](ctx context.Context, r *BalanceReader, profile models.ChainProfile, read func(context.Context, clients.ChainBackend) (T, error)) (T, error) {
	var result T
	err := utils.Retry(ctx, utils.RetryPolicy{
		Attempts:    r.attempts,
		Delay:       r.delay,
		ShouldRetry: retryableRead,
	}, func(ctx context.Context, attempt int) error {
		v, err := utils.RaceTimeout(ctx, r.timeout, func(ctx context.Context) (T, error) {
			backend, err := r.connector.Client(ctx, profile)
			if err != nil {
				var zero T
				return zero, err
			}
			return read(ctx, backend)
		})
		if err != nil {
			label := "error"
			if errors.Is(err, utils.ErrTimeout) {
				label = "timeout"
			}
			metrics.BalanceReadAttempts.WithLabelValues(label).Inc()
			r.logger.WithFields(logrus.Fields{
				"chain_id": profile.ChainID,
				"attempt":  attempt,
			}).WithError(err).Warn("⚠️ [Balance] Read failed")
			return err
		}
		metrics.BalanceReadAttempts.WithLabelValues("ok").Inc()
		result = v
		return nil
	})
	return result, err
}

// retryableRead is false for definitive argument errors
func retryableRead(err error) bool {
	if errors.Is(err, ErrInvalidAddress) || errors.Is(err, contracts.ErrNoContract) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == -32602 {
		return false
	}
	msg := strings.ToLower(err.Error())
	return !strings.Contains(msg, "invalid address") && !strings.Contains(msg, "invalid argument")
}
