package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/models"
)

// ErrChainMismatch the node behind an RPC URL serves a different chain than the profile says
var ErrChainMismatch = errors.New("rpc endpoint serves a different chain")

// ChainBackend node operations used by the services; *ethclient.Client satisfies it
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

type pooledClient struct {
	url    string
	client *ethclient.Client
}

// ChainClients lazily dialed ethclient per chain id
type ChainClients struct {
	mu           sync.Mutex
	clients      map[int64]pooledClient
	logger       *logrus.Logger
	checkTimeout time.Duration
}

// NewChainClients creates an empty pool
func NewChainClients(logger *logrus.Logger) *ChainClients {
	return &ChainClients{
		clients:      make(map[int64]pooledClient),
		logger:       logger,
		checkTimeout: 10 * time.Second,
	}
}

// Client returns the connection for profile, dialing and verifying the node's chain id on first use.
// A profile whose RPC URL changed gets a fresh connection.
func (p *ChainClients) Client(ctx context.Context, profile models.ChainProfile) (ChainBackend, error) {
	p.mu.Lock()
	pooled, ok := p.clients[profile.ChainID]
	p.mu.Unlock()
	if ok && pooled.url == profile.RPCURL {
		return pooled.client, nil
	}

	client, err := p.dial(ctx, profile)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[profile.ChainID]; ok {
		if existing.url == profile.RPCURL {
			// lost a concurrent dial race
			client.Close()
			return existing.client, nil
		}
		existing.client.Close()
	}
	p.clients[profile.ChainID] = pooledClient{url: profile.RPCURL, client: client}
	return client, nil
}

func (p *ChainClients) dial(ctx context.Context, profile models.ChainProfile) (*ethclient.Client, error) {
	log := p.logger.WithField("chain_id", profile.ChainID)

	client, err := ethclient.DialContext(ctx, profile.RPCURL)
	if err != nil {
		log.WithError(err).Warn("❌ Failed to connect to RPC endpoint")
		return nil, fmt.Errorf("dial chain %d: %w", profile.ChainID, err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, p.checkTimeout)
	defer cancel()
	chainID, err := client.ChainID(checkCtx)
	if err != nil {
		client.Close()
		log.WithError(err).Warn("❌ RPC endpoint did not answer chain id")
		return nil, fmt.Errorf("chain id of chain %d endpoint: %w", profile.ChainID, err)
	}
	if chainID.Int64() != profile.ChainID {
		client.Close()
		return nil, fmt.Errorf("%w: expected %d, got %s", ErrChainMismatch, profile.ChainID, chainID)
	}

	log.Info("✅ Connected to chain")
	return client, nil
}

// Close closes every pooled connection
func (p *ChainClients) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, pooled := range p.clients {
		pooled.client.Close()
		delete(p.clients, id)
	}
}
