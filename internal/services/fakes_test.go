package services

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/clients"
	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/contracts"
	"zkaccount-backend/internal/keyvault"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/types"
)

// hardhat account #0
const ownerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	directoryAddr = common.HexToAddress("0x00000000000000000000000000000000000d1e00")
	factoryAddr   = common.HexToAddress("0x00000000000000000000000000000000000fac00")
	zkAccount     = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	recipient     = common.HexToAddress("0x000000000000000000000000000000000000b0b0")
	tokenAddr     = common.HexToAddress("0x0000000000000000000000000000000000007070")
	oneEther      = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testProfile() models.ChainProfile {
	return models.ChainProfile{
		ChainID:           31337,
		Name:              "devnet",
		NativeSymbol:      "ETH",
		RPCURL:            "http://fake",
		ExplorerURL:       "https://explorer.example",
		DirectoryContract: directoryAddr,
		FactoryContract:   factoryAddr,
		IsActive:          true,
		MinGasReserve:     big.NewInt(1e15),
		CreateGasLimit:    3000000,
		CreateGasCeiling:  6000000,
	}
}

func testTransferConfig() config.TransferConfig {
	return config.TransferConfig{
		BalanceTimeout:      time.Second,
		BalanceAttempts:     3,
		BalanceRetryDelay:   time.Millisecond,
		GasMultiplier:       2,
		FallbackGasLimit:    300000,
		EstimateAttempts:    2,
		GasPriceBumpPercent: 20,
	}
}

func testSigner() *keyvault.KeyVault {
	v, err := keyvault.FromHex(ownerKey)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeAccount struct {
	owner         common.Address
	requiresProof bool
}

type abiMethod struct {
	parsed abi.ABI
	method abi.Method
}

var selectors = func() map[string]abiMethod {
	out := make(map[string]abiMethod)
	for _, parsed := range []abi.ABI{contracts.DirectoryABI, contracts.FactoryABI, contracts.AccountABI, contracts.ERC20ABI} {
		for _, m := range parsed.Methods {
			out[string(m.ID)] = abiMethod{parsed: parsed, method: m}
		}
	}
	return out
}()

// fakeChain in-memory node with the directory, factory, accounts and tokens used by the services
type fakeChain struct {
	mu sync.Mutex

	chainID       int64
	balances      map[common.Address]*big.Int
	tokenBalances map[common.Address]map[common.Address]*big.Int
	tokenDecimals map[common.Address]uint8
	directory     map[common.Hash]common.Address
	accounts      map[common.Address]fakeAccount
	accountsOf    map[common.Address][]common.Address
	receipts      map[common.Hash]*ethtypes.Receipt
	codeless      map[common.Address]bool

	balanceErrs  []error
	balanceDelay time.Duration
	estimate     func(msg ethereum.CallMsg) (uint64, error)
	sendErr      error
	onSend       func(tx *ethtypes.Transaction)

	sent  []*ethtypes.Transaction
	calls map[string]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID:       31337,
		balances:      make(map[common.Address]*big.Int),
		tokenBalances: make(map[common.Address]map[common.Address]*big.Int),
		tokenDecimals: make(map[common.Address]uint8),
		directory:     make(map[common.Hash]common.Address),
		accounts:      make(map[common.Address]fakeAccount),
		accountsOf:    make(map[common.Address][]common.Address),
		receipts:      make(map[common.Hash]*ethtypes.Receipt),
		codeless:      make(map[common.Address]bool),
		calls:         make(map[string]int),
	}
}

func (c *fakeChain) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *fakeChain) sentTxs() []*ethtypes.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ethtypes.Transaction(nil), c.sent...)
}

func (c *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(c.chainID), nil
}

func (c *fakeChain) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	c.mu.Lock()
	c.calls["BalanceAt"]++
	var err error
	if len(c.balanceErrs) > 0 {
		err, c.balanceErrs = c.balanceErrs[0], c.balanceErrs[1:]
	}
	delay := c.balanceDelay
	bal := c.balances[account]
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(bal), nil
}

func (c *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	entry, ok := selectors[string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("unknown selector")
	}
	args, err := entry.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[entry.method.Name]++
	if msg.To != nil && c.codeless[*msg.To] {
		return nil, nil
	}

	var out []interface{}
	switch entry.method.Name {
	case "lookup":
		out = []interface{}{c.directory[common.Hash(args[0].([32]byte))]}
	case "predict":
		out = []interface{}{predictedAddress(args[0].(common.Address), args[1].(*big.Int))}
	case "accountsOf":
		list := c.accountsOf[args[0].(common.Address)]
		if list == nil {
			list = []common.Address{}
		}
		out = []interface{}{list}
	case "owner", "requiresProof", "emailHash", "domainHash", "nonce":
		acct, ok := c.accounts[*msg.To]
		if !ok {
			return nil, nil
		}
		switch entry.method.Name {
		case "owner":
			out = []interface{}{acct.owner}
		case "requiresProof":
			out = []interface{}{acct.requiresProof}
		case "nonce":
			out = []interface{}{big.NewInt(0)}
		default:
			out = []interface{}{[32]byte{}}
		}
	case "balanceOf":
		bal := c.tokenBalances[*msg.To][args[0].(common.Address)]
		if bal == nil {
			bal = new(big.Int)
		}
		out = []interface{}{bal}
	case "decimals":
		out = []interface{}{c.tokenDecimals[*msg.To]}
	default:
		return nil, errors.New("unsupported call " + entry.method.Name)
	}
	return entry.method.Outputs.Pack(out...)
}

func (c *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	c.calls["EstimateGas"]++
	hook := c.estimate
	c.mu.Unlock()
	if hook != nil {
		return hook(msg)
	}
	return 100000, nil
}

func (c *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.sent)), nil
}

func (c *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

func (c *fakeChain) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	c.mu.Lock()
	c.calls["SendTransaction"]++
	if c.sendErr != nil {
		c.mu.Unlock()
		return c.sendErr
	}
	c.sent = append(c.sent, tx)
	hook := c.onSend
	c.mu.Unlock()
	if hook != nil {
		hook(tx)
	}
	return nil
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["TransactionReceipt"]++
	if r, ok := c.receipts[txHash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

// predictedAddress deterministic stand-in for the factory's derivation
func predictedAddress(owner common.Address, salt *big.Int) common.Address {
	return common.BytesToAddress(crypto.Keccak256(owner.Bytes(), common.BigToHash(salt).Bytes()))
}

// deploy registers an account as the factory would
func (c *fakeChain) deploy(owner, account common.Address, requiresProof bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[account] = fakeAccount{owner: owner, requiresProof: requiresProof}
	c.accountsOf[owner] = append(c.accountsOf[owner], account)
}

// deployOnCreate makes factory create transactions deploy at the predicted address
func (c *fakeChain) deployOnCreate(owner common.Address) {
	c.onSend = func(tx *ethtypes.Transaction) {
		if tx.To() == nil || *tx.To() != factoryAddr {
			return
		}
		args, err := contracts.FactoryABI.Methods["create"].Inputs.Unpack(tx.Data()[4:])
		if err != nil {
			return
		}
		c.deploy(owner, predictedAddress(owner, args[3].(*big.Int)), args[0].(bool))
	}
}

type fakeConnector struct {
	mu    sync.Mutex
	chain *fakeChain
	err   error
	calls int
}

func (f *fakeConnector) Client(ctx context.Context, profile models.ChainProfile) (clients.ChainBackend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.chain, nil
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeProofs returns a distinct proof per call so reuse is detectable
type fakeProofs struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeProofs) FetchProof(ctx context.Context, session models.SessionContext) (*types.ProofPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := types.EmptyProof()
	p.A[0] = big.NewInt(int64(f.calls))
	p.PublicSignals[0] = big.NewInt(int64(1000 + f.calls))
	return p, nil
}

func (f *fakeProofs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type trackedTx struct {
	hash      common.Hash
	onSettled func(models.Settlement)
}

type recordingTracker struct {
	mu      sync.Mutex
	tracked []trackedTx
}

func (r *recordingTracker) Track(txHash common.Hash, profile models.ChainProfile, onSettled func(models.Settlement)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = append(r.tracked, trackedTx{hash: txHash, onSettled: onSettled})
}

type memoryJournal struct {
	mu      sync.Mutex
	records []*models.TransactionRecord
}

func (j *memoryJournal) RecordSubmitted(ctx context.Context, rec *models.TransactionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

// revertError JSON-RPC error carrying revert data
type revertError struct {
	msg  string
	data interface{}
}

func (e *revertError) Error() string          { return e.msg }
func (e *revertError) ErrorData() interface{} { return e.data }

func factoryABIArgs(data []byte) ([]interface{}, error) {
	return contracts.FactoryABI.Methods["create"].Inputs.Unpack(data[4:])
}
