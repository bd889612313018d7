package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"zkaccount-backend/internal/types"
)

// ErrNoContract the call returned no data, usually because nothing is deployed at the address
var ErrNoContract = errors.New("no contract code at address")

// Caller read-only contract access; *ethclient.Client satisfies it
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Call packs method with args, runs eth_call against to at the latest block and unpacks the outputs
func Call(ctx context.Context, caller Caller, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), ErrNoContract)
	}
	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func callSingle[T any](ctx context.Context, caller Caller, parsed abi.ABI, to common.Address, method string, args ...interface{}) (T, error) {
	var zero T
	values, err := Call(ctx, caller, parsed, to, method, args...)
	if err != nil {
		return zero, err
	}
	v, ok := values[0].(T)
	if !ok {
		return zero, fmt.Errorf("unpack %s: unexpected type %T", method, values[0])
	}
	return v, nil
}

// LookupEmail directory lookup; the zero address means no binding
func LookupEmail(ctx context.Context, caller Caller, directory common.Address, emailHash common.Hash) (common.Address, error) {
	return callSingle[common.Address](ctx, caller, DirectoryABI, directory, "lookup", emailHash)
}

// PredictAccount deterministic address of the account for (owner, salt)
func PredictAccount(ctx context.Context, caller Caller, factory, owner common.Address, salt *big.Int) (common.Address, error) {
	return callSingle[common.Address](ctx, caller, FactoryABI, factory, "predict", owner, salt)
}

// AccountsOf accounts already bound to owner
func AccountsOf(ctx context.Context, caller Caller, factory, owner common.Address) ([]common.Address, error) {
	return callSingle[[]common.Address](ctx, caller, FactoryABI, factory, "accountsOf", owner)
}

// PackCreate calldata of the factory create call
func PackCreate(requireProof bool, emailHash, domainHash common.Hash, salt *big.Int, email string) ([]byte, error) {
	return FactoryABI.Pack("create", requireProof, emailHash, domainHash, salt, email)
}

// PackExecute calldata of the account execute call. proof must be fully populated; use types.EmptyProof when none is required.
func PackExecute(proof *types.ProofPayload, target common.Address, value *big.Int, data []byte) ([]byte, error) {
	if proof == nil {
		return nil, errors.New("pack execute: nil proof")
	}
	if value == nil {
		value = new(big.Int)
	}
	if data == nil {
		data = []byte{}
	}
	return AccountABI.Pack("execute", *proof, target, value, data)
}

// AccountState view of a deployed account
type AccountState struct {
	Owner         common.Address
	RequiresProof bool
	EmailHash     common.Hash
	DomainHash    common.Hash
	Nonce         *big.Int
}

// ReadAccount reads the account's owner, proof flag, identity hashes and nonce
func ReadAccount(ctx context.Context, caller Caller, account common.Address) (*AccountState, error) {
	state := &AccountState{}
	var err error
	if state.Owner, err = callSingle[common.Address](ctx, caller, AccountABI, account, "owner"); err != nil {
		return nil, err
	}
	if state.RequiresProof, err = callSingle[bool](ctx, caller, AccountABI, account, "requiresProof"); err != nil {
		return nil, err
	}
	email, err := callSingle[[32]byte](ctx, caller, AccountABI, account, "emailHash")
	if err != nil {
		return nil, err
	}
	domain, err := callSingle[[32]byte](ctx, caller, AccountABI, account, "domainHash")
	if err != nil {
		return nil, err
	}
	state.EmailHash, state.DomainHash = common.Hash(email), common.Hash(domain)
	if state.Nonce, err = callSingle[*big.Int](ctx, caller, AccountABI, account, "nonce"); err != nil {
		return nil, err
	}
	return state, nil
}

// TokenBalance ERC-20 balanceOf
func TokenBalance(ctx context.Context, caller Caller, token, holder common.Address) (*big.Int, error) {
	return callSingle[*big.Int](ctx, caller, ERC20ABI, token, "balanceOf", holder)
}

// TokenDecimals ERC-20 decimals
func TokenDecimals(ctx context.Context, caller Caller, token common.Address) (uint8, error) {
	return callSingle[uint8](ctx, caller, ERC20ABI, token, "decimals")
}

// TokenSymbol ERC-20 symbol
func TokenSymbol(ctx context.Context, caller Caller, token common.Address) (string, error) {
	return callSingle[string](ctx, caller, ERC20ABI, token, "symbol")
}

// PackTokenTransfer calldata of ERC-20 transfer(to, amount)
func PackTokenTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("transfer", to, amount)
}
