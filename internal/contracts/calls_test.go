package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"zkaccount-backend/internal/types"
)

// stubCaller answers eth_call by method name, decoding calldata with the given ABI
type stubCaller struct {
	parsed  abi.ABI
	results map[string][]interface{}
	calls   []string
}

func (s *stubCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := s.parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	s.calls = append(s.calls, method.Name)
	out, ok := s.results[method.Name]
	if !ok {
		return nil, nil
	}
	return method.Outputs.Pack(out...)
}

var (
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	accountAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestPredictAccount(t *testing.T) {
	caller := &stubCaller{parsed: FactoryABI, results: map[string][]interface{}{"predict": {accountAddr}}}
	got, err := PredictAccount(context.Background(), caller, factoryAddr, ownerAddr, big.NewInt(7))
	if err != nil {
		t.Fatalf("PredictAccount: %v", err)
	}
	if got != accountAddr {
		t.Errorf("got = %s, want %s", got.Hex(), accountAddr.Hex())
	}
}

func TestAccountsOf(t *testing.T) {
	caller := &stubCaller{parsed: FactoryABI, results: map[string][]interface{}{"accountsOf": {[]common.Address{accountAddr}}}}
	got, err := AccountsOf(context.Background(), caller, factoryAddr, ownerAddr)
	if err != nil {
		t.Fatalf("AccountsOf: %v", err)
	}
	if len(got) != 1 || got[0] != accountAddr {
		t.Errorf("got = %v", got)
	}
}

func TestCall_NoCode(t *testing.T) {
	caller := &stubCaller{parsed: AccountABI, results: map[string][]interface{}{}}
	if _, err := ReadAccount(context.Background(), caller, accountAddr); !errors.Is(err, ErrNoContract) {
		t.Fatalf("err = %v, want ErrNoContract", err)
	}
}

func TestReadAccount(t *testing.T) {
	email := common.HexToHash("0x01")
	caller := &stubCaller{parsed: AccountABI, results: map[string][]interface{}{
		"owner":         {ownerAddr},
		"requiresProof": {true},
		"emailHash":     {[32]byte(email)},
		"domainHash":    {[32]byte{}},
		"nonce":         {big.NewInt(3)},
	}}
	state, err := ReadAccount(context.Background(), caller, accountAddr)
	if err != nil {
		t.Fatalf("ReadAccount: %v", err)
	}
	if state.Owner != ownerAddr || !state.RequiresProof || state.EmailHash != email || state.Nonce.Int64() != 3 {
		t.Errorf("state = %+v", state)
	}
}

func TestPackExecute_ProofLayout(t *testing.T) {
	proof := types.EmptyProof()
	for i := range proof.PublicSignals {
		proof.PublicSignals[i] = big.NewInt(int64(i + 1))
	}
	proof.B[0][1] = big.NewInt(99)

	data, err := PackExecute(proof, accountAddr, big.NewInt(5), nil)
	if err != nil {
		t.Fatalf("PackExecute: %v", err)
	}
	method := AccountABI.Methods["execute"]
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	decoded := fmt.Sprint(args[0])
	want := fmt.Sprint(struct {
		A             [2]*big.Int    `json:"a"`
		B             [2][2]*big.Int `json:"b"`
		C             [2]*big.Int    `json:"c"`
		PublicSignals [3]*big.Int    `json:"publicSignals"`
	}{A: proof.A, B: proof.B, C: proof.C, PublicSignals: proof.PublicSignals})
	if decoded != want {
		t.Errorf("proof tuple = %s, want %s", decoded, want)
	}
	if args[1].(common.Address) != accountAddr || args[2].(*big.Int).Int64() != 5 {
		t.Errorf("target/value = %v/%v", args[1], args[2])
	}
}

func TestPackExecute_NilProof(t *testing.T) {
	if _, err := PackExecute(nil, accountAddr, nil, nil); err == nil {
		t.Fatalf("expected error for nil proof")
	}
}
