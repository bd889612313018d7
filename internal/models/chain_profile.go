package models

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChainProfile network metadata for one chain. Immutable once loaded for a session.
type ChainProfile struct {
	ChainID           int64          `json:"chain_id"`
	Name              string         `json:"name"`
	NativeSymbol      string         `json:"native_symbol"`
	RPCURL            string         `json:"rpc_url"`
	ExplorerURL       string         `json:"explorer_url"`
	DirectoryContract common.Address `json:"directory_contract"`
	FactoryContract   common.Address `json:"factory_contract"`
	IsActive          bool           `json:"is_active"`

	MinGasReserve    *big.Int `json:"min_gas_reserve_wei"` // owner wallet native balance needed before spending
	GasPrice         *big.Int `json:"gas_price_wei"`       // used when the node cannot suggest one
	CreateGasLimit   uint64   `json:"create_gas_limit"`    // account creation limit when estimation is unavailable
	CreateGasCeiling uint64   `json:"create_gas_ceiling"`  // upper bound applied to doubled creation estimates
}

// TxURL link to a transaction on the chain explorer
func (p ChainProfile) TxURL(txHash string) string {
	if p.ExplorerURL == "" || txHash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(p.ExplorerURL, "/"), txHash)
}

// AddressURL link to an address on the chain explorer
func (p ChainProfile) AddressURL(addr common.Address) string {
	if p.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(p.ExplorerURL, "/"), addr.Hex())
}

// Symbol native asset symbol, "ETH" when unset
func (p ChainProfile) Symbol() string {
	if p.NativeSymbol == "" {
		return "ETH"
	}
	return p.NativeSymbol
}
