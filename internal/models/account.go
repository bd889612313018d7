package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AccountRecord ZK Account state. Address is derivable before deployment,
// so pending and deployed are two lifecycle states of the same identity.
type AccountRecord struct {
	OwnerAddress     common.Address `json:"owner_address"`
	ZkAccountAddress common.Address `json:"zk_account_address"`
	Deployed         bool           `json:"deployed"`
	RequiresProof    bool           `json:"requires_proof"`
	EmailHash        common.Hash    `json:"email_hash"`
	DomainHash       common.Hash    `json:"domain_hash"`
	Nonce            *big.Int       `json:"nonce"`
}

// Balance chain balance in smallest units and human units
type Balance struct {
	Address   common.Address  `json:"address"`
	Token     *common.Address `json:"token,omitempty"` // nil = native asset
	Raw       *big.Int        `json:"raw"`
	Formatted string          `json:"formatted"`
	Decimals  uint8           `json:"decimals"`
}
