package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/utils"
)

// ErrInvalidChainConfig chain entry cannot be turned into a usable profile
var ErrInvalidChainConfig = errors.New("invalid chain configuration")

var (
	defaultMinGasReserve  = big.NewInt(1e15)
	defaultCreateGasLimit = uint64(3000000)
)

// ChainConfig one network entry of the chains section, also the shape served by the configuration endpoint
type ChainConfig struct {
	ChainID           int64  `yaml:"chainId" json:"chainId"`
	Name              string `yaml:"name" json:"name"`
	NativeSymbol      string `yaml:"nativeSymbol" json:"nativeSymbol"`
	RPCURL            string `yaml:"rpcUrl" json:"rpcUrl"`
	Explorer          string `yaml:"explorer" json:"explorerUrl"`
	DirectoryContract string `yaml:"directoryContract" json:"directoryContract"`
	FactoryContract   string `yaml:"factoryContract" json:"factoryContract"`
	Enabled           *bool  `yaml:"enabled" json:"isActive"`
	MinGasReserveWei  string `yaml:"minGasReserveWei" json:"minGasReserveWei,omitempty"`
	GasPriceWei       string `yaml:"gasPriceWei" json:"gasPriceWei,omitempty"`
	CreateGasLimit    uint64 `yaml:"createGasLimit" json:"createGasLimit,omitempty"`
	CreateGasCeiling  uint64 `yaml:"createGasCeiling" json:"createGasCeiling,omitempty"`
}

// ToProfile validates the entry and converts it to a ChainProfile.
// Missing RPC URL or contract addresses are errors: there is no implicit default network.
func (c ChainConfig) ToProfile() (models.ChainProfile, error) {
	if c.ChainID <= 0 {
		return models.ChainProfile{}, fmt.Errorf("%w: chain id %d", ErrInvalidChainConfig, c.ChainID)
	}
	if strings.TrimSpace(c.RPCURL) == "" {
		return models.ChainProfile{}, fmt.Errorf("%w: chain %d has no rpc url", ErrInvalidChainConfig, c.ChainID)
	}
	for name, addr := range map[string]string{"directoryContract": c.DirectoryContract, "factoryContract": c.FactoryContract} {
		if !utils.IsEvmAddress(addr) {
			return models.ChainProfile{}, fmt.Errorf("%w: chain %d %s %q", ErrInvalidChainConfig, c.ChainID, name, addr)
		}
	}

	profile := models.ChainProfile{
		ChainID:           c.ChainID,
		Name:              c.Name,
		NativeSymbol:      c.NativeSymbol,
		RPCURL:            strings.TrimSpace(c.RPCURL),
		ExplorerURL:       strings.TrimRight(c.Explorer, "/"),
		DirectoryContract: common.HexToAddress(c.DirectoryContract),
		FactoryContract:   common.HexToAddress(c.FactoryContract),
		IsActive:          c.Enabled == nil || *c.Enabled,
		MinGasReserve:     new(big.Int).Set(defaultMinGasReserve),
		CreateGasLimit:    c.CreateGasLimit,
		CreateGasCeiling:  c.CreateGasCeiling,
	}
	if c.MinGasReserveWei != "" {
		v, ok := new(big.Int).SetString(c.MinGasReserveWei, 10)
		if !ok || v.Sign() < 0 {
			return models.ChainProfile{}, fmt.Errorf("%w: chain %d minGasReserveWei %q", ErrInvalidChainConfig, c.ChainID, c.MinGasReserveWei)
		}
		profile.MinGasReserve = v
	}
	if c.GasPriceWei != "" {
		v, ok := new(big.Int).SetString(c.GasPriceWei, 10)
		if !ok || v.Sign() <= 0 {
			return models.ChainProfile{}, fmt.Errorf("%w: chain %d gasPriceWei %q", ErrInvalidChainConfig, c.ChainID, c.GasPriceWei)
		}
		profile.GasPrice = v
	}
	if profile.CreateGasLimit == 0 {
		profile.CreateGasLimit = defaultCreateGasLimit
	}
	if profile.CreateGasCeiling == 0 {
		profile.CreateGasCeiling = 2 * profile.CreateGasLimit
	}
	return profile, nil
}

// StaticChains chains section indexed by chain id. Entries that fail validation are reported, not dropped silently.
func (c *Config) StaticChains() (map[int64]ChainConfig, error) {
	out := make(map[int64]ChainConfig, len(c.Chains))
	for _, chain := range c.Chains {
		if _, err := chain.ToProfile(); err != nil {
			return nil, err
		}
		out[chain.ChainID] = chain
	}
	return out, nil
}
