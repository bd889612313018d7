package clients

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/models"
)

// DefaultGasPrice used when neither the node nor the chain profile supplies a price (5 gwei)
var DefaultGasPrice = big.NewInt(5_000_000_000)

// GasPriceClient node based gas pricing with a bump over the suggestion
type GasPriceClient struct {
	bumpPercent int64
	logger      *logrus.Logger
}

// NewGasPriceClient creates a pricer that adds bumpPercent to the node suggestion
func NewGasPriceClient(bumpPercent int64, logger *logrus.Logger) *GasPriceClient {
	return &GasPriceClient{bumpPercent: bumpPercent, logger: logger}
}

// GasPrice returns SuggestGasPrice plus the bump, or the profile's configured price, or DefaultGasPrice
func (c *GasPriceClient) GasPrice(ctx context.Context, backend ChainBackend, profile models.ChainProfile) *big.Int {
	suggested, err := backend.SuggestGasPrice(ctx)
	if err == nil && suggested != nil && suggested.Sign() > 0 {
		bumped := new(big.Int).Mul(suggested, big.NewInt(100+c.bumpPercent))
		return bumped.Div(bumped, big.NewInt(100))
	}

	fallback := DefaultGasPrice
	if profile.GasPrice != nil && profile.GasPrice.Sign() > 0 {
		fallback = profile.GasPrice
	}
	c.logger.WithFields(logrus.Fields{
		"chain_id":  profile.ChainID,
		"gas_price": fallback.String(),
	}).WithError(err).Warn("⚠️ Gas price suggestion unavailable, using configured price")
	return new(big.Int).Set(fallback)
}
