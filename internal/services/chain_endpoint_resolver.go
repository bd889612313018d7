package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/clients"
	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/models"
)

// ErrChainNotConfigured no usable configuration exists for the chain
var ErrChainNotConfigured = errors.New("chain is not configured")

// ChainSource one place chain configuration can come from
type ChainSource interface {
	ChainConfig(ctx context.Context, chainID int64) (*config.ChainConfig, error)
}

// StaticChainSource chains section of the config file
type StaticChainSource map[int64]config.ChainConfig

// ChainConfig returns the static entry for chainID
func (s StaticChainSource) ChainConfig(_ context.Context, chainID int64) (*config.ChainConfig, error) {
	c, ok := s[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", clients.ErrChainNotFound, chainID)
	}
	return &c, nil
}

// ChainEndpointResolver turns a chain id into a validated ChainProfile.
// Sources are tried in order; the first one that knows the chain wins.
type ChainEndpointResolver struct {
	sources []ChainSource
	logger  *logrus.Logger
}

// NewChainEndpointResolver creates a resolver over sources
func NewChainEndpointResolver(logger *logrus.Logger, sources ...ChainSource) *ChainEndpointResolver {
	return &ChainEndpointResolver{sources: sources, logger: logger}
}

// Resolve returns the profile of chainID. Inactive or incomplete chains are refused with ErrChainNotConfigured.
func (r *ChainEndpointResolver) Resolve(ctx context.Context, chainID int64) (models.ChainProfile, error) {
	log := r.logger.WithField("chain_id", chainID)

	var lastErr error
	for _, source := range r.sources {
		cfg, err := source.ChainConfig(ctx, chainID)
		if err != nil {
			if !errors.Is(err, clients.ErrChainNotFound) {
				log.WithError(err).Warn("⚠️ [ChainResolver] Chain source failed, trying next")
			}
			lastErr = err
			continue
		}
		profile, err := cfg.ToProfile()
		if err != nil {
			return models.ChainProfile{}, fmt.Errorf("%w: %v", ErrChainNotConfigured, err)
		}
		if !profile.IsActive {
			return models.ChainProfile{}, fmt.Errorf("%w: chain %d is inactive", ErrChainNotConfigured, chainID)
		}
		log.WithField("name", profile.Name).Debug("📋 [ChainResolver] Chain profile resolved")
		return profile, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no chain sources")
	}
	return models.ChainProfile{}, fmt.Errorf("%w: %d: %v", ErrChainNotConfigured, chainID, lastErr)
}
