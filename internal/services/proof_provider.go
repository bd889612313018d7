package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/metrics"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/types"
)

// ProofSource proof issuing endpoint
type ProofSource interface {
	Issue(ctx context.Context, bearerToken string) (*types.RawProofResponse, error)
}

// ProofProvider fetches a single-use proof and reshapes it into the verifier layout
type ProofProvider struct {
	source ProofSource
	logger *logrus.Logger
}

// NewProofProvider creates a provider over source
func NewProofProvider(source ProofSource, logger *logrus.Logger) *ProofProvider {
	return &ProofProvider{source: source, logger: logger}
}

// FetchProof performs exactly one issuer round trip. Errors wrap types.ErrUnauthenticated
// or types.ErrProofGenerationFailed; a payload is returned only when fully populated.
func (p *ProofProvider) FetchProof(ctx context.Context, session models.SessionContext) (*types.ProofPayload, error) {
	if strings.TrimSpace(session.BearerToken) == "" {
		metrics.ProofFetchTotal.WithLabelValues("unauthenticated").Inc()
		return nil, types.ErrUnauthenticated
	}

	raw, err := p.source.Issue(ctx, session.BearerToken)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrUnauthenticated):
			metrics.ProofFetchTotal.WithLabelValues("unauthenticated").Inc()
			return nil, err
		case errors.Is(err, types.ErrProofGenerationFailed):
		default:
			err = fmt.Errorf("%w: %w", types.ErrProofGenerationFailed, err)
		}
		metrics.ProofFetchTotal.WithLabelValues("failed").Inc()
		p.logger.WithError(err).Warn("❌ [Proof] Issuer request failed")
		return nil, err
	}

	payload, err := raw.Reshape()
	if err != nil {
		metrics.ProofFetchTotal.WithLabelValues("malformed").Inc()
		p.logger.WithError(err).Warn("❌ [Proof] Issuer response rejected")
		return nil, fmt.Errorf("%w: %w", types.ErrProofGenerationFailed, err)
	}

	metrics.ProofFetchTotal.WithLabelValues("ok").Inc()
	p.logger.Debug("🔏 [Proof] Proof fetched")
	return payload, nil
}
