package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/contracts"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/utils"
)

var (
	// ErrInvalidRecipient input is neither an address nor an email
	ErrInvalidRecipient = errors.New("recipient is neither an address nor an email")
	// ErrRecipientNotFound no account is bound to the email
	ErrRecipientNotFound = errors.New("no account bound to this email")
)

// RecipientResolver turns a typed recipient into an address. Read only and idempotent.
type RecipientResolver struct {
	connector ChainConnector
	logger    *logrus.Logger
}

// NewRecipientResolver creates a resolver
func NewRecipientResolver(connector ChainConnector, logger *logrus.Logger) *RecipientResolver {
	return &RecipientResolver{connector: connector, logger: logger}
}

// Resolve returns a raw address as is without touching the network; an email is looked up
// in the chain's directory contract by the hash of its normalized form.
func (r *RecipientResolver) Resolve(ctx context.Context, input string, profile models.ChainProfile) (common.Address, error) {
	input = strings.TrimSpace(input)
	switch {
	case utils.IsEvmAddress(input):
		return common.HexToAddress(input), nil
	case utils.IsEmail(input):
	default:
		return common.Address{}, ErrInvalidRecipient
	}

	backend, err := r.connector.Client(ctx, profile)
	if err != nil {
		return common.Address{}, fmt.Errorf("directory lookup: %w", err)
	}
	bound, err := contracts.LookupEmail(ctx, backend, profile.DirectoryContract, utils.HashEmail(input))
	if err != nil {
		return common.Address{}, fmt.Errorf("directory lookup: %w", err)
	}
	if bound == (common.Address{}) {
		return common.Address{}, ErrRecipientNotFound
	}
	r.logger.WithFields(logrus.Fields{
		"chain_id": profile.ChainID,
		"address":  bound.Hex(),
	}).Debug("📇 [Recipient] Email resolved")
	return bound, nil
}

// Resolution result of one sequenced resolve
type Resolution struct {
	Seq     uint64
	Input   string
	Address common.Address
	Err     error
	Stale   bool // a newer input was submitted before this one settled
}

// RecipientSequencer last-input-wins wrapper for speculative resolution while the user types
type RecipientSequencer struct {
	resolver *RecipientResolver
	latest   atomic.Uint64
}

// NewRecipientSequencer wraps resolver
func NewRecipientSequencer(resolver *RecipientResolver) *RecipientSequencer {
	return &RecipientSequencer{resolver: resolver}
}

// Resolve resolves input and flags the result stale when a later Resolve started meanwhile
func (s *RecipientSequencer) Resolve(ctx context.Context, input string, profile models.ChainProfile) Resolution {
	seq := s.latest.Add(1)
	addr, err := s.resolver.Resolve(ctx, input, profile)
	return Resolution{
		Seq:     seq,
		Input:   input,
		Address: addr,
		Err:     err,
		Stale:   s.latest.Load() != seq,
	}
}
