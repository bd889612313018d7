package services

import (
	"context"
	"errors"
	"sync"

	"zkaccount-backend/internal/models"
)

// ErrRequestInFlight a chain switch was attempted while requests are pinned to the current chain
var ErrRequestInFlight = errors.New("cannot switch chain while a request is in flight")

// ProfileResolver resolves chain ids to profiles
type ProfileResolver interface {
	Resolve(ctx context.Context, chainID int64) (models.ChainProfile, error)
}

// Session current chain context of one user or CLI process.
// The profile is cached until a switch or invalidation; requests pin it with Begin.
type Session struct {
	mu       sync.Mutex
	resolver ProfileResolver
	chainID  int64
	profile  *models.ChainProfile
	inFlight int
}

// NewSession creates a session on chainID; the profile is loaded on first use
func NewSession(resolver ProfileResolver, chainID int64) *Session {
	return &Session{resolver: resolver, chainID: chainID}
}

// ChainID current chain
func (s *Session) ChainID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID
}

// Begin pins the current profile for one request. release must be called when the request completes;
// until then Switch fails with ErrRequestInFlight.
func (s *Session) Begin(ctx context.Context) (models.ChainProfile, func(), error) {
	for {
		s.mu.Lock()
		if s.profile != nil {
			profile := *s.profile
			s.inFlight++
			s.mu.Unlock()
			var once sync.Once
			return profile, func() { once.Do(s.release) }, nil
		}
		chainID := s.chainID
		s.mu.Unlock()

		profile, err := s.resolver.Resolve(ctx, chainID)
		if err != nil {
			return models.ChainProfile{}, func() {}, err
		}

		s.mu.Lock()
		if s.chainID == chainID && s.profile == nil {
			s.profile = &profile
		}
		s.mu.Unlock()
	}
}

func (s *Session) release() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

// Switch moves the session to chainID. The new chain must resolve; the cached profile is replaced.
func (s *Session) Switch(ctx context.Context, chainID int64) (models.ChainProfile, error) {
	s.mu.Lock()
	busy := s.inFlight > 0
	s.mu.Unlock()
	if busy {
		return models.ChainProfile{}, ErrRequestInFlight
	}

	profile, err := s.resolver.Resolve(ctx, chainID)
	if err != nil {
		return models.ChainProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		return models.ChainProfile{}, ErrRequestInFlight
	}
	s.chainID = chainID
	s.profile = &profile
	return profile, nil
}

// Invalidate drops the cached profile; the next Begin reloads it. Pinned requests keep their copy.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
}
