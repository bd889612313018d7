// Package types provides common type definitions used across the backend
package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// PublicSignalCount is the number of public signals the account verifier accepts
const PublicSignalCount = 3

var (
	// ErrUnauthenticated is returned when the proof issuer rejects the session
	ErrUnauthenticated = errors.New("session is not authenticated")
	// ErrProofGenerationFailed covers every other proof issuer failure
	ErrProofGenerationFailed = errors.New("proof generation failed")
)

// ProofPayload is a Groth16 proof in the argument layout of the account's execute call.
// Field names match the ABI tuple components (a, b, c, publicSignals).
type ProofPayload struct {
	A             [2]*big.Int
	B             [2][2]*big.Int
	C             [2]*big.Int
	PublicSignals [PublicSignalCount]*big.Int
}

// EmptyProof is the all-zero sentinel sent when the account does not require a proof
func EmptyProof() *ProofPayload {
	p := &ProofPayload{}
	for i := 0; i < 2; i++ {
		p.A[i] = new(big.Int)
		p.C[i] = new(big.Int)
		for j := 0; j < 2; j++ {
			p.B[i][j] = new(big.Int)
		}
	}
	for i := range p.PublicSignals {
		p.PublicSignals[i] = new(big.Int)
	}
	return p
}

// IsEmpty reports whether every field is zero
func (p *ProofPayload) IsEmpty() bool {
	zero := func(v *big.Int) bool { return v == nil || v.Sign() == 0 }
	for i := 0; i < 2; i++ {
		if !zero(p.A[i]) || !zero(p.C[i]) {
			return false
		}
		for j := 0; j < 2; j++ {
			if !zero(p.B[i][j]) {
				return false
			}
		}
	}
	for _, s := range p.PublicSignals {
		if !zero(s) {
			return false
		}
	}
	return true
}

// RawProof is the snarkjs style proof returned by the issuing service
type RawProof struct {
	PiA []string   `json:"pi_a"`
	PiB [][]string `json:"pi_b"`
	PiC []string   `json:"pi_c"`
}

// RawProofResponse is the issuing endpoint response body
type RawProofResponse struct {
	Success       bool      `json:"success"`
	Proof         *RawProof `json:"proof"`
	PublicSignals []string  `json:"publicSignals"`
	Error         string    `json:"error,omitempty"`
	Message       string    `json:"message,omitempty"`
}

// ProofParseError reports which field of an issuer response could not be used
type ProofParseError struct {
	Field  string
	Reason string
}

func (e *ProofParseError) Error() string {
	return fmt.Sprintf("invalid proof field %s: %s", e.Field, e.Reason)
}

// Reshape converts the issuer response into the verifier layout.
// The G2 point coordinates in pi_b are swapped within each pair, projective
// coordinates are dropped, and public signals are truncated to PublicSignalCount.
// Either a fully populated payload or a *ProofParseError is returned.
func (r *RawProofResponse) Reshape() (*ProofPayload, error) {
	if r.Proof == nil {
		return nil, &ProofParseError{Field: "proof", Reason: "missing"}
	}
	if len(r.Proof.PiA) < 2 {
		return nil, &ProofParseError{Field: "pi_a", Reason: fmt.Sprintf("expected at least 2 elements, got %d", len(r.Proof.PiA))}
	}
	if len(r.Proof.PiB) < 2 {
		return nil, &ProofParseError{Field: "pi_b", Reason: fmt.Sprintf("expected at least 2 rows, got %d", len(r.Proof.PiB))}
	}
	if len(r.Proof.PiC) < 2 {
		return nil, &ProofParseError{Field: "pi_c", Reason: fmt.Sprintf("expected at least 2 elements, got %d", len(r.Proof.PiC))}
	}
	if len(r.PublicSignals) < PublicSignalCount {
		return nil, &ProofParseError{Field: "publicSignals", Reason: fmt.Sprintf("expected at least %d elements, got %d", PublicSignalCount, len(r.PublicSignals))}
	}

	p := &ProofPayload{}
	var err error
	for i := 0; i < 2; i++ {
		if p.A[i], err = parseFieldElement(fmt.Sprintf("pi_a[%d]", i), r.Proof.PiA[i]); err != nil {
			return nil, err
		}
		if p.C[i], err = parseFieldElement(fmt.Sprintf("pi_c[%d]", i), r.Proof.PiC[i]); err != nil {
			return nil, err
		}
		row := r.Proof.PiB[i]
		if len(row) < 2 {
			return nil, &ProofParseError{Field: fmt.Sprintf("pi_b[%d]", i), Reason: fmt.Sprintf("expected 2 coordinates, got %d", len(row))}
		}
		for j := 0; j < 2; j++ {
			// verifier expects (c1, c0) ordering for Fp2 elements
			src := 1 - j
			if p.B[i][j], err = parseFieldElement(fmt.Sprintf("pi_b[%d][%d]", i, src), row[src]); err != nil {
				return nil, err
			}
		}
	}
	for i := 0; i < PublicSignalCount; i++ {
		if p.PublicSignals[i], err = parseFieldElement(fmt.Sprintf("publicSignals[%d]", i), r.PublicSignals[i]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func parseFieldElement(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &ProofParseError{Field: field, Reason: "empty"}
	}
	v := new(big.Int)
	var ok bool
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		_, ok = v.SetString(s[2:], 16)
	} else {
		_, ok = v.SetString(s, 10)
	}
	if !ok {
		return nil, &ProofParseError{Field: field, Reason: fmt.Sprintf("not an integer: %q", s)}
	}
	if v.Sign() < 0 {
		return nil, &ProofParseError{Field: field, Reason: "negative"}
	}
	return v, nil
}
