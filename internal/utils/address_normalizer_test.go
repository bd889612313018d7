package utils

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestIsEvmAddress(t *testing.T) {
	valid := []string{
		"0x742d35Cc6634C0532925a3b0F26750C66d78EB66",
		"0x0000000000000000000000000000000000000000",
		" 0x742d35cc6634c0532925a3b0f26750c66d78eb66 ",
	}
	invalid := []string{"", "742d35Cc6634C0532925a3b0F26750C66d78EB66", "0x742d35", "0xZZ2d35Cc6634C0532925a3b0F26750C66d78EB66", "alice@example.com"}
	for _, a := range valid {
		if !IsEvmAddress(a) {
			t.Errorf("IsEvmAddress(%q) = false, want true", a)
		}
	}
	for _, a := range invalid {
		if IsEvmAddress(a) {
			t.Errorf("IsEvmAddress(%q) = true, want false", a)
		}
	}
}

func TestIsEmail(t *testing.T) {
	for _, e := range []string{"alice@example.com", "A.B+tag@mail.co.uk"} {
		if !IsEmail(e) {
			t.Errorf("IsEmail(%q) = false", e)
		}
	}
	for _, e := range []string{"alice", "alice@", "@example.com", "alice@example", "0x742d35Cc6634C0532925a3b0F26750C66d78EB66"} {
		if IsEmail(e) {
			t.Errorf("IsEmail(%q) = true", e)
		}
	}
}

func TestHashEmail_Normalizes(t *testing.T) {
	if HashEmail(" Alice@Example.COM ") != HashEmail("alice@example.com") {
		t.Fatalf("hash differs for equivalent emails")
	}
	if HashEmail("alice@example.com") != crypto.Keccak256Hash([]byte("alice@example.com")) {
		t.Fatalf("hash is not keccak256 of the normalized email")
	}
	if HashDomain("bob@Example.com") != crypto.Keccak256Hash([]byte("example.com")) {
		t.Fatalf("domain hash mismatch")
	}
}

func TestSameAddress(t *testing.T) {
	if !SameAddress("0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "0x742d35cc6634c0532925a3b0f26750c66d78eb66") {
		t.Errorf("checksum case should not matter")
	}
	if SameAddress("0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "bob@example.com") {
		t.Errorf("email is never the same address")
	}
}
