package utils

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	evmAddressPattern = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// IsEvmAddress checks whether input is a 0x prefixed 20 byte hex address
func IsEvmAddress(address string) bool {
	return evmAddressPattern.MatchString(strings.TrimSpace(address))
}

// IsEmail checks whether input has the shape of an email address
func IsEmail(input string) bool {
	return emailPattern.MatchString(strings.TrimSpace(input))
}

// NormalizeEmail trims and lower cases an email so equal mailboxes hash equally
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part after '@' of a normalized email
func EmailDomain(email string) string {
	normalized := NormalizeEmail(email)
	if i := strings.LastIndex(normalized, "@"); i >= 0 {
		return normalized[i+1:]
	}
	return ""
}

// HashEmail keccak256 of the normalized email, the directory lookup key
func HashEmail(email string) common.Hash {
	return crypto.Keccak256Hash([]byte(NormalizeEmail(email)))
}

// HashDomain keccak256 of the email's domain
func HashDomain(email string) common.Hash {
	return crypto.Keccak256Hash([]byte(EmailDomain(email)))
}

// SameAddress compares two hex addresses ignoring checksum case
func SameAddress(a, b string) bool {
	if !IsEvmAddress(a) || !IsEvmAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}
