// Package keyvault holds the owner signing key of a ZK Account
package keyvault

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	// ErrInvalidKey the supplied private key is empty or malformed
	ErrInvalidKey = errors.New("invalid private key")
	// ErrCleared the vault was cleared and can no longer sign
	ErrCleared = errors.New("key vault cleared")
)

// Keystore scrypt cost. Lowered in tests.
var (
	ScryptN = keystore.StandardScryptN
	ScryptP = keystore.StandardScryptP
)

// KeyVault owns one secp256k1 key. The key never leaves the vault; callers sign through it.
type KeyVault struct {
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	address common.Address
}

// Generate creates a vault with a fresh random key
func Generate() (*KeyVault, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return FromECDSA(key), nil
}

// FromHex imports a 32 byte hex key, with or without 0x prefix
func FromHex(hexKey string) (*KeyVault, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("%w: expected 64 hex characters", ErrInvalidKey)
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return FromECDSA(key), nil
}

// FromECDSA wraps an existing key
func FromECDSA(key *ecdsa.PrivateKey) *KeyVault {
	return &KeyVault{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// DecryptJSON imports a key from go-ethereum keystore JSON
func DecryptJSON(blob []byte, passphrase string) (*KeyVault, error) {
	k, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return FromECDSA(k.PrivateKey), nil
}

// Address of the key, still available after Clear
func (v *KeyVault) Address() common.Address {
	return v.address
}

// Cleared reports whether Clear was called
func (v *KeyVault) Cleared() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key == nil
}

// SignTx signs tx for chainID with the latest signer the chain supports
func (v *KeyVault) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.key == nil {
		return nil, ErrCleared
	}
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), v.key)
}

// EncryptJSON exports the key as keystore JSON protected by passphrase
func (v *KeyVault) EncryptJSON(passphrase string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.key == nil {
		return nil, ErrCleared
	}
	k := &keystore.Key{Id: uuid.New(), Address: v.address, PrivateKey: v.key}
	return keystore.EncryptKey(k, passphrase, ScryptN, ScryptP)
}

// Clear zeroes the private scalar and drops the key
func (v *KeyVault) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key == nil {
		return
	}
	words := v.key.D.Bits()
	for i := range words {
		words[i] = 0
	}
	v.key = nil
}

// Redacted shortened address for logs
func (v *KeyVault) Redacted() string {
	h := v.address.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

func (v *KeyVault) String() string {
	return "KeyVault(" + v.Redacted() + ")"
}
