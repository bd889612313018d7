package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"zkaccount-backend/internal/keyvault"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/services"
	"zkaccount-backend/internal/types"
)

// ProfileResolver resolves the chain a request targets
type ProfileResolver interface {
	Resolve(ctx context.Context, chainID int64) (models.ChainProfile, error)
}

// AccountService ZK Account factory operations
type AccountService interface {
	PredictAddress(ctx context.Context, profile models.ChainProfile, owner common.Address, salt *big.Int) (common.Address, error)
	Exists(ctx context.Context, profile models.ChainProfile, owner common.Address) (*models.AccountRecord, error)
	Create(ctx context.Context, profile models.ChainProfile, signer services.Signer, req services.CreateAccountRequest, onSettled func(models.Settlement)) (*models.TransferOutcome, error)
}

// TransferService spends from ZK Accounts
type TransferService interface {
	Transfer(ctx context.Context, profile models.ChainProfile, signer services.Signer, req *models.TransferRequest, session models.SessionContext, onSettled func(models.Settlement)) (*models.TransferOutcome, error)
}

// KeyMaterial signing key of a request: a raw private key, or an encrypted keystore with its passphrase.
// It is decrypted for the duration of one request and cleared afterwards.
type KeyMaterial struct {
	PrivateKey string          `json:"private_key,omitempty"`
	Keystore   json.RawMessage `json:"keystore,omitempty"`
	Passphrase string          `json:"passphrase,omitempty"`
}

// OpenSigner decrypts the key material into a vault; the caller must Clear it
func (k KeyMaterial) OpenSigner() (*keyvault.KeyVault, error) {
	switch {
	case len(k.Keystore) > 0:
		return keyvault.DecryptJSON(k.Keystore, k.Passphrase)
	case k.PrivateKey != "":
		return keyvault.FromHex(k.PrivateKey)
	default:
		return nil, fmt.Errorf("%w: private_key or keystore is required", keyvault.ErrInvalidKey)
	}
}

// StatusForError HTTP status of a classified failure
func StatusForError(err error) int {
	te, ok := types.AsTransferError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch te.Kind {
	case types.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case types.ErrorKindRecipientNotFound:
		return http.StatusNotFound
	case types.ErrorKindInsufficientTransferBalance, types.ErrorKindInsufficientGasReserve, types.ErrorKindWouldRevert:
		return http.StatusUnprocessableEntity
	case types.ErrorKindProofUnavailable:
		if errors.Is(err, types.ErrUnauthenticated) {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	case types.ErrorKindProofReplay:
		return http.StatusConflict
	case types.ErrorKindEstimationInfrastructureFailure, types.ErrorKindChainUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrorKindTimeout:
		return http.StatusGatewayTimeout
	case types.ErrorKindCancelled:
		return http.StatusRequestTimeout
	case types.ErrorKindSubmissionFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondOutcome writes an orchestrator or factory result
func respondOutcome(c *gin.Context, out *models.TransferOutcome, err error) {
	if err != nil {
		status := StatusForError(err)
		if out == nil {
			c.JSON(status, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(status, out)
		return
	}
	c.JSON(http.StatusOK, out)
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// chainIDParam reads chain_id from the query; there is no default network
func chainIDParam(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Query("chain_id"))
	if raw == "" {
		respondError(c, http.StatusBadRequest, "MISSING_CHAIN_ID", "chain_id is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "INVALID_CHAIN_ID", fmt.Sprintf("invalid chain_id %q", raw))
		return 0, false
	}
	return id, true
}

// resolveProfile maps a resolver failure to 503 CHAIN_UNAVAILABLE
func resolveProfile(c *gin.Context, resolver ProfileResolver, chainID int64) (models.ChainProfile, bool) {
	profile, err := resolver.Resolve(c.Request.Context(), chainID)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "CHAIN_UNAVAILABLE", err.Error())
		return models.ChainProfile{}, false
	}
	return profile, true
}
