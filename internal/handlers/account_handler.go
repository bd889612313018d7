package handlers

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/services"
	"zkaccount-backend/internal/utils"
)

// AccountHandler create-account, check-account and address prediction
type AccountHandler struct {
	resolver ProfileResolver
	accounts AccountService
	logger   *logrus.Logger
}

// NewAccountHandler creates the handler
func NewAccountHandler(resolver ProfileResolver, accounts AccountService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{resolver: resolver, accounts: accounts, logger: logger}
}

// CreateAccountBody POST /accounts body
type CreateAccountBody struct {
	Email        string `json:"email" binding:"required"`
	Salt         string `json:"salt"` // decimal, default 0
	RequireProof bool   `json:"require_proof"`
	ChainID      int64  `json:"chain_id" binding:"required"`
	KeyMaterial
}

// CreateAccount POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var body CreateAccountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	salt, ok := parseSalt(c, body.Salt)
	if !ok {
		return
	}
	signer, err := body.OpenSigner()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_KEY", err.Error())
		return
	}
	defer signer.Clear()

	profile, ok := resolveProfile(c, h.resolver, body.ChainID)
	if !ok {
		return
	}
	out, err := h.accounts.Create(c.Request.Context(), profile, signer, services.CreateAccountRequest{
		Email:        body.Email,
		Salt:         salt,
		RequireProof: body.RequireProof,
		ChainID:      body.ChainID,
	}, nil)
	respondOutcome(c, out, err)
}

// CheckAccount GET /api/v1/accounts/:owner?chain_id=
func (h *AccountHandler) CheckAccount(c *gin.Context) {
	owner := c.Param("owner")
	if !utils.IsEvmAddress(owner) {
		respondError(c, http.StatusBadRequest, "INVALID_ADDRESS", "owner must be a 0x address")
		return
	}
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	profile, ok := resolveProfile(c, h.resolver, chainID)
	if !ok {
		return
	}

	record, err := h.accounts.Exists(c.Request.Context(), profile, common.HexToAddress(owner))
	if err != nil {
		h.logger.WithError(err).WithField("owner", owner).Warn("❌ [API] Account lookup failed")
		respondError(c, http.StatusServiceUnavailable, "CHAIN_UNAVAILABLE", err.Error())
		return
	}
	resp := gin.H{"success": true, "exists": record != nil, "data": record}
	if record != nil {
		resp["explorer_url"] = profile.AddressURL(record.ZkAccountAddress)
	}
	c.JSON(http.StatusOK, resp)
}

// PredictAccount GET /api/v1/accounts/predict?owner=&salt=&chain_id=
func (h *AccountHandler) PredictAccount(c *gin.Context) {
	owner := c.Query("owner")
	if !utils.IsEvmAddress(owner) {
		respondError(c, http.StatusBadRequest, "INVALID_ADDRESS", "owner must be a 0x address")
		return
	}
	salt, ok := parseSalt(c, c.Query("salt"))
	if !ok {
		return
	}
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	profile, ok := resolveProfile(c, h.resolver, chainID)
	if !ok {
		return
	}

	addr, err := h.accounts.PredictAddress(c.Request.Context(), profile, common.HexToAddress(owner), salt)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "CHAIN_UNAVAILABLE", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"owner":              common.HexToAddress(owner).Hex(),
			"salt":               salt.String(),
			"zk_account_address": addr.Hex(),
		},
	})
}

func parseSalt(c *gin.Context, raw string) (*big.Int, bool) {
	if raw == "" {
		return new(big.Int), true
	}
	salt, ok := new(big.Int).SetString(raw, 10)
	if !ok || salt.Sign() < 0 {
		respondError(c, http.StatusBadRequest, "INVALID_SALT", "salt must be a non-negative decimal integer")
		return nil, false
	}
	return salt, true
}
