package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/middleware"
	"zkaccount-backend/internal/models"
)

// TransferHandler send-native and send-token
type TransferHandler struct {
	resolver  ProfileResolver
	transfers TransferService
	logger    *logrus.Logger
}

// NewTransferHandler creates the handler
func NewTransferHandler(resolver ProfileResolver, transfers TransferService, logger *logrus.Logger) *TransferHandler {
	return &TransferHandler{resolver: resolver, transfers: transfers, logger: logger}
}

// TransferBody POST /transfers/* body
type TransferBody struct {
	FromZkAccount string `json:"from_zk_account" binding:"required"`
	To            string `json:"to" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	TokenAddress  string `json:"token_address"`
	ChainID       int64  `json:"chain_id" binding:"required"`
	KeyMaterial
}

// SendNative POST /api/v1/transfers/native
func (h *TransferHandler) SendNative(c *gin.Context) {
	h.send(c, false)
}

// SendToken POST /api/v1/transfers/token
func (h *TransferHandler) SendToken(c *gin.Context) {
	h.send(c, true)
}

func (h *TransferHandler) send(c *gin.Context, token bool) {
	var body TransferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	switch {
	case token && body.TokenAddress == "":
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "token_address is required")
		return
	case !token && body.TokenAddress != "":
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "token_address is not allowed for native transfers")
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
	req := &models.TransferRequest{
		FromZkAccount: body.FromZkAccount,
		To:            body.To,
		TokenAddress:  body.TokenAddress,
		Amount:        body.Amount,
		ChainID:       body.ChainID,
	}
	out, err := h.transfers.Transfer(c.Request.Context(), profile, signer, req, middleware.Session(c), nil)
	respondOutcome(c, out, err)
}
