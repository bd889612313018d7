package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/repository"
	"zkaccount-backend/internal/services"
	"zkaccount-backend/internal/utils"
)

// RecipientService resolves typed recipients
type RecipientService interface {
	Resolve(ctx context.Context, input string, profile models.ChainProfile) (common.Address, error)
}

// BalanceService reads balances
type BalanceService interface {
	GetBalances(ctx context.Context, queries []services.BalanceQuery, profile models.ChainProfile) ([]*models.Balance, error)
}

// QueryHandler read-only endpoints: recipient resolution, balances, transaction history
type QueryHandler struct {
	resolver   ProfileResolver
	recipients RecipientService
	balances   BalanceService
	journal    repository.TransactionRepository // nil when the database is disabled
	logger     *logrus.Logger
}

// NewQueryHandler creates the handler. journal may be nil.
func NewQueryHandler(resolver ProfileResolver, recipients RecipientService, balances BalanceService, journal repository.TransactionRepository, logger *logrus.Logger) *QueryHandler {
	return &QueryHandler{resolver: resolver, recipients: recipients, balances: balances, journal: journal, logger: logger}
}

// ResolveRecipient GET /api/v1/recipients/resolve?input=&chain_id=
func (h *QueryHandler) ResolveRecipient(c *gin.Context) {
	input := strings.TrimSpace(c.Query("input"))
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	profile, ok := resolveProfile(c, h.resolver, chainID)
	if !ok {
		return
	}

	addr, err := h.recipients.Resolve(c.Request.Context(), input, profile)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidRecipient):
		respondError(c, http.StatusBadRequest, "INVALID_RECIPIENT", err.Error())
		return
	case errors.Is(err, services.ErrRecipientNotFound):
		respondError(c, http.StatusNotFound, "RECIPIENT_NOT_FOUND", err.Error())
		return
	default:
		respondError(c, http.StatusServiceUnavailable, "CHAIN_UNAVAILABLE", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"input":    input,
			"address":  addr.Hex(),
			"is_email": utils.IsEmail(input),
		},
	})
}

// GetBalances GET /api/v1/balances/:address?chain_id=&tokens=0x..,0x..
// The native balance is always first, followed by the listed tokens in order.
func (h *QueryHandler) GetBalances(c *gin.Context) {
	address := c.Param("address")
	if !utils.IsEvmAddress(address) {
		respondError(c, http.StatusBadRequest, "INVALID_ADDRESS", "address must be a 0x address")
		return
	}
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	queries := []services.BalanceQuery{{Address: address}}
	for _, token := range strings.Split(c.Query("tokens"), ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if !utils.IsEvmAddress(token) {
			respondError(c, http.StatusBadRequest, "INVALID_ADDRESS", "invalid token address "+token)
			return
		}
		queries = append(queries, services.BalanceQuery{Address: address, Token: token})
	}
	profile, ok := resolveProfile(c, h.resolver, chainID)
	if !ok {
		return
	}

	balances, err := h.balances.GetBalances(c.Request.Context(), queries, profile)
	if err != nil {
		status, code := http.StatusServiceUnavailable, "CHAIN_UNAVAILABLE"
		switch {
		case errors.Is(err, utils.ErrTimeout):
			status, code = http.StatusGatewayTimeout, "TIMEOUT"
		case errors.Is(err, services.ErrInvalidAddress):
			status, code = http.StatusBadRequest, "INVALID_ADDRESS"
		}
		respondError(c, status, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": balances, "symbol": profile.Symbol()})
}

// ListTransactions GET /api/v1/transactions/:address?chain_id=&page=&page_size=
func (h *QueryHandler) ListTransactions(c *gin.Context) {
	if h.journal == nil {
		respondError(c, http.StatusServiceUnavailable, "JOURNAL_DISABLED", "transaction journal is not configured")
		return
	}
	address := c.Param("address")
	if !utils.IsEvmAddress(address) {
		respondError(c, http.StatusBadRequest, "INVALID_ADDRESS", "address must be a 0x address")
		return
	}
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = repository.NormalizePage(page, pageSize)

	records, total, err := h.journal.ListByAccount(c.Request.Context(), chainID, common.HexToAddress(address).Hex(), page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("❌ [API] Failed to list transactions")
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
