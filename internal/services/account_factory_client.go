package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/contracts"
	"zkaccount-backend/internal/metrics"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/types"
	"zkaccount-backend/internal/utils"
)

// CreateAccountRequest parameters of a ZK Account deployment
type CreateAccountRequest struct {
	Email        string   `json:"email" binding:"required"`
	Salt         *big.Int `json:"salt"`
	RequireProof bool     `json:"require_proof"`
	ChainID      int64    `json:"chain_id"`
}

// AccountFactoryClient predicts, inspects and deploys ZK Accounts
type AccountFactoryClient struct {
	connector ChainConnector
	sender    *TransactionSender
	tracker   SettlementTracker
	journal   TransactionJournal
	cfg       config.TransferConfig
	logger    *logrus.Logger
}

// NewAccountFactoryClient creates the factory client. journal may be nil.
func NewAccountFactoryClient(connector ChainConnector, sender *TransactionSender, tracker SettlementTracker, journal TransactionJournal, cfg config.TransferConfig, logger *logrus.Logger) *AccountFactoryClient {
	return &AccountFactoryClient{
		connector: connector,
		sender:    sender,
		tracker:   tracker,
		journal:   journal,
		cfg:       cfg,
		logger:    logger,
	}
}

// PredictAddress deterministic account address for (owner, salt); no gas, no deployment needed
func (f *AccountFactoryClient) PredictAddress(ctx context.Context, profile models.ChainProfile, owner common.Address, salt *big.Int) (common.Address, error) {
	if salt == nil {
		salt = new(big.Int)
	}
	backend, err := f.connector.Client(ctx, profile)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.PredictAccount(ctx, backend, profile.FactoryContract, owner, salt)
}

// Exists returns the first account bound to owner, or nil when there is none
func (f *AccountFactoryClient) Exists(ctx context.Context, profile models.ChainProfile, owner common.Address) (*models.AccountRecord, error) {
	backend, err := f.connector.Client(ctx, profile)
	if err != nil {
		return nil, err
	}
	accounts, err := contracts.AccountsOf(ctx, backend, profile.FactoryContract, owner)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return f.Inspect(ctx, profile, accounts[0])
}

// Inspect reads the on-chain state of a deployed account; contracts.ErrNoContract when nothing is deployed
func (f *AccountFactoryClient) Inspect(ctx context.Context, profile models.ChainProfile, account common.Address) (*models.AccountRecord, error) {
	backend, err := f.connector.Client(ctx, profile)
	if err != nil {
		return nil, err
	}
	state, err := contracts.ReadAccount(ctx, backend, account)
	if err != nil {
		return nil, err
	}
	return &models.AccountRecord{
		OwnerAddress:     state.Owner,
		ZkAccountAddress: account,
		Deployed:         true,
		RequiresProof:    state.RequiresProof,
		EmailHash:        state.EmailHash,
		DomainHash:       state.DomainHash,
		Nonce:            state.Nonce,
	}, nil
}

// Create deploys an account for the signer. An owner that already has an account gets that
// account back without a new transaction.
func (f *AccountFactoryClient) Create(ctx context.Context, profile models.ChainProfile, signer Signer, req CreateAccountRequest, onSettled func(models.Settlement)) (*models.TransferOutcome, error) {
	attemptID := uuid.NewString()
	log := f.logger.WithFields(logrus.Fields{"attempt_id": attemptID, "chain_id": profile.ChainID})

	fail := func(te *types.TransferError) (*models.TransferOutcome, error) {
		metrics.AccountCreations.WithLabelValues("failed").Inc()
		log.WithFields(logrus.Fields{"stage": te.Stage, "kind": te.Kind}).WithError(te.Err).Warn("❌ [Factory] Account creation failed")
		return models.FailedOutcome(attemptID, te), te
	}

	if !usable(signer) {
		return fail(types.NewTransferError(types.ErrorKindInvalidInput, types.StageValidating, errors.New("missing signing key")))
	}
	email := strings.TrimSpace(req.Email)
	if !utils.IsEmail(email) {
		return fail(types.NewTransferError(types.ErrorKindInvalidInput, types.StageValidating, fmt.Errorf("invalid email %q", req.Email)))
	}
	if req.ChainID != 0 && req.ChainID != profile.ChainID {
		return fail(types.NewTransferError(types.ErrorKindInvalidInput, types.StageValidating,
			fmt.Errorf("request chain %d does not match active chain %d", req.ChainID, profile.ChainID)))
	}
	salt := req.Salt
	if salt == nil {
		salt = new(big.Int)
	}
	if salt.Sign() < 0 {
		return fail(types.NewTransferError(types.ErrorKindInvalidInput, types.StageValidating, errors.New("salt must not be negative")))
	}
	owner := signer.Address()
	log = log.WithField("address", owner.Hex())

	backend, err := f.connector.Client(ctx, profile)
	if err != nil {
		return fail(types.NewTransferError(types.ErrorKindChainUnavailable, types.StageValidating, err))
	}

	existing, err := f.Exists(ctx, profile, owner)
	if err != nil {
		return fail(types.NewTransferError(types.ErrorKindChainUnavailable, types.StageValidating, err))
	}
	if existing != nil {
		metrics.AccountCreations.WithLabelValues("existing").Inc()
		log.WithField("account", existing.ZkAccountAddress.Hex()).Info("ℹ️ [Factory] Owner already has an account")
		return &models.TransferOutcome{
			Success:          true,
			AttemptID:        attemptID,
			ZkAccountAddress: existing.ZkAccountAddress.Hex(),
			AlreadyExisted:   true,
			ExplorerURL:      profile.AddressURL(existing.ZkAccountAddress),
		}, nil
	}

	predicted, err := contracts.PredictAccount(ctx, backend, profile.FactoryContract, owner, salt)
	if err != nil {
		return fail(types.NewTransferError(types.ErrorKindChainUnavailable, types.StageValidating, err))
	}

	data, err := contracts.PackCreate(req.RequireProof, utils.HashEmail(email), utils.HashDomain(email), salt, utils.NormalizeEmail(email))
	if err != nil {
		return fail(types.NewTransferError(types.ErrorKindInvalidInput, types.StageValidating, err))
	}

	msg := ethereum.CallMsg{From: owner, To: &profile.FactoryContract, Data: data}
	estimate, kind, reason, err := f.sender.Estimate(ctx, backend, msg, f.cfg.EstimateAttempts)
	var gasLimit uint64
	switch {
	case err == nil:
		gasLimit = scaleGas(estimate, f.cfg.GasMultiplier)
		if profile.CreateGasCeiling > 0 && gasLimit > profile.CreateGasCeiling {
			gasLimit = profile.CreateGasCeiling
		}
	case kind == types.ErrorKindEstimationInfrastructureFailure:
		gasLimit = profile.CreateGasLimit
		metrics.GasEstimateFallback.WithLabelValues("create_estimate_unavailable").Inc()
		log.WithError(err).WithField("gas_limit", gasLimit).Warn("⚠️ [Factory] Gas estimation unavailable, using chain creation limit")
	default:
		te := types.NewTransferError(kind, types.StageEstimatingGas, err)
		te.Reason = reason
		return fail(te)
	}

	if err := ctx.Err(); err != nil {
		return fail(types.NewTransferError(types.ErrorKindCancelled, types.StageSubmitting, err))
	}

	hash, err := f.sender.Send(ctx, backend, profile, signer, profile.FactoryContract, nil, data, gasLimit)
	if err != nil {
		return fail(types.NewTransferError(classifySendError(err), types.StageSubmitting, err))
	}

	if f.journal != nil {
		rec := &models.TransactionRecord{
			ID:        uuid.NewString(),
			AttemptID: attemptID,
			Kind:      models.TransactionKindCreateAccount,
			ChainID:   profile.ChainID,
			From:      owner.Hex(),
			To:        predicted.Hex(),
			TxHash:    hash.Hex(),
			Status:    models.SettlementSubmitted,
		}
		if err := f.journal.RecordSubmitted(context.WithoutCancel(ctx), rec); err != nil {
			log.WithError(err).Warn("⚠️ [Factory] Failed to journal creation transaction")
		}
	}
	f.tracker.Track(hash, profile, onSettled)

	metrics.AccountCreations.WithLabelValues("submitted").Inc()
	log.WithFields(logrus.Fields{"tx_hash": hash.Hex(), "account": predicted.Hex()}).Info("✅ [Factory] Account creation submitted")
	return &models.TransferOutcome{
		Success:          true,
		TxHash:           hash.Hex(),
		AttemptID:        attemptID,
		ZkAccountAddress: predicted.Hex(),
		ExplorerURL:      profile.TxURL(hash.Hex()),
	}, nil
}
