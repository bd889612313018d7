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
	"golang.org/x/sync/errgroup"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/contracts"
	"zkaccount-backend/internal/metrics"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/types"
	"zkaccount-backend/internal/utils"
)

// ProofFetcher single-use proof source
type ProofFetcher interface {
	FetchProof(ctx context.Context, session models.SessionContext) (*types.ProofPayload, error)
}

// AccountInspector reads a deployed account
type AccountInspector interface {
	Inspect(ctx context.Context, profile models.ChainProfile, account common.Address) (*models.AccountRecord, error)
}

// TransferOrchestrator runs one transfer through
// Validating → ResolvingRecipient → CheckingBalance → ResolvingProof → EstimatingGas → Submitting → Submitted | Failed.
// It keeps no state between requests.
type TransferOrchestrator struct {
	connector  ChainConnector
	recipients *RecipientResolver
	balances   *BalanceReader
	accounts   AccountInspector
	proofs     ProofFetcher
	sender     *TransactionSender
	tracker    SettlementTracker
	journal    TransactionJournal
	cfg        config.TransferConfig
	logger     *logrus.Logger
}

// NewTransferOrchestrator wires the orchestrator. journal may be nil.
func NewTransferOrchestrator(
	connector ChainConnector,
	recipients *RecipientResolver,
	balances *BalanceReader,
	accounts AccountInspector,
	proofs ProofFetcher,
	sender *TransactionSender,
	tracker SettlementTracker,
	journal TransactionJournal,
	cfg config.TransferConfig,
	logger *logrus.Logger,
) *TransferOrchestrator {
	return &TransferOrchestrator{
		connector:  connector,
		recipients: recipients,
		balances:   balances,
		accounts:   accounts,
		proofs:     proofs,
		sender:     sender,
		tracker:    tracker,
		journal:    journal,
		cfg:        cfg,
		logger:     logger,
	}
}

// transferAttempt per-call state, never shared
type transferAttempt struct {
	id        string
	req       *models.TransferRequest
	session   models.SessionContext
	profile   models.ChainProfile
	signer    Signer
	from      common.Address
	to        common.Address
	token     *common.Address
	amount    *big.Int
	account   *models.AccountRecord
	proof     *types.ProofPayload
	gasLimit  uint64
	callData  []byte
	log       *logrus.Entry
	stage     types.Stage
	estimated bool
}

// Transfer executes req from the signer's ZK Account. On success the outcome carries the transaction
// hash and confirmation is reported later through onSettled. On failure the outcome describes the
// error and the returned error is a *types.TransferError.
func (o *TransferOrchestrator) Transfer(ctx context.Context, profile models.ChainProfile, signer Signer, req *models.TransferRequest, session models.SessionContext, onSettled func(models.Settlement)) (*models.TransferOutcome, error) {
	a := &transferAttempt{
		id:      uuid.NewString(),
		req:     req,
		session: session,
		profile: profile,
		signer:  signer,
		stage:   types.StageValidating,
	}
	a.log = o.logger.WithFields(logrus.Fields{"attempt_id": a.id, "chain_id": profile.ChainID})

	steps := []struct {
		stage types.Stage
		run   func(context.Context, *transferAttempt) *types.TransferError
	}{
		{types.StageValidating, o.validate},
		{types.StageResolvingRecipient, o.resolveRecipient},
		{types.StageCheckingBalance, o.checkBalances},
		{types.StageResolvingProof, o.resolveProof},
		{types.StageEstimatingGas, o.estimateGas},
	}
	for _, step := range steps {
		a.stage = step.stage
		if te := step.run(ctx, a); te != nil {
			return o.fail(ctx, a, te)
		}
	}

	a.stage = types.StageSubmitting
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, a, types.NewTransferError(types.ErrorKindCancelled, types.StageSubmitting, err))
	}
	backend, err := o.connector.Client(ctx, profile)
	if err != nil {
		return o.fail(ctx, a, types.NewTransferError(types.ErrorKindChainUnavailable, types.StageSubmitting, err))
	}
	hash, err := o.sender.Send(ctx, backend, profile, signer, a.from, nil, a.callData, a.gasLimit)
	if err != nil {
		return o.fail(ctx, a, types.NewTransferError(classifySendError(err), types.StageSubmitting, err))
	}

	// accepted by the node: from here on the attempt cannot fail
	a.stage = types.StageSubmitted
	o.journalSubmitted(ctx, a, hash)
	o.tracker.Track(hash, profile, onSettled)

	metrics.TransfersTotal.WithLabelValues(string(types.StageSubmitted), "").Inc()
	a.log.WithFields(logrus.Fields{
		"tx_hash":   hash.Hex(),
		"stage":     a.stage,
		"gas_limit": a.gasLimit,
		"estimated": a.estimated,
		"proof":     a.account.RequiresProof,
	}).Info("✅ [Transfer] Submitted")
	return &models.TransferOutcome{
		Success:          true,
		TxHash:           hash.Hex(),
		AttemptID:        a.id,
		ZkAccountAddress: a.from.Hex(),
		ExplorerURL:      profile.TxURL(hash.Hex()),
	}, nil
}

func (o *TransferOrchestrator) fail(ctx context.Context, a *transferAttempt, te *types.TransferError) (*models.TransferOutcome, error) {
	if te.Stage == "" {
		te.Stage = a.stage
	}
	if te.Kind != types.ErrorKindInvalidInput && errors.Is(ctx.Err(), context.Canceled) {
		te.Kind = types.ErrorKindCancelled
	}
	metrics.TransfersTotal.WithLabelValues(string(te.Stage), string(te.Kind)).Inc()
	a.log.WithFields(logrus.Fields{
		"stage": te.Stage,
		"kind":  te.Kind,
	}).WithError(te.Err).Warn("❌ [Transfer] Failed")
	return models.FailedOutcome(a.id, te), te
}

func invalid(format string, args ...interface{}) *types.TransferError {
	return types.NewTransferError(types.ErrorKindInvalidInput, types.StageValidating, fmt.Errorf(format, args...))
}

// validate checks everything that needs no network call
func (o *TransferOrchestrator) validate(ctx context.Context, a *transferAttempt) *types.TransferError {
	req := a.req
	if req == nil {
		return invalid("empty request")
	}
	if !usable(a.signer) {
		return invalid("missing signing key")
	}
	if req.ChainID != 0 && req.ChainID != a.profile.ChainID {
		return invalid("request chain %d does not match active chain %d", req.ChainID, a.profile.ChainID)
	}
	if !a.profile.IsActive {
		return types.NewTransferError(types.ErrorKindChainUnavailable, types.StageValidating, fmt.Errorf("chain %d is inactive", a.profile.ChainID))
	}
	if !utils.IsEvmAddress(req.FromZkAccount) {
		return invalid("invalid sender account %q", req.FromZkAccount)
	}
	a.from = common.HexToAddress(req.FromZkAccount)
	if !req.IsNative() {
		if !utils.IsEvmAddress(req.TokenAddress) {
			return invalid("invalid token address %q", req.TokenAddress)
		}
		token := common.HexToAddress(req.TokenAddress)
		a.token = &token
	}
	if err := utils.ValidateAmount(req.Amount); err != nil {
		return invalid("%v", err)
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		return invalid("missing recipient")
	}
	if utils.IsEvmAddress(to) && common.HexToAddress(to) == a.from {
		return invalid("recipient is the sending account")
	}
	a.log = a.log.WithField("address", a.from.Hex())
	return nil
}

func (o *TransferOrchestrator) resolveRecipient(ctx context.Context, a *transferAttempt) *types.TransferError {
	to, err := o.recipients.Resolve(ctx, a.req.To, a.profile)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidRecipient):
		return types.NewTransferError(types.ErrorKindInvalidInput, types.StageResolvingRecipient, err)
	case errors.Is(err, ErrRecipientNotFound):
		return types.NewTransferError(types.ErrorKindRecipientNotFound, types.StageResolvingRecipient, err)
	default:
		return types.NewTransferError(types.ErrorKindChainUnavailable, types.StageResolvingRecipient, err)
	}
	if to == a.from {
		return types.NewTransferError(types.ErrorKindInvalidInput, types.StageResolvingRecipient, errors.New("recipient resolves to the sending account"))
	}
	a.to = to
	return nil
}

// checkBalances reads the account, its asset balance and the owner's native balance concurrently
func (o *TransferOrchestrator) checkBalances(ctx context.Context, a *transferAttempt) *types.TransferError {
	var (
		account  *models.AccountRecord
		asset    *models.Balance
		reserve  *models.Balance
		inspectE error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// a missing account is reported after the join, not as a read failure
		account, inspectE = o.accounts.Inspect(gctx, a.profile, a.from)
		return nil
	})
	g.Go(func() error {
		var err error
		if a.token == nil {
			asset, err = o.balances.GetBalance(gctx, a.from.Hex(), a.profile)
		} else {
			asset, err = o.balances.GetTokenBalance(gctx, a.from.Hex(), a.token.Hex(), a.profile)
		}
		return err
	})
	g.Go(func() error {
		var err error
		reserve, err = o.balances.GetBalance(gctx, a.signer.Address().Hex(), a.profile)
		return err
	})
	if err := g.Wait(); err != nil {
		if a.token != nil && errors.Is(err, contracts.ErrNoContract) {
			return types.NewTransferError(types.ErrorKindInvalidInput, types.StageCheckingBalance,
				fmt.Errorf("no token contract at %s: %w", a.token.Hex(), err))
		}
		return readFailure(types.StageCheckingBalance, err)
	}

	switch {
	case errors.Is(inspectE, contracts.ErrNoContract):
		return types.NewTransferError(types.ErrorKindInvalidInput, types.StageCheckingBalance, fmt.Errorf("no ZK Account deployed at %s", a.from.Hex()))
	case inspectE != nil:
		return readFailure(types.StageCheckingBalance, inspectE)
	case account.OwnerAddress != a.signer.Address():
		return types.NewTransferError(types.ErrorKindInvalidInput, types.StageCheckingBalance,
			fmt.Errorf("signing key %s does not own account %s", a.signer.Address().Hex(), a.from.Hex()))
	}
	a.account = account

	amount, err := utils.ParseUnits(a.req.Amount, asset.Decimals)
	if err != nil {
		return types.NewTransferError(types.ErrorKindInvalidInput, types.StageCheckingBalance, err)
	}
	a.amount = amount

	symbol := ""
	if a.token == nil {
		symbol = a.profile.Symbol()
	}
	if asset.Raw.Cmp(amount) < 0 {
		te := types.NewTransferError(types.ErrorKindInsufficientTransferBalance, types.StageCheckingBalance,
			fmt.Errorf("balance %s below amount %s", asset.Raw, amount))
		te.Shortfall = shortfall(asset.Raw, amount, asset.Decimals, symbol)
		return te
	}

	minReserve := a.profile.MinGasReserve
	if minReserve == nil || minReserve.Sign() <= 0 {
		minReserve = big.NewInt(1)
	}
	if reserve.Raw.Cmp(minReserve) < 0 {
		te := types.NewTransferError(types.ErrorKindInsufficientGasReserve, types.StageCheckingBalance,
			fmt.Errorf("owner balance %s below gas reserve %s", reserve.Raw, minReserve))
		te.Shortfall = shortfall(reserve.Raw, minReserve, utils.NativeDecimals, a.profile.Symbol())
		return te
	}
	return nil
}

func shortfall(available, required *big.Int, decimals uint8, symbol string) *types.Shortfall {
	return &types.Shortfall{
		AvailableRaw:       available.String(),
		AvailableFormatted: utils.FormatUnits(available, decimals),
		RequiredRaw:        required.String(),
		RequiredFormatted:  utils.FormatUnits(required, decimals),
		Symbol:             symbol,
	}
}

func readFailure(stage types.Stage, err error) *types.TransferError {
	if errors.Is(err, utils.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewTransferError(types.ErrorKindTimeout, stage, err)
	}
	if errors.Is(err, ErrInvalidAddress) {
		return types.NewTransferError(types.ErrorKindInvalidInput, stage, err)
	}
	return types.NewTransferError(types.ErrorKindChainUnavailable, stage, err)
}

// resolveProof fetches the proof once when the account demands one, and builds the execute call
func (o *TransferOrchestrator) resolveProof(ctx context.Context, a *transferAttempt) *types.TransferError {
	a.proof = types.EmptyProof()
	if a.account.RequiresProof {
		proof, err := o.proofs.FetchProof(ctx, a.session)
		if err != nil {
			return types.NewTransferError(types.ErrorKindProofUnavailable, types.StageResolvingProof, err)
		}
		a.proof = proof
	}

	target, value, inner := a.to, a.amount, []byte(nil)
	if a.token != nil {
		data, err := contracts.PackTokenTransfer(a.to, a.amount)
		if err != nil {
			return types.NewTransferError(types.ErrorKindInvalidInput, types.StageResolvingProof, err)
		}
		target, value, inner = *a.token, new(big.Int), data
	}
	callData, err := contracts.PackExecute(a.proof, target, value, inner)
	if err != nil {
		return types.NewTransferError(types.ErrorKindInvalidInput, types.StageResolvingProof, err)
	}
	a.callData = callData
	return nil
}

// estimateGas doubles a successful estimate. Infrastructure failures fall back to a fixed limit
// only when no proof is attached, so a single-use proof is never spent on a blind submission.
func (o *TransferOrchestrator) estimateGas(ctx context.Context, a *transferAttempt) *types.TransferError {
	backend, err := o.connector.Client(ctx, a.profile)
	if err != nil {
		return types.NewTransferError(types.ErrorKindChainUnavailable, types.StageEstimatingGas, err)
	}
	msg := ethereum.CallMsg{From: a.signer.Address(), To: &a.from, Data: a.callData}
	estimate, kind, reason, err := o.sender.Estimate(ctx, backend, msg, o.cfg.EstimateAttempts)
	if err == nil {
		a.gasLimit = scaleGas(estimate, o.cfg.GasMultiplier)
		a.estimated = true
		return nil
	}

	if kind == types.ErrorKindEstimationInfrastructureFailure && !a.account.RequiresProof {
		a.gasLimit = o.cfg.FallbackGasLimit
		metrics.GasEstimateFallback.WithLabelValues("estimate_unavailable").Inc()
		a.log.WithError(err).WithField("gas_limit", a.gasLimit).Warn("⚠️ [Transfer] Gas estimation unavailable, using fallback limit")
		return nil
	}
	te := types.NewTransferError(kind, types.StageEstimatingGas, err)
	te.Reason = reason
	return te
}

func (o *TransferOrchestrator) journalSubmitted(ctx context.Context, a *transferAttempt, hash common.Hash) {
	if o.journal == nil {
		return
	}
	rec := &models.TransactionRecord{
		ID:        uuid.NewString(),
		AttemptID: a.id,
		Kind:      models.TransactionKindTransfer,
		ChainID:   a.profile.ChainID,
		From:      a.from.Hex(),
		To:        a.to.Hex(),
		Amount:    a.amount.String(),
		TxHash:    hash.Hex(),
		Status:    models.SettlementSubmitted,
	}
	if a.token != nil {
		rec.Token = a.token.Hex()
	}
	if err := o.journal.RecordSubmitted(context.WithoutCancel(ctx), rec); err != nil {
		a.log.WithError(err).Warn("⚠️ [Transfer] Failed to journal transaction")
	}
}
