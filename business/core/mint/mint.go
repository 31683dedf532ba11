// Package mint implements the batch mint orchestrator: the state machine
// that drives a verified batch through on-chain reward minting with retries,
// exponential backoff and persisted status transitions. Batch state is only
// written at well-defined checkpoints so a shutdown mid-attempt never leaves
// a half-recorded mint.
package mint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/data/store/batch"
	"github.com/plastix-network/plastix/foundation/chain"
)

// Set of errors the trigger can return. These are precondition failures; a
// failed chain submission is reported through the persisted batch state.
var (
	ErrNotConfigured  = errors.New("chain client is not configured")
	ErrNotEligible    = errors.New("batch is not eligible for minting")
	ErrMissingWallets = errors.New("missing wallet addresses")
)

// Policy carries the retry and sweep constants.
type Policy struct {
	MaxRetries    int
	RetryDelay    time.Duration
	SweepLimit    int
	SweepCooldown time.Duration
}

// DefaultPolicy returns the production retry constants: 3 attempts, 5s base
// backoff, sweeps of 10 batches with a 1 hour cooldown.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		RetryDelay:    5 * time.Second,
		SweepLimit:    10,
		SweepCooldown: time.Hour,
	}
}

// Result is the proof of a successful mint.
type Result struct {
	BatchID     string `json:"batch_id"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	RetryCount  int    `json:"retry_count"`
}

// SweepResult reports one pass of the failed-batch sweep.
type SweepResult struct {
	Retried   int `json:"retried"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// =============================================================================

// Submitter declares the chain access the orchestrator needs. A nil
// submitter is the explicit "service not configured" state.
type Submitter interface {
	SubmitMintBatch(ctx context.Context, req chain.MintRequest) (chain.MintReceipt, error)
	Status(ctx context.Context, txHash string) (chain.TxStatus, error)
	Info() chain.ContractInfo
}

// BatchStorer declares the batch persistence the orchestrator needs.
type BatchStorer interface {
	QueryByID(ctx context.Context, batchID uuid.UUID) (batch.Batch, error)
	ClaimForMint(ctx context.Context, batchID uuid.UUID, now time.Time) (bool, error)
	UpdateMintSuccess(ctx context.Context, batchID uuid.UUID, res batch.MintResult, now time.Time) error
	UpdateMintRetrying(ctx context.Context, batchID uuid.UUID, retryCount int, lastError string, now time.Time) error
	UpdateMintFailed(ctx context.Context, batchID uuid.UUID, retryCount int, lastError string, now time.Time) error
	SelectRetryCandidates(ctx context.Context, limit int, maxRetries int, cooldown time.Duration, now time.Time) ([]batch.Batch, error)
}

// UserStorer declares the wallet address lookup the orchestrator needs.
type UserStorer interface {
	WalletAddresses(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]string, error)
}

// EventHandler receives mint lifecycle notifications.
type EventHandler func(batchID uuid.UUID, stage string, format string, args ...any)

// Core manages the minting API.
type Core struct {
	log        *zap.SugaredLogger
	submitter  Submitter
	batchStore BatchStorer
	userStore  UserStorer
	policy     Policy
	ev         EventHandler

	// wait is the backoff sleep, injectable so tests can observe the
	// exponential schedule without sleeping.
	wait func(ctx context.Context, d time.Duration) error
}

// NewCore constructs a core for mint orchestration. The submitter may be nil
// when the service runs without chain configuration; every trigger then
// fails up front with ErrNotConfigured.
func NewCore(log *zap.SugaredLogger, submitter Submitter, batchStore BatchStorer, userStore UserStorer, policy Policy, ev EventHandler) *Core {
	if ev == nil {
		ev = func(uuid.UUID, string, string, ...any) {}
	}

	return &Core{
		log:        log,
		submitter:  submitter,
		batchStore: batchStore,
		userStore:  userStore,
		policy:     policy,
		ev:         ev,
		wait:       sleep,
	}
}

// =============================================================================

// TriggerMint drives one batch through the full mint state machine. The
// caller decides whether to run it synchronously (sweep, tooling) or hand
// it to the Runner (HTTP fire-and-forget).
func (c *Core) TriggerMint(ctx context.Context, batchID uuid.UUID) (Result, error) {

	// A missing chain client is a configuration error, not a retryable
	// fault. Fail before touching any state.
	if c.submitter == nil {
		return Result{}, ErrNotConfigured
	}

	bat, err := c.batchStore.QueryByID(ctx, batchID)
	if err != nil {
		return Result{}, fmt.Errorf("loading batch: %w", err)
	}

	// The claim is a single conditional update: it only matches a verified
	// batch whose mint status is empty or FAILED_ON_CHAIN. Two concurrent
	// triggers can never both pass this gate.
	claimed, err := c.batchStore.ClaimForMint(ctx, batchID, time.Now())
	if err != nil {
		return Result{}, fmt.Errorf("claiming batch: %w", err)
	}
	if !claimed {
		return Result{}, fmt.Errorf("batch %s [verification %s, mint %s]: %w",
			batchID, bat.VerificationStatus, mintStatus(bat), ErrNotEligible)
	}

	c.ev(batchID, "mint:claimed", "batch claimed for minting")

	req, err := c.buildRequest(ctx, bat)
	if err != nil {

		// A missing wallet is a data problem. Release the claim to
		// FAILED_ON_CHAIN without consuming a retry attempt.
		c.persistFailed(ctx, batchID, 0, err.Error())
		return Result{}, err
	}

	return c.attemptLoop(ctx, batchID, req)
}

// attemptLoop runs the retry loop around the chain submission.
func (c *Core) attemptLoop(ctx context.Context, batchID uuid.UUID, req chain.MintRequest) (Result, error) {
	var retryCount int
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxRetries; attempt++ {
		c.ev(batchID, "mint:attempt", "submitting mint, attempt %d of %d", attempt, c.policy.MaxRetries)

		receipt, err := c.submitter.SubmitMintBatch(ctx, req)
		if err == nil {
			res := Result{
				BatchID:     batchID.String(),
				TxHash:      receipt.TxHash,
				BlockNumber: receipt.BlockNumber,
				GasUsed:     receipt.GasUsed,
				RetryCount:  retryCount,
			}

			if err := c.persistSuccess(ctx, batchID, res); err != nil {
				return Result{}, err
			}

			c.ev(batchID, "mint:minted", "minted in block %d, tx %s", receipt.BlockNumber, receipt.TxHash)
			return res, nil
		}

		lastErr = err
		c.log.Errorw("mint attempt failed", "batch", batchID, "attempt", attempt, "kind", chain.Kind(err), "ERROR", err)

		// A non-retryable failure goes straight to FAILED_ON_CHAIN. Writing
		// an intermediate RETRYING state for an error that can never
		// succeed would only mislead operators.
		if !chain.IsRetryable(err) {
			c.ev(batchID, "mint:failed", "non-retryable failure: %s", err)
			c.persistFailed(ctx, batchID, retryCount, err.Error())
			return Result{}, fmt.Errorf("non-retryable chain failure: %w", err)
		}

		retryCount++
		if attempt == c.policy.MaxRetries {
			break
		}

		if err := c.batchStore.UpdateMintRetrying(detach(ctx), batchID, retryCount, err.Error(), time.Now()); err != nil {
			c.log.Errorw("persisting retrying state", "batch", batchID, "ERROR", err)
		}

		delay := c.policy.RetryDelay << (retryCount - 1)
		c.ev(batchID, "mint:retrying", "retry %d in %s", retryCount, delay)

		if err := c.wait(ctx, delay); err != nil {
			c.persistFailed(ctx, batchID, retryCount, "interrupted during retry backoff")
			return Result{}, fmt.Errorf("backoff interrupted: %w", err)
		}
	}

	c.ev(batchID, "mint:failed", "retries exhausted: %s", lastErr)
	c.persistFailed(ctx, batchID, retryCount, lastErr.Error())

	return Result{}, fmt.Errorf("mint failed after %d attempts: %w", retryCount, lastErr)
}

// buildRequest resolves the wallet addresses for the batch's collector and
// recycler and assembles the chain call.
func (c *Core) buildRequest(ctx context.Context, bat batch.Batch) (chain.MintRequest, error) {
	if bat.RecyclerID == nil {
		return chain.MintRequest{}, fmt.Errorf("batch has no recycler: %w", ErrMissingWallets)
	}
	if bat.VerifiedWeightGrams == nil {
		return chain.MintRequest{}, fmt.Errorf("batch has no verified weight: %w", ErrMissingWallets)
	}

	collectorID, err := uuid.Parse(bat.CollectorID)
	if err != nil {
		return chain.MintRequest{}, fmt.Errorf("parsing collector id: %w", err)
	}
	recyclerID, err := uuid.Parse(*bat.RecyclerID)
	if err != nil {
		return chain.MintRequest{}, fmt.Errorf("parsing recycler id: %w", err)
	}

	wallets, err := c.userStore.WalletAddresses(ctx, collectorID, recyclerID)
	if err != nil {
		return chain.MintRequest{}, fmt.Errorf("resolving wallet addresses: %w", err)
	}

	collectorAddr := wallets[collectorID]
	recyclerAddr := wallets[recyclerID]
	if !common.IsHexAddress(collectorAddr) || !common.IsHexAddress(recyclerAddr) {
		return chain.MintRequest{}, fmt.Errorf("collector %q recycler %q: %w", collectorAddr, recyclerAddr, ErrMissingWallets)
	}

	return chain.MintRequest{
		Collector:   common.HexToAddress(collectorAddr),
		Recycler:    common.HexToAddress(recyclerAddr),
		WeightGrams: *bat.VerifiedWeightGrams,
		ProofHash:   bat.ProofHash,
	}, nil
}

// =============================================================================

// RetryFailedBatches selects failed batches past their cooldown and retries
// them sequentially. Called on a schedule and from the ops endpoint.
func (c *Core) RetryFailedBatches(ctx context.Context) (SweepResult, error) {
	if c.submitter == nil {
		return SweepResult{}, ErrNotConfigured
	}

	candidates, err := c.batchStore.SelectRetryCandidates(ctx, c.policy.SweepLimit, c.policy.MaxRetries, c.policy.SweepCooldown, time.Now())
	if err != nil {
		return SweepResult{}, fmt.Errorf("selecting retry candidates: %w", err)
	}

	var sweep SweepResult
	for _, bat := range candidates {
		batchID, err := uuid.Parse(bat.ID)
		if err != nil {
			c.log.Errorw("sweep: bad batch id", "batch", bat.ID, "ERROR", err)
			continue
		}

		sweep.Retried++
		if _, err := c.TriggerMint(ctx, batchID); err != nil {
			sweep.Failed++
			continue
		}
		sweep.Succeeded++
	}

	c.log.Infow("retry sweep complete", "retried", sweep.Retried, "succeeded", sweep.Succeeded, "failed", sweep.Failed)

	return sweep, nil
}

// Status polls the chain for the specified transaction hash. An unmined
// transaction reports Confirmed false rather than an error.
func (c *Core) Status(ctx context.Context, txHash string) (chain.TxStatus, error) {
	if c.submitter == nil {
		return chain.TxStatus{}, ErrNotConfigured
	}
	return c.submitter.Status(ctx, txHash)
}

// ContractInfo describes the contract binding, or ErrNotConfigured when the
// service runs without a chain client.
func (c *Core) ContractInfo() (chain.ContractInfo, error) {
	if c.submitter == nil {
		return chain.ContractInfo{}, ErrNotConfigured
	}
	return c.submitter.Info(), nil
}

// =============================================================================

// persistSuccess records the terminal MINTED state.
func (c *Core) persistSuccess(ctx context.Context, batchID uuid.UUID, res Result) error {
	mr := batch.MintResult{
		TxHash:      res.TxHash,
		BlockNumber: int64(res.BlockNumber),
		GasUsed:     res.GasUsed,
		RetryCount:  res.RetryCount,
	}

	if err := c.batchStore.UpdateMintSuccess(detach(ctx), batchID, mr, time.Now()); err != nil {
		return fmt.Errorf("persisting mint success: %w", err)
	}

	return nil
}

// persistFailed records the terminal FAILED_ON_CHAIN state. Failures here
// are logged only; there is nothing better to do with them.
func (c *Core) persistFailed(ctx context.Context, batchID uuid.UUID, retryCount int, lastError string) {
	if err := c.batchStore.UpdateMintFailed(detach(ctx), batchID, retryCount, lastError, time.Now()); err != nil {
		c.log.Errorw("persisting mint failure", "batch", batchID, "ERROR", err)
	}
}

// mintStatus renders the nullable mint status for error messages.
func mintStatus(bat batch.Batch) string {
	if bat.MintStatus == nil {
		return "none"
	}
	return *bat.MintStatus
}

// sleep blocks for d unless the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// detach keeps the request values but drops the cancellation signal so a
// checkpoint write completes even when the trigger's context is cancelled
// at shutdown.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
