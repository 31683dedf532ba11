// Package verify implements the weight verification engine. It compares the
// weight a recycler measured against the total the batch members declared
// and classifies the batch. The engine fails closed: any internal failure
// produces a REJECTED classification, never an approval on ambiguous state.
package verify

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/core/reward"
	"github.com/plastix-network/plastix/business/data/store/batch"
	"github.com/plastix-network/plastix/business/data/store/tran"
)

// Classification is the outcome of a weight verification.
type Classification string

// Set of classifications.
const (
	Approved Classification = "APPROVED"
	Flagged  Classification = "FLAGGED"
	Rejected Classification = "REJECTED"
)

// Policy carries the fraud tolerance thresholds, in percent.
type Policy struct {
	TolerancePct float64
	RejectPct    float64
}

// DefaultPolicy returns the production thresholds: 5% tolerance, 20%
// rejection.
func DefaultPolicy() Policy {
	return Policy{
		TolerancePct: 5,
		RejectPct:    20,
	}
}

// Result is the definitive answer of one verification call.
type Result struct {
	BatchID             string         `json:"batch_id"`
	Classification      Classification `json:"classification"`
	OriginalWeightGrams int            `json:"original_weight_grams"`
	VerifiedWeightGrams int            `json:"verified_weight_grams"`
	WeightDiffPct       float64        `json:"weight_diff_pct"`
	Allocation          *reward.Allocation `json:"allocation,omitempty"`
	Message             string         `json:"message"`
}

// Request carries the recycler's verification submission.
type Request struct {
	BatchID             uuid.UUID
	RecyclerID          uuid.UUID
	VerifiedWeightGrams int
	ProofHash           string
	Notes               string
}

// =============================================================================

// BatchStorer declares the batch persistence the engine needs.
type BatchStorer interface {
	QueryByID(ctx context.Context, batchID uuid.UUID) (batch.Batch, error)
	TransactionSummary(ctx context.Context, batchID uuid.UUID) (batch.TranSummary, error)
	UpdateVerification(ctx context.Context, batchID uuid.UUID, v batch.Verification, now time.Time) error
	AppendAudit(ctx context.Context, aud batch.Audit) error
}

// TranStorer declares the transaction persistence the engine needs to
// propagate the batch outcome to member transactions.
type TranStorer interface {
	UpdateStatusForBatch(ctx context.Context, batchID uuid.UUID, status string) error
}

// Core manages the verification API.
type Core struct {
	log          *zap.SugaredLogger
	batchStore   BatchStorer
	tranStore    TranStorer
	policy       Policy
	rewardPolicy reward.Policy
}

// NewCore constructs a core for weight verification.
func NewCore(log *zap.SugaredLogger, batchStore BatchStorer, tranStore TranStorer, policy Policy, rewardPolicy reward.Policy) Core {
	return Core{
		log:          log,
		batchStore:   batchStore,
		tranStore:    tranStore,
		policy:       policy,
		rewardPolicy: rewardPolicy,
	}
}

// Verify classifies the specified batch against the recycler's measured
// weight. The call always returns a definitive classification; storage
// failures reject defensively rather than error out, so a batch can never
// mint off an unverifiable state. Every call appends one audit row.
func (c Core) Verify(ctx context.Context, req Request, now time.Time) Result {
	res := Result{
		BatchID:             req.BatchID.String(),
		VerifiedWeightGrams: req.VerifiedWeightGrams,
	}

	// Audit whatever we conclude, even on the failure paths below.
	defer func() {
		c.appendAudit(ctx, req, res, now)
	}()

	if _, err := c.batchStore.QueryByID(ctx, req.BatchID); err != nil {
		c.log.Errorw("verify", "batch", req.BatchID, "status", "batch not found", "ERROR", err)
		res.Classification = Rejected
		res.WeightDiffPct = 100
		res.Message = "batch not found: rejected"
		return res
	}

	// The declared total is recomputed from the member transactions, never
	// read off the batch row.
	summary, err := c.batchStore.TransactionSummary(ctx, req.BatchID)
	if err != nil {
		c.log.Errorw("verify", "batch", req.BatchID, "status", "summary failed", "ERROR", err)
		res.Classification = Rejected
		res.WeightDiffPct = 100
		res.Message = "unable to read batch transactions: rejected"
		return res
	}

	if summary.Count == 0 {
		res.Classification = Rejected
		res.WeightDiffPct = 100
		res.Message = "batch has no transactions: rejected with 100.00% difference"
		c.settle(ctx, req, &res, now)
		return res
	}

	res.OriginalWeightGrams = summary.TotalWeightGrams
	res.WeightDiffPct = diffPct(summary.TotalWeightGrams, req.VerifiedWeightGrams)

	switch {
	case res.WeightDiffPct <= c.policy.TolerancePct:
		res.Classification = Approved
		res.Message = fmt.Sprintf("weight verified within tolerance: %.2f%% difference", res.WeightDiffPct)

		alloc := reward.Allocate(c.rewardPolicy, req.VerifiedWeightGrams, summary.Count)
		res.Allocation = &alloc

	case res.WeightDiffPct <= c.policy.RejectPct:
		res.Classification = Flagged
		res.Message = fmt.Sprintf("weight discrepancy %.2f%% exceeds tolerance: held for manual review", res.WeightDiffPct)

	default:
		res.Classification = Rejected
		res.Message = fmt.Sprintf("weight discrepancy %.2f%% exceeds rejection threshold", res.WeightDiffPct)
	}

	// FLAGGED batches stay pending; only approvals and rejections settle.
	if res.Classification != Flagged {
		c.settle(ctx, req, &res, now)
	}

	return res
}

// settle writes the classification to the batch row and propagates the
// outcome to the member transactions. A write failure downgrades the result
// to REJECTED so the caller never sees an approval the store did not record.
func (c Core) settle(ctx context.Context, req Request, res *Result, now time.Time) {
	status := batch.VerificationRejected
	tranStatus := tran.StatusFailed

	v := batch.Verification{
		RecyclerID:          req.RecyclerID.String(),
		VerifiedWeightGrams: req.VerifiedWeightGrams,
		WeightDiffPct:       round2(res.WeightDiffPct),
		ProofHash:           req.ProofHash,
	}

	if res.Classification == Approved {
		status = batch.VerificationVerified
		tranStatus = tran.StatusConfirmed
		v.CitizenEIU = res.Allocation.CitizenRewards
		v.CollectorEIU = res.Allocation.CollectorBonus
		v.RecyclerEIU = res.Allocation.RecyclerReward
		v.TotalEIU = res.Allocation.TotalEIU
	}
	v.Status = status

	if err := c.batchStore.UpdateVerification(ctx, req.BatchID, v, now); err != nil {
		c.log.Errorw("verify", "batch", req.BatchID, "status", "settle failed", "ERROR", err)
		res.Classification = Rejected
		res.Allocation = nil
		res.Message = "unable to record verification: rejected"
		return
	}

	if err := c.tranStore.UpdateStatusForBatch(ctx, req.BatchID, tranStatus); err != nil {

		// The batch outcome is already settled; member status propagation
		// is repairable, so log and continue.
		c.log.Errorw("verify", "batch", req.BatchID, "status", "tran propagation failed", "ERROR", err)
	}
}

// appendAudit writes the audit row for this call. Audit failures are logged
// and swallowed: logging must never abort the operation it documents.
func (c Core) appendAudit(ctx context.Context, req Request, res Result, now time.Time) {
	recyclerID := req.RecyclerID.String()

	aud := batch.Audit{
		ID:                  uuid.NewString(),
		BatchID:             req.BatchID.String(),
		RecyclerID:          &recyclerID,
		DeclaredWeightGrams: res.OriginalWeightGrams,
		VerifiedWeightGrams: req.VerifiedWeightGrams,
		WeightDiffPct:       round2(res.WeightDiffPct),
		Classification:      string(res.Classification),
		Note:                req.Notes,
		DateCreated:         now.UTC(),
	}

	if err := c.batchStore.AppendAudit(ctx, aud); err != nil {
		c.log.Errorw("verify", "batch", req.BatchID, "status", "audit write failed", "ERROR", err)
	}
}

// =============================================================================

// diffPct computes the relative discrepancy at full precision. The 2 decimal
// rounding only happens when the figure is persisted for display.
func diffPct(originalWeight int, verifiedWeight int) float64 {
	if originalWeight <= 0 {
		return 100
	}

	diff := math.Abs(float64(originalWeight) - float64(verifiedWeight))
	return diff / float64(originalWeight) * 100
}

// round2 rounds to 2 decimal places for persisted display values.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
