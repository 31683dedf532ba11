package verify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/core/reward"
	"github.com/plastix-network/plastix/business/core/verify"
	"github.com/plastix-network/plastix/business/data/store/batch"
	"github.com/plastix-network/plastix/business/data/store/tran"
	"github.com/plastix-network/plastix/business/sys/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type batchStore struct {
	queryErr   error
	summary    batch.TranSummary
	summaryErr error
	updateErr  error

	verification *batch.Verification
	audits       []batch.Audit
}

func (s *batchStore) QueryByID(ctx context.Context, batchID uuid.UUID) (batch.Batch, error) {
	if s.queryErr != nil {
		return batch.Batch{}, s.queryErr
	}
	return batch.Batch{ID: batchID.String(), VerificationStatus: batch.VerificationPending}, nil
}

func (s *batchStore) TransactionSummary(ctx context.Context, batchID uuid.UUID) (batch.TranSummary, error) {
	return s.summary, s.summaryErr
}

func (s *batchStore) UpdateVerification(ctx context.Context, batchID uuid.UUID, v batch.Verification, now time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.verification = &v
	return nil
}

func (s *batchStore) AppendAudit(ctx context.Context, aud batch.Audit) error {
	s.audits = append(s.audits, aud)
	return nil
}

type tranStore struct {
	status string
}

func (s *tranStore) UpdateStatusForBatch(ctx context.Context, batchID uuid.UUID, status string) error {
	s.status = status
	return nil
}

func TestVerify(t *testing.T) {
	type table struct {
		name           string
		bs             *batchStore
		verifiedWeight int
		classification verify.Classification
		diffPct        float64
		allocation     bool
		settledStatus  string
		tranStatus     string
	}

	summary := batch.TranSummary{Count: 10, TotalWeightGrams: 1000}

	tt := []table{
		{
			name:           "exact match approves",
			bs:             &batchStore{summary: summary},
			verifiedWeight: 1000,
			classification: verify.Approved,
			diffPct:        0,
			allocation:     true,
			settledStatus:  batch.VerificationVerified,
			tranStatus:     tran.StatusConfirmed,
		},
		{
			name:           "shortfall at the tolerance boundary approves",
			bs:             &batchStore{summary: summary},
			verifiedWeight: 950,
			classification: verify.Approved,
			diffPct:        5,
			allocation:     true,
			settledStatus:  batch.VerificationVerified,
			tranStatus:     tran.StatusConfirmed,
		},
		{
			name:           "excess at the tolerance boundary approves",
			bs:             &batchStore{summary: summary},
			verifiedWeight: 1050,
			classification: verify.Approved,
			diffPct:        5,
			allocation:     true,
			settledStatus:  batch.VerificationVerified,
			tranStatus:     tran.StatusConfirmed,
		},
		{
			name:           "discrepancy above tolerance flags for review",
			bs:             &batchStore{summary: summary},
			verifiedWeight: 1150,
			classification: verify.Flagged,
			diffPct:        15,
		},
		{
			name:           "discrepancy above the rejection threshold rejects",
			bs:             &batchStore{summary: summary},
			verifiedWeight: 1300,
			classification: verify.Rejected,
			diffPct:        30,
			settledStatus:  batch.VerificationRejected,
			tranStatus:     tran.StatusFailed,
		},
		{
			name:           "empty batch rejects with full discrepancy",
			bs:             &batchStore{},
			verifiedWeight: 1000,
			classification: verify.Rejected,
			diffPct:        100,
			settledStatus:  batch.VerificationRejected,
			tranStatus:     tran.StatusFailed,
		},
		{
			name:           "unknown batch rejects without settling",
			bs:             &batchStore{queryErr: database.ErrNotFound},
			verifiedWeight: 1000,
			classification: verify.Rejected,
			diffPct:        100,
		},
		{
			name:           "summary failure rejects without settling",
			bs:             &batchStore{summaryErr: errors.New("connection reset")},
			verifiedWeight: 1000,
			classification: verify.Rejected,
			diffPct:        100,
		},
		{
			name:           "settle failure downgrades an approval",
			bs:             &batchStore{summary: summary, updateErr: errors.New("connection reset")},
			verifiedWeight: 1000,
			classification: verify.Rejected,
			diffPct:        0,
		},
	}

	t.Log("Given the need to classify a recycler's weight verification.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen verifying %dg against the declared total.", testID, tst.verifiedWeight)
			{
				f := func(t *testing.T) {
					ts := &tranStore{}
					core := verify.NewCore(zap.NewNop().Sugar(), tst.bs, ts, verify.DefaultPolicy(), reward.DefaultPolicy())

					req := verify.Request{
						BatchID:             uuid.New(),
						RecyclerID:          uuid.New(),
						VerifiedWeightGrams: tst.verifiedWeight,
						ProofHash:           "QmProof",
					}

					res := core.Verify(context.Background(), req, time.Now())

					if res.Classification != tst.classification {
						t.Fatalf("\t%s\tTest %d:\tShould classify as %s, got %s.", failed, testID, tst.classification, res.Classification)
					}
					t.Logf("\t%s\tTest %d:\tShould classify as %s.", success, testID, tst.classification)

					if res.WeightDiffPct != tst.diffPct {
						t.Errorf("\t%s\tTest %d:\tShould compute the discrepancy.", failed, testID)
						t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, res.WeightDiffPct)
						t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.diffPct)
					} else {
						t.Logf("\t%s\tTest %d:\tShould compute the discrepancy.", success, testID)
					}

					if tst.allocation != (res.Allocation != nil) {
						t.Errorf("\t%s\tTest %d:\tShould only allocate rewards on approval.", failed, testID)
					} else {
						t.Logf("\t%s\tTest %d:\tShould only allocate rewards on approval.", success, testID)
					}

					switch tst.settledStatus {
					case "":
						if tst.bs.verification != nil {
							t.Errorf("\t%s\tTest %d:\tShould not settle the batch.", failed, testID)
						} else {
							t.Logf("\t%s\tTest %d:\tShould not settle the batch.", success, testID)
						}

					default:
						if tst.bs.verification == nil || tst.bs.verification.Status != tst.settledStatus {
							t.Errorf("\t%s\tTest %d:\tShould settle the batch as %s.", failed, testID, tst.settledStatus)
						} else {
							t.Logf("\t%s\tTest %d:\tShould settle the batch as %s.", success, testID, tst.settledStatus)
						}

						if ts.status != tst.tranStatus {
							t.Errorf("\t%s\tTest %d:\tShould propagate %s to the member transactions.", failed, testID, tst.tranStatus)
						} else {
							t.Logf("\t%s\tTest %d:\tShould propagate %s to the member transactions.", success, testID, tst.tranStatus)
						}
					}

					if len(tst.bs.audits) != 1 {
						t.Errorf("\t%s\tTest %d:\tShould append exactly one audit row, got %d.", failed, testID, len(tst.bs.audits))
					} else {
						t.Logf("\t%s\tTest %d:\tShould append exactly one audit row.", success, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}
