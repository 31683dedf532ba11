package fraud_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/core/fraud"
	"github.com/plastix-network/plastix/business/data/store/tran"
	"github.com/plastix-network/plastix/business/sys/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type storer struct {
	trns []tran.Tran
	err  error
}

func (s storer) QueryByBatch(ctx context.Context, batchID uuid.UUID) ([]tran.Tran, error) {
	return s.trns, s.err
}

// trans builds a transaction set where each entry gets a unique citizen and
// its timestamps are spread minutes apart, so only the heuristics a test
// explicitly provokes can fire.
func trans(weights ...int) []tran.Tran {
	base := time.Date(2026, time.August, 28, 10, 0, 0, 0, time.UTC)

	trns := make([]tran.Tran, len(weights))
	for i, w := range weights {
		trns[i] = tran.Tran{
			ID:          uuid.NewString(),
			CitizenID:   fmt.Sprintf("citizen-%d", i),
			CollectorID: "collector-1",
			WeightGrams: w,
			Status:      tran.StatusPendingBatch,
			DateCreated: base.Add(time.Duration(i) * 5 * time.Minute),
		}
	}

	return trns
}

func TestEvaluate(t *testing.T) {
	type table struct {
		name       string
		store      storer
		score      int
		suspicious bool
	}

	uniform := trans(500, 500, 500, 500, 500, 500)

	repeat := trans(120, 340, 560, 780)
	repeat[2].CitizenID = repeat[0].CitizenID

	burst := trans(120, 340, 560)
	for i := range burst {
		burst[i].DateCreated = burst[0].DateCreated.Add(time.Duration(i) * time.Second)
	}

	tt := []table{
		{
			name:       "clean batch scores zero",
			store:      storer{trns: trans(120, 340, 560, 780, 910)},
			score:      0,
			suspicious: false,
		},
		{
			name:       "mostly tiny weights",
			store:      storer{trns: trans(20, 30, 40, 50, 60, 70, 80, 90, 500, 600)},
			score:      30,
			suspicious: false,
		},
		{
			name:       "uniform weights across more than five transactions",
			store:      storer{trns: uniform},
			score:      40,
			suspicious: false,
		},
		{
			name:       "repeat citizen",
			store:      storer{trns: repeat},
			score:      20,
			suspicious: false,
		},
		{
			name:       "oversize average weight",
			store:      storer{trns: trans(12000, 15000, 11000)},
			score:      25,
			suspicious: false,
		},
		{
			name:       "burst creation window",
			store:      storer{trns: burst},
			score:      15,
			suspicious: false,
		},
		{
			name:       "stacked heuristics pass the threshold",
			store:      storer{trns: func() []tran.Tran {
				trns := trans(20, 30, 40, 50, 60)
				trns[3].CitizenID = trns[0].CitizenID
				for i := range trns {
					trns[i].DateCreated = trns[0].DateCreated.Add(time.Duration(i) * time.Second)
				}
				return trns
			}()},
			score:      65,
			suspicious: true,
		},
		{
			name:       "empty batch is maximally suspicious",
			store:      storer{},
			score:      100,
			suspicious: true,
		},
		{
			name:       "unresolvable batch is maximally suspicious",
			store:      storer{err: database.ErrNotFound},
			score:      100,
			suspicious: true,
		},
		{
			name:       "store failure is maximally suspicious",
			store:      storer{err: errors.New("connection reset")},
			score:      100,
			suspicious: true,
		},
	}

	t.Log("Given the need to score a batch's transaction set.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen evaluating %d transactions.", testID, len(tst.store.trns))
			{
				f := func(t *testing.T) {
					core := fraud.NewCore(zap.NewNop().Sugar(), tst.store)

					report := core.Evaluate(context.Background(), uuid.New())

					if report.RiskScore != tst.score {
						t.Errorf("\t%s\tTest %d:\tShould have the correct risk score.", failed, testID)
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, report.RiskScore)
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.score)
						t.Logf("\t%s\tTest %d:\treasons: %v", failed, testID, report.Reasons)
					} else {
						t.Logf("\t%s\tTest %d:\tShould have the correct risk score.", success, testID)
					}

					if report.IsSuspicious != tst.suspicious {
						t.Errorf("\t%s\tTest %d:\tShould have the correct suspicion flag.", failed, testID)
					} else {
						t.Logf("\t%s\tTest %d:\tShould have the correct suspicion flag.", success, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}
