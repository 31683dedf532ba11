// Package fraud scores a batch's transaction set against a small set of
// heuristics that spot synthetic collection data. The score is advisory
// only; it never blocks verification and exists for manual review tooling.
package fraud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/data/store/tran"
	"github.com/plastix-network/plastix/business/sys/database"
)

// Scoring constants. Each heuristic that fires adds its weight to the risk
// score; a batch is suspicious once the sum passes suspicionThreshold.
const (
	suspicionThreshold = 50

	scoreMostlyTiny      = 30
	scoreUniformWeights  = 40
	scoreRepeatCitizen   = 20
	scoreOversizeAverage = 25
	scoreBurstCreated    = 15
	scoreNotFound        = 100
)

// Heuristic trigger points.
const (
	tinyWeightGrams     = 100
	tinyShare           = 0.8
	uniformMinCount     = 5
	oversizeAvgGrams    = 10000
	burstWindow         = 60 * time.Second
)

// Report is the advisory risk assessment of one batch.
type Report struct {
	BatchID      string   `json:"batch_id"`
	IsSuspicious bool     `json:"is_suspicious"`
	RiskScore    int      `json:"risk_score"`
	Reasons      []string `json:"reasons"`
}

// Storer declares the persistence the detector needs.
type Storer interface {
	QueryByBatch(ctx context.Context, batchID uuid.UUID) ([]tran.Tran, error)
}

// Core manages the fraud scoring API.
type Core struct {
	log   *zap.SugaredLogger
	store Storer
}

// NewCore constructs a core for fraud scoring.
func NewCore(log *zap.SugaredLogger, store Storer) Core {
	return Core{
		log:   log,
		store: store,
	}
}

// Evaluate scores the specified batch. A batch with no resolvable
// transaction set is maximally suspicious.
func (c Core) Evaluate(ctx context.Context, batchID uuid.UUID) Report {
	report := Report{
		BatchID: batchID.String(),
		Reasons: []string{},
	}

	trns, err := c.store.QueryByBatch(ctx, batchID)
	if err != nil || len(trns) == 0 {
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			c.log.Errorw("fraud.evaluate", "batch", batchID, "ERROR", err)
		}
		report.RiskScore = scoreNotFound
		report.IsSuspicious = true
		report.Reasons = append(report.Reasons, "batch has no resolvable transactions")
		return report
	}

	c.scoreTinyWeights(trns, &report)
	c.scoreUniformWeights(trns, &report)
	c.scoreRepeatCitizens(trns, &report)
	c.scoreOversizeAverage(trns, &report)
	c.scoreBurstCreation(trns, &report)

	report.IsSuspicious = report.RiskScore > suspicionThreshold

	return report
}

// scoreTinyWeights fires when 80% or more of the transactions each weigh
// under 100g. Large batches of near-empty collections are a common padding
// pattern.
func (c Core) scoreTinyWeights(trns []tran.Tran, report *Report) {
	var tiny int
	for _, trn := range trns {
		if trn.WeightGrams < tinyWeightGrams {
			tiny++
		}
	}

	if float64(tiny) >= tinyShare*float64(len(trns)) {
		report.RiskScore += scoreMostlyTiny
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("%d of %d transactions weigh under %dg", tiny, len(trns), tinyWeightGrams))
	}
}

// scoreUniformWeights fires when more than five transactions all share one
// identical weight. Real collections never weigh exactly the same.
func (c Core) scoreUniformWeights(trns []tran.Tran, report *Report) {
	if len(trns) <= uniformMinCount {
		return
	}

	first := trns[0].WeightGrams
	for _, trn := range trns[1:] {
		if trn.WeightGrams != first {
			return
		}
	}

	report.RiskScore += scoreUniformWeights
	report.Reasons = append(report.Reasons,
		fmt.Sprintf("all %d transactions share the identical weight %dg", len(trns), first))
}

// scoreRepeatCitizens fires once, flat, if any citizen appears more than
// once in the batch.
func (c Core) scoreRepeatCitizens(trns []tran.Tran, report *Report) {
	seen := make(map[string]bool, len(trns))
	for _, trn := range trns {
		if seen[trn.CitizenID] {
			report.RiskScore += scoreRepeatCitizen
			report.Reasons = append(report.Reasons, "a citizen appears more than once in the batch")
			return
		}
		seen[trn.CitizenID] = true
	}
}

// scoreOversizeAverage fires when the average weight per transaction is over
// 10kg, which is implausible for individual street collection.
func (c Core) scoreOversizeAverage(trns []tran.Tran, report *Report) {
	var total int
	for _, trn := range trns {
		total += trn.WeightGrams
	}

	avg := float64(total) / float64(len(trns))
	if avg > oversizeAvgGrams {
		report.RiskScore += scoreOversizeAverage
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("average transaction weight %.0fg exceeds %dg", avg, oversizeAvgGrams))
	}
}

// scoreBurstCreation fires when the whole batch was recorded inside a
// 60-second window.
func (c Core) scoreBurstCreation(trns []tran.Tran, report *Report) {
	earliest, latest := trns[0].DateCreated, trns[0].DateCreated
	for _, trn := range trns[1:] {
		if trn.DateCreated.Before(earliest) {
			earliest = trn.DateCreated
		}
		if trn.DateCreated.After(latest) {
			latest = trn.DateCreated
		}
	}

	if latest.Sub(earliest) < burstWindow {
		report.RiskScore += scoreBurstCreated
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("all transactions created within %s", latest.Sub(earliest)))
	}
}
