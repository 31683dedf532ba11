package tran

import "time"

// Set of statuses a collection transaction moves through. PENDING_BATCH is
// the created state; the terminal state is driven by the outcome of the
// batch that references the transaction.
const (
	StatusPendingBatch = "PENDING_BATCH"
	StatusConfirmed    = "CONFIRMED"
	StatusFailed       = "FAILED"
)

// Weight limits for a single collection event, in grams.
const (
	MinWeightGrams = 10
	MaxWeightGrams = 50000
)

// Tran represents a single plastic collection event.
type Tran struct {
	ID          string    `db:"transaction_id" json:"transaction_id"`
	CitizenID   string    `db:"citizen_id" json:"citizen_id"`
	CollectorID string    `db:"collector_id" json:"collector_id"`
	WeightGrams int       `db:"weight_grams" json:"weight_grams"`
	RewardEIU   float64   `db:"reward_eiu" json:"reward_eiu"`
	Status      string    `db:"status" json:"status"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}

// NewTran contains the information needed to record a collection event.
type NewTran struct {
	CitizenID   string `json:"citizen_id" validate:"required,uuid"`
	CollectorID string `json:"collector_id" validate:"required,uuid"`
	WeightGrams int    `json:"weight_grams" validate:"required,gte=10,lte=50000"`
}
