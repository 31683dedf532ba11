package batch

import "time"

// Set of verification statuses. A batch only ever advances pending→verified
// or pending→rejected; neither transition is reversed.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Set of mint statuses. These strings are persisted and part of the API
// contract; do not rename them.
const (
	MintPendingMint   = "PENDING_MINT"
	MintMinted        = "MINTED"
	MintFailedOnChain = "FAILED_ON_CHAIN"
	MintRetrying      = "RETRYING"
)

// Batch represents a collector-defined bundle of collection transactions
// submitted together for bulk recycler verification.
type Batch struct {
	ID                  string     `db:"batch_id" json:"batch_id"`
	CollectorID         string     `db:"collector_id" json:"collector_id"`
	RecyclerID          *string    `db:"recycler_id" json:"recycler_id,omitempty"`
	DeclaredWeightGrams int        `db:"declared_weight_grams" json:"declared_weight_grams"`
	VerifiedWeightGrams *int       `db:"verified_weight_grams" json:"verified_weight_grams,omitempty"`
	VerificationStatus  string     `db:"verification_status" json:"verification_status"`
	WeightDiffPct       *float64   `db:"weight_diff_pct" json:"weight_diff_pct,omitempty"`
	MintStatus          *string    `db:"mint_status" json:"mint_status,omitempty"`
	TxHash              *string    `db:"tx_hash" json:"tx_hash,omitempty"`
	BlockNumber         *int64     `db:"block_number" json:"block_number,omitempty"`
	RetryCount          int        `db:"retry_count" json:"retry_count"`
	LastAttempt         *time.Time `db:"last_attempt" json:"last_attempt,omitempty"`
	LastError           *string    `db:"last_error" json:"last_error,omitempty"`
	ProofHash           string     `db:"proof_hash" json:"proof_hash"`
	CitizenEIU          float64    `db:"citizen_eiu" json:"citizen_eiu"`
	CollectorEIU        float64    `db:"collector_eiu" json:"collector_eiu"`
	RecyclerEIU         float64    `db:"recycler_eiu" json:"recycler_eiu"`
	TotalEIU            float64    `db:"total_eiu" json:"total_eiu"`
	DateCreated         time.Time  `db:"date_created" json:"date_created"`
	DateUpdated         time.Time  `db:"date_updated" json:"date_updated"`
}

// NewBatch contains the information needed to create a batch from a set of
// existing collection transactions.
type NewBatch struct {
	CollectorID    string   `json:"collector_id" validate:"required,uuid"`
	TransactionIDs []string `json:"transaction_ids" validate:"required,min=1,dive,uuid"`
}

// TranSummary is the recomputed view of a batch's member transactions used
// at verification time. The declared total is never trusted from the batch
// row; it is summed from the members on every verification.
type TranSummary struct {
	Count            int `db:"tran_count"`
	TotalWeightGrams int `db:"total_weight_grams"`
}

// Verification captures the outcome of a weight verification applied to a
// batch row.
type Verification struct {
	RecyclerID          string
	VerifiedWeightGrams int
	WeightDiffPct       float64
	Status              string
	ProofHash           string
	CitizenEIU          float64
	CollectorEIU        float64
	RecyclerEIU         float64
	TotalEIU            float64
}

// MintResult carries the fields persisted after a successful mint.
type MintResult struct {
	TxHash      string
	BlockNumber int64
	GasUsed     uint64
	RetryCount  int
}

// Audit is one verification audit row. Every verification call appends
// exactly one, success or failure, so attempts can be reconstructed.
type Audit struct {
	ID                  string    `db:"audit_id" json:"audit_id"`
	BatchID             string    `db:"batch_id" json:"batch_id"`
	RecyclerID          *string   `db:"recycler_id" json:"recycler_id,omitempty"`
	DeclaredWeightGrams int       `db:"declared_weight_grams" json:"declared_weight_grams"`
	VerifiedWeightGrams int       `db:"verified_weight_grams" json:"verified_weight_grams"`
	WeightDiffPct       float64   `db:"weight_diff_pct" json:"weight_diff_pct"`
	Classification      string    `db:"classification" json:"classification"`
	Note                string    `db:"note" json:"note"`
	DateCreated         time.Time `db:"date_created" json:"date_created"`
}
