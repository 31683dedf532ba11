package batchgrp

import (
	"time"

	"github.com/plastix-network/plastix/business/sys/validate"
)

// verifyRequest is the recycler's weight verification submission.
type verifyRequest struct {
	BatchID             string `json:"batch_id" validate:"required,uuid"`
	RecyclerID          string `json:"recycler_id" validate:"required,uuid"`
	VerifiedWeightTotal int    `json:"verified_weight_total" validate:"required,gt=0"`
	IPFSProofHash       string `json:"ipfs_proof_hash" validate:"required"`
	ProofType           string `json:"proof_type" validate:"omitempty,oneof=photo weighbridge manifest"`
	VerificationNotes   string `json:"verification_notes"`
}

// Validate runs the declared field checks when the payload is decoded.
func (r verifyRequest) Validate() error {
	return validate.Check(r)
}

// verifyResponse is the definitive answer to a verification submission.
// Minting is asynchronous; mint_queued only reports the handoff.
type verifyResponse struct {
	BatchID             string  `json:"batch_id"`
	Classification      string  `json:"classification"`
	OriginalWeightGrams int     `json:"original_weight_grams"`
	VerifiedWeightGrams int     `json:"verified_weight_grams"`
	WeightDiffPct       float64 `json:"weight_diff_pct"`
	Message             string  `json:"message"`
	Allocation          any     `json:"allocation,omitempty"`
	FraudReport         any     `json:"fraud_report"`
	MintQueued          bool    `json:"mint_queued"`
}

// mintStatusResponse is the polled view of a batch's mint state machine.
type mintStatusResponse struct {
	BatchID     string     `json:"batch_id"`
	MintStatus  *string    `json:"mint_status"`
	TxHash      *string    `json:"tx_hash,omitempty"`
	BlockNumber *int64     `json:"block_number,omitempty"`
	RetryCount  int        `json:"retry_count"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	OnChain     *onChain   `json:"on_chain,omitempty"`
}

// onChain is the live receipt view included when the chain client is
// configured and the batch has a broadcast transaction.
type onChain struct {
	Confirmed   bool   `json:"confirmed"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
}
