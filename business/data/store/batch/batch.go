// Package batch contains batch related CRUD functionality and is the only
// place batch verification and mint state is mutated. Every mutation is a
// single bounded statement; the conditional mint claim is the concurrency
// guard for the whole minting pipeline.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/sys/database"
	"github.com/plastix-network/plastix/business/sys/validate"
)

// Store manages the set of APIs for batch access.
type Store struct {
	log *zap.SugaredLogger
	db  *sqlx.DB
}

// NewStore constructs a batch store for api access.
func NewStore(log *zap.SugaredLogger, db *sqlx.DB) Store {
	return Store{
		log: log,
		db:  db,
	}
}

// Create inserts a batch and its member transaction links as one
// all-or-nothing unit. The declared weight is the sum of the member
// transaction weights at creation time.
func (s Store) Create(ctx context.Context, nb NewBatch, now time.Time) (Batch, error) {
	if err := validate.Check(nb); err != nil {
		return Batch{}, fmt.Errorf("validating data: %w", err)
	}

	bat := Batch{
		ID:                 uuid.NewString(),
		CollectorID:        nb.CollectorID,
		VerificationStatus: VerificationPending,
		DateCreated:        now.UTC(),
		DateUpdated:        now.UTC(),
	}

	tran := func(tx sqlx.ExtContext) error {
		const insertBatch = `
		INSERT INTO batches
			(batch_id, collector_id, verification_status, date_created, date_updated)
		VALUES
			(:batch_id, :collector_id, :verification_status, :date_created, :date_updated)`

		if err := database.NamedExecContext(ctx, s.log, tx, insertBatch, bat); err != nil {
			return fmt.Errorf("inserting batch: %w", err)
		}

		const insertLink = `
		INSERT INTO batch_transactions
			(batch_id, transaction_id, position)
		VALUES
			(:batch_id, :transaction_id, :position)`

		for i, tranID := range nb.TransactionIDs {
			link := struct {
				BatchID  string `db:"batch_id"`
				TranID   string `db:"transaction_id"`
				Position int    `db:"position"`
			}{
				BatchID:  bat.ID,
				TranID:   tranID,
				Position: i,
			}

			if err := database.NamedExecContext(ctx, s.log, tx, insertLink, link); err != nil {
				return fmt.Errorf("linking transaction %q: %w", tranID, err)
			}
		}

		// Fix the declared total from the members just linked.
		const setWeight = `
		UPDATE batches SET
			declared_weight_grams = (
				SELECT COALESCE(SUM(t.weight_grams), 0)
				FROM transactions AS t
				JOIN batch_transactions AS bt ON bt.transaction_id = t.transaction_id
				WHERE bt.batch_id = :batch_id
			)
		WHERE
			batch_id = :batch_id`

		data := struct {
			BatchID string `db:"batch_id"`
		}{
			BatchID: bat.ID,
		}

		if err := database.NamedExecContext(ctx, s.log, tx, setWeight, data); err != nil {
			return fmt.Errorf("setting declared weight: %w", err)
		}

		return nil
	}

	if err := database.WithinTran(ctx, s.log, s.db, tran); err != nil {
		return Batch{}, err
	}

	return s.QueryByID(ctx, uuid.MustParse(bat.ID))
}

// QueryByID gets the specified batch from the database.
func (s Store) QueryByID(ctx context.Context, batchID uuid.UUID) (Batch, error) {
	data := struct {
		BatchID string `db:"batch_id"`
	}{
		BatchID: batchID.String(),
	}

	const q = `
	SELECT
		*
	FROM
		batches
	WHERE
		batch_id = :batch_id`

	var bat Batch
	if err := database.NamedQueryStruct(ctx, s.log, s.db, q, data, &bat); err != nil {
		return Batch{}, fmt.Errorf("selecting batch %q: %w", batchID, err)
	}

	return bat, nil
}

// TransactionSummary recomputes the member count and total declared weight
// for the specified batch from the member transactions themselves.
func (s Store) TransactionSummary(ctx context.Context, batchID uuid.UUID) (TranSummary, error) {
	data := struct {
		BatchID string `db:"batch_id"`
	}{
		BatchID: batchID.String(),
	}

	const q = `
	SELECT
		COUNT(t.transaction_id)              AS tran_count,
		COALESCE(SUM(t.weight_grams), 0)     AS total_weight_grams
	FROM
		transactions AS t
	JOIN
		batch_transactions AS bt ON bt.transaction_id = t.transaction_id
	WHERE
		bt.batch_id = :batch_id`

	var summary TranSummary
	if err := database.NamedQueryStruct(ctx, s.log, s.db, q, data, &summary); err != nil {
		return TranSummary{}, fmt.Errorf("summarizing batch %q: %w", batchID, err)
	}

	return summary, nil
}

// UpdateVerification stores the outcome of a weight verification. The guard
// on the current status keeps pending→verified / pending→rejected as the
// only possible transitions.
func (s Store) UpdateVerification(ctx context.Context, batchID uuid.UUID, v Verification, now time.Time) error {
	data := struct {
		BatchID             string    `db:"batch_id"`
		RecyclerID          string    `db:"recycler_id"`
		VerifiedWeightGrams int       `db:"verified_weight_grams"`
		WeightDiffPct       float64   `db:"weight_diff_pct"`
		Status              string    `db:"status"`
		ProofHash           string    `db:"proof_hash"`
		CitizenEIU          float64   `db:"citizen_eiu"`
		CollectorEIU        float64   `db:"collector_eiu"`
		RecyclerEIU         float64   `db:"recycler_eiu"`
		TotalEIU            float64   `db:"total_eiu"`
		Now                 time.Time `db:"now"`
	}{
		BatchID:             batchID.String(),
		RecyclerID:          v.RecyclerID,
		VerifiedWeightGrams: v.VerifiedWeightGrams,
		WeightDiffPct:       v.WeightDiffPct,
		Status:              v.Status,
		ProofHash:           v.ProofHash,
		CitizenEIU:          v.CitizenEIU,
		CollectorEIU:        v.CollectorEIU,
		RecyclerEIU:         v.RecyclerEIU,
		TotalEIU:            v.TotalEIU,
		Now:                 now.UTC(),
	}

	const q = `
	UPDATE batches SET
		recycler_id           = :recycler_id,
		verified_weight_grams = :verified_weight_grams,
		weight_diff_pct       = :weight_diff_pct,
		verification_status   = :status,
		proof_hash            = :proof_hash,
		citizen_eiu           = :citizen_eiu,
		collector_eiu         = :collector_eiu,
		recycler_eiu          = :recycler_eiu,
		total_eiu             = :total_eiu,
		date_updated          = :now
	WHERE
		batch_id = :batch_id AND
		verification_status = 'pending'`

	affected, err := database.NamedExecContextAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return fmt.Errorf("updating batch %q verification: %w", batchID, err)
	}
	if affected == 0 {
		return fmt.Errorf("batch %q verification already settled: %w", batchID, database.ErrNotFound)
	}

	return nil
}

// ClaimForMint atomically marks an eligible batch as PENDING_MINT. The
// eligibility rules live in the WHERE clause so two concurrent triggers can
// never both claim the same batch: the loser sees zero rows affected.
func (s Store) ClaimForMint(ctx context.Context, batchID uuid.UUID, now time.Time) (bool, error) {
	data := struct {
		BatchID string    `db:"batch_id"`
		Now     time.Time `db:"now"`
	}{
		BatchID: batchID.String(),
		Now:     now.UTC(),
	}

	const q = `
	UPDATE batches SET
		mint_status  = 'PENDING_MINT',
		retry_count  = 0,
		last_error   = NULL,
		last_attempt = :now,
		date_updated = :now
	WHERE
		batch_id = :batch_id AND
		verification_status = 'verified' AND
		(mint_status IS NULL OR mint_status = 'FAILED_ON_CHAIN')`

	affected, err := database.NamedExecContextAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return false, fmt.Errorf("claiming batch %q for mint: %w", batchID, err)
	}

	return affected == 1, nil
}

// UpdateMintSuccess records the terminal MINTED state with the on-chain
// proof of the mint.
func (s Store) UpdateMintSuccess(ctx context.Context, batchID uuid.UUID, res MintResult, now time.Time) error {
	data := struct {
		BatchID     string    `db:"batch_id"`
		TxHash      string    `db:"tx_hash"`
		BlockNumber int64     `db:"block_number"`
		RetryCount  int       `db:"retry_count"`
		Now         time.Time `db:"now"`
	}{
		BatchID:     batchID.String(),
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		RetryCount:  res.RetryCount,
		Now:         now.UTC(),
	}

	const q = `
	UPDATE batches SET
		mint_status  = 'MINTED',
		tx_hash      = :tx_hash,
		block_number = :block_number,
		retry_count  = :retry_count,
		last_error   = NULL,
		date_updated = :now
	WHERE
		batch_id = :batch_id`

	if err := database.NamedExecContext(ctx, s.log, s.db, q, data); err != nil {
		return fmt.Errorf("updating batch %q mint success: %w", batchID, err)
	}

	return nil
}

// UpdateMintRetrying records a failed attempt the orchestrator will try
// again, with the error text and the attempt timestamp the backoff and the
// sweep cooldown key off.
func (s Store) UpdateMintRetrying(ctx context.Context, batchID uuid.UUID, retryCount int, lastError string, now time.Time) error {
	data := struct {
		BatchID    string    `db:"batch_id"`
		RetryCount int       `db:"retry_count"`
		LastError  string    `db:"last_error"`
		Now        time.Time `db:"now"`
	}{
		BatchID:    batchID.String(),
		RetryCount: retryCount,
		LastError:  lastError,
		Now:        now.UTC(),
	}

	const q = `
	UPDATE batches SET
		mint_status  = 'RETRYING',
		retry_count  = :retry_count,
		last_error   = :last_error,
		last_attempt = :now,
		date_updated = :now
	WHERE
		batch_id = :batch_id`

	if err := database.NamedExecContext(ctx, s.log, s.db, q, data); err != nil {
		return fmt.Errorf("updating batch %q mint retrying: %w", batchID, err)
	}

	return nil
}

// UpdateMintFailed records the terminal FAILED_ON_CHAIN state. The batch
// becomes eligible for a fresh claim once the sweep cooldown passes or an
// operator retriggers it.
func (s Store) UpdateMintFailed(ctx context.Context, batchID uuid.UUID, retryCount int, lastError string, now time.Time) error {
	data := struct {
		BatchID    string    `db:"batch_id"`
		RetryCount int       `db:"retry_count"`
		LastError  string    `db:"last_error"`
		Now        time.Time `db:"now"`
	}{
		BatchID:    batchID.String(),
		RetryCount: retryCount,
		LastError:  lastError,
		Now:        now.UTC(),
	}

	const q = `
	UPDATE batches SET
		mint_status  = 'FAILED_ON_CHAIN',
		retry_count  = :retry_count,
		last_error   = :last_error,
		last_attempt = :now,
		date_updated = :now
	WHERE
		batch_id = :batch_id`

	if err := database.NamedExecContext(ctx, s.log, s.db, q, data); err != nil {
		return fmt.Errorf("updating batch %q mint failed: %w", batchID, err)
	}

	return nil
}

// SelectRetryCandidates returns up to limit FAILED_ON_CHAIN batches whose
// retries are not exhausted and whose last attempt is at least cooldown old,
// oldest created first. This bounds retry storms after an outage.
func (s Store) SelectRetryCandidates(ctx context.Context, limit int, maxRetries int, cooldown time.Duration, now time.Time) ([]Batch, error) {
	data := struct {
		Limit      int       `db:"lim"`
		MaxRetries int       `db:"max_retries"`
		Cutoff     time.Time `db:"cutoff"`
	}{
		Limit:      limit,
		MaxRetries: maxRetries,
		Cutoff:     now.UTC().Add(-cooldown),
	}

	const q = `
	SELECT
		*
	FROM
		batches
	WHERE
		mint_status = 'FAILED_ON_CHAIN' AND
		retry_count < :max_retries AND
		(last_attempt IS NULL OR last_attempt < :cutoff)
	ORDER BY
		date_created
	LIMIT :lim`

	var bats []Batch
	if err := database.NamedQuerySlice(ctx, s.log, s.db, q, data, &bats); err != nil {
		return nil, fmt.Errorf("selecting retry candidates: %w", err)
	}

	return bats, nil
}

// AppendAudit writes one verification audit row.
func (s Store) AppendAudit(ctx context.Context, aud Audit) error {
	const q = `
	INSERT INTO verification_audit
		(audit_id, batch_id, recycler_id, declared_weight_grams, verified_weight_grams,
		 weight_diff_pct, classification, note, date_created)
	VALUES
		(:audit_id, :batch_id, :recycler_id, :declared_weight_grams, :verified_weight_grams,
		 :weight_diff_pct, :classification, :note, :date_created)`

	if err := database.NamedExecContext(ctx, s.log, s.db, q, aud); err != nil {
		return fmt.Errorf("appending audit for batch %q: %w", aud.BatchID, err)
	}

	return nil
}

// QueryAudit returns the verification audit trail for the specified batch,
// oldest first.
func (s Store) QueryAudit(ctx context.Context, batchID uuid.UUID) ([]Audit, error) {
	data := struct {
		BatchID string `db:"batch_id"`
	}{
		BatchID: batchID.String(),
	}

	const q = `
	SELECT
		*
	FROM
		verification_audit
	WHERE
		batch_id = :batch_id
	ORDER BY
		date_created`

	var auds []Audit
	if err := database.NamedQuerySlice(ctx, s.log, s.db, q, data, &auds); err != nil {
		return nil, fmt.Errorf("selecting audit for batch %q: %w", batchID, err)
	}

	return auds, nil
}
