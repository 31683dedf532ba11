// Package tran contains collection transaction related CRUD functionality.
// A transaction is immutable once a batch references it except for the
// status transition driven by the batch outcome.
package tran

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

// Store manages the set of APIs for collection transaction access.
type Store struct {
	log *zap.SugaredLogger
	db  *sqlx.DB
}

// NewStore constructs a transaction store for api access.
func NewStore(log *zap.SugaredLogger, db *sqlx.DB) Store {
	return Store{
		log: log,
		db:  db,
	}
}

// Create records a new collection event in PENDING_BATCH status.
func (s Store) Create(ctx context.Context, nt NewTran, now time.Time) (Tran, error) {
	if err := validate.Check(nt); err != nil {
		return Tran{}, fmt.Errorf("validating data: %w", err)
	}

	trn := Tran{
		ID:          uuid.NewString(),
		CitizenID:   nt.CitizenID,
		CollectorID: nt.CollectorID,
		WeightGrams: nt.WeightGrams,
		Status:      StatusPendingBatch,
		DateCreated: now.UTC(),
	}

	const q = `
	INSERT INTO transactions
		(transaction_id, citizen_id, collector_id, weight_grams, reward_eiu, status, date_created)
	VALUES
		(:transaction_id, :citizen_id, :collector_id, :weight_grams, :reward_eiu, :status, :date_created)`

	if err := database.NamedExecContext(ctx, s.log, s.db, q, trn); err != nil {
		return Tran{}, fmt.Errorf("inserting transaction: %w", err)
	}

	return trn, nil
}

// QueryByID gets the specified transaction from the database.
func (s Store) QueryByID(ctx context.Context, tranID uuid.UUID) (Tran, error) {
	data := struct {
		TranID string `db:"transaction_id"`
	}{
		TranID: tranID.String(),
	}

	const q = `
	SELECT
		*
	FROM
		transactions
	WHERE
		transaction_id = :transaction_id`

	var trn Tran
	if err := database.NamedQueryStruct(ctx, s.log, s.db, q, data, &trn); err != nil {
		return Tran{}, fmt.Errorf("selecting transaction %q: %w", tranID, err)
	}

	return trn, nil
}

// QueryByBatch returns the member transactions of the specified batch in
// batch position order.
func (s Store) QueryByBatch(ctx context.Context, batchID uuid.UUID) ([]Tran, error) {
	data := struct {
		BatchID string `db:"batch_id"`
	}{
		BatchID: batchID.String(),
	}

	const q = `
	SELECT
		t.transaction_id, t.citizen_id, t.collector_id, t.weight_grams,
		t.reward_eiu, t.status, t.date_created
	FROM
		transactions AS t
	JOIN
		batch_transactions AS bt ON bt.transaction_id = t.transaction_id
	WHERE
		bt.batch_id = :batch_id
	ORDER BY
		bt.position`

	var trns []Tran
	if err := database.NamedQuerySlice(ctx, s.log, s.db, q, data, &trns); err != nil {
		return nil, fmt.Errorf("selecting batch %q transactions: %w", batchID, err)
	}

	return trns, nil
}

// UpdateStatusForBatch moves every member transaction of the specified batch
// that is still waiting on its batch to the specified status. This is the
// batch outcome propagation; transactions already settled are left alone.
func (s Store) UpdateStatusForBatch(ctx context.Context, batchID uuid.UUID, status string) error {
	data := struct {
		BatchID string `db:"batch_id"`
		Status  string `db:"status"`
	}{
		BatchID: batchID.String(),
		Status:  status,
	}

	const q = `
	UPDATE
		transactions
	SET
		status = :status
	WHERE
		status = 'PENDING_BATCH' AND
		transaction_id IN (
			SELECT transaction_id FROM batch_transactions WHERE batch_id = :batch_id
		)`

	if err := database.NamedExecContext(ctx, s.log, s.db, q, data); err != nil {
		return fmt.Errorf("updating batch %q transaction statuses: %w", batchID, err)
	}

	return nil
}
