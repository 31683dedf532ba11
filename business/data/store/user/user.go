// Package user contains user related CRUD functionality. Only the pieces the
// core needs are implemented: creation for tooling/seeding and wallet address
// resolution for minting.
package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/sys/database"
)

// Set of roles a user can hold in the collection pipeline.
const (
	RoleCitizen   = "CITIZEN"
	RoleCollector = "COLLECTOR"
	RoleRecycler  = "RECYCLER"
)

// Store manages the set of APIs for user access.
type Store struct {
	log *zap.SugaredLogger
	db  *sqlx.DB
}

// NewStore constructs a user store for api access.
func NewStore(log *zap.SugaredLogger, db *sqlx.DB) Store {
	return Store{
		log: log,
		db:  db,
	}
}

// Create inserts a new user into the database.
func (s Store) Create(ctx context.Context, usr User) error {
	const q = `
	INSERT INTO users
		(user_id, name, role, wallet_address, date_created)
	VALUES
		(:user_id, :name, :role, :wallet_address, :date_created)`

	if err := database.NamedExecContext(ctx, s.log, s.db, q, usr); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// QueryByID gets the specified user from the database.
func (s Store) QueryByID(ctx context.Context, userID uuid.UUID) (User, error) {
	data := struct {
		UserID string `db:"user_id"`
	}{
		UserID: userID.String(),
	}

	const q = `
	SELECT
		*
	FROM
		users
	WHERE
		user_id = :user_id`

	var usr User
	if err := database.NamedQueryStruct(ctx, s.log, s.db, q, data, &usr); err != nil {
		return User{}, fmt.Errorf("selecting user %q: %w", userID, err)
	}

	return usr, nil
}

// WalletAddresses resolves the on-chain addresses for the specified users.
// Users with no wallet on file come back as empty strings so the caller can
// tell "missing address" apart from "missing user".
func (s Store) WalletAddresses(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]string, error) {
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	const q = `
	SELECT
		user_id, wallet_address
	FROM
		users
	WHERE
		user_id = ANY(:user_ids)`

	data := struct {
		UserIDs pq.StringArray `db:"user_ids"`
	}{
		UserIDs: ids,
	}

	var rows []walletRow
	if err := database.NamedQuerySlice(ctx, s.log, s.db, q, data, &rows); err != nil {
		return nil, fmt.Errorf("selecting wallet addresses: %w", err)
	}

	addresses := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.UserID)
		if err != nil {
			return nil, fmt.Errorf("parsing user id %q: %w", row.UserID, err)
		}
		addresses[id] = row.WalletAddress
	}

	return addresses, nil
}
