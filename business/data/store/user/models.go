package user

import "time"

// User represents an individual user.
type User struct {
	ID            string    `db:"user_id"`
	Name          string    `db:"name"`
	Role          string    `db:"role"`
	WalletAddress string    `db:"wallet_address"`
	DateCreated   time.Time `db:"date_created"`
}

// walletRow is the projection used by the wallet address lookup.
type walletRow struct {
	UserID        string `db:"user_id"`
	WalletAddress string `db:"wallet_address"`
}
