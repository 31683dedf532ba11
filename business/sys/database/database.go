// Package database provides support for accessing the database.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/foundation/web"
)

// Set of error variables for CRUD operations.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidID         = errors.New("id is not in its proper form")
	ErrDBDuplicatedEntry = errors.New("duplicated entry")
)

// lib/pq error codes the stores care about.
const (
	uniqueViolation = "23505"
	undefinedTable  = "42P01"
)

// Config is the required properties to use the database.
type Config struct {
	User         string
	Password     string
	Host         string
	Name         string
	MaxIdleConns int
	MaxOpenConns int
	DisableTLS   bool
}

// Open knows how to open a database connection based on the configuration.
func Open(cfg Config) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	db, err := sqlx.Open("postgres", u.String())
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	return db, nil
}

// StatusCheck returns nil if it can successfully talk to the database. It
// returns a non-nil error otherwise.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {

	// First check we can ping the database.
	var pingError error
	for attempts := 1; ; attempts++ {
		pingError = db.Ping()
		if pingError == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	// Make sure we didn't timeout or be cancelled.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Run a simple query to determine connectivity. Running this query forces
	// a round trip through the database.
	const q = `SELECT true`
	var tmp bool
	return db.QueryRowContext(ctx, q).Scan(&tmp)
}

// NamedExecContext is a helper function to execute a CUD operation with
// logging and tracing.
func NamedExecContext(ctx context.Context, log *zap.SugaredLogger, db sqlx.ExtContext, query string, data any) error {
	q := queryString(query, data)
	log.Infow("database.NamedExecContext", "traceid", web.GetTraceID(ctx), "query", q)

	if _, err := sqlx.NamedExecContext(ctx, db, query, data); err != nil {
		var pqerr *pq.Error
		if errors.As(err, &pqerr) {
			switch pqerr.Code {
			case pq.ErrorCode(uniqueViolation):
				return ErrDBDuplicatedEntry
			case pq.ErrorCode(undefinedTable):
				return errors.New("undefined table")
			}
		}
		return err
	}

	return nil
}

// NamedExecContextAffected executes a CUD operation and reports the number of
// rows the statement changed. Conditional updates use this to learn whether
// their guard matched.
func NamedExecContextAffected(ctx context.Context, log *zap.SugaredLogger, db sqlx.ExtContext, query string, data any) (int64, error) {
	q := queryString(query, data)
	log.Infow("database.NamedExecContextAffected", "traceid", web.GetTraceID(ctx), "query", q)

	result, err := sqlx.NamedExecContext(ctx, db, query, data)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// NamedQuerySlice is a helper function for executing queries that return a
// collection of data to be unmarshalled into a slice.
func NamedQuerySlice[T any](ctx context.Context, log *zap.SugaredLogger, db sqlx.ExtContext, query string, data any, dest *[]T) error {
	q := queryString(query, data)
	log.Infow("database.NamedQuerySlice", "traceid", web.GetTraceID(ctx), "query", q)

	rows, err := sqlx.NamedQueryContext(ctx, db, query, data)
	if err != nil {
		return err
	}
	defer rows.Close()

	var slice []T
	for rows.Next() {
		v := new(T)
		if err := rows.StructScan(v); err != nil {
			return err
		}
		slice = append(slice, *v)
	}
	*dest = slice

	return nil
}

// NamedQueryStruct is a helper function for executing queries that return a
// single value to be unmarshalled into a struct type.
func NamedQueryStruct(ctx context.Context, log *zap.SugaredLogger, db sqlx.ExtContext, query string, data any, dest any) error {
	q := queryString(query, data)
	log.Infow("database.NamedQueryStruct", "traceid", web.GetTraceID(ctx), "query", q)

	rows, err := sqlx.NamedQueryContext(ctx, db, query, data)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		return ErrNotFound
	}

	if err := rows.StructScan(dest); err != nil {
		return err
	}

	return nil
}

// WithinTran runs the specified function within a database transaction,
// committing on success and rolling back on any error.
func WithinTran(ctx context.Context, log *zap.SugaredLogger, db *sqlx.DB, fn func(sqlx.ExtContext) error) error {
	traceID := web.GetTraceID(ctx)

	log.Infow("database.WithinTran", "traceid", traceID, "status", "begin")
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin tran: %w", err)
	}

	mustRollback := true
	defer func() {
		if mustRollback {
			log.Infow("database.WithinTran", "traceid", traceID, "status", "rollback")
			if err := tx.Rollback(); err != nil {
				log.Errorw("database.WithinTran", "traceid", traceID, "ERROR", err)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return fmt.Errorf("exec tran: %w", err)
	}

	mustRollback = false
	log.Infow("database.WithinTran", "traceid", traceID, "status", "commit")
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tran: %w", err)
	}

	return nil
}

// queryString provides a pretty print version of the query and parameters.
func queryString(query string, args ...any) string {
	query, params, err := sqlx.Named(query, args)
	if err != nil {
		return err.Error()
	}

	for _, param := range params {
		var value string
		switch v := param.(type) {
		case string:
			value = fmt.Sprintf("'%s'", v)
		case []byte:
			value = fmt.Sprintf("'%s'", string(v))
		default:
			value = fmt.Sprintf("%v", v)
		}
		query = strings.Replace(query, "?", value, 1)
	}

	query = strings.ReplaceAll(query, "\t", "")
	query = strings.ReplaceAll(query, "\n", " ")

	return strings.Trim(query, " ")
}
