package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/irsalhamdi/raiseup/config"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrDBNotFound        = errors.New("not found")
	ErrDBDuplicatedEntry = errors.New("duplicated entry")
)

const uniqueViolation = "23505"

func URL(cfg config.DB) string {
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
	return u.String()
}

func Open(cfg config.DB) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", URL(cfg))
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	return db, nil
}

func StatusCheck(ctx context.Context, db *sqlx.DB) error {
	var tmp bool
	return db.QueryRowContext(ctx, "SELECT true").Scan(&tmp)
}

// Transaction runs fn inside a transaction bound to ctx, committing on
// success and rolling back on error.
func Transaction(ctx context.Context, db *sqlx.DB, fn func(sqlx.ExtContext) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rollback transaction: %v: %w", rerr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func NamedExecContext(ctx context.Context, db sqlx.ExtContext, query string, data any) error {
	res, err := sqlx.NamedExecContext(ctx, db, query, data)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDBDuplicatedEntry
		}
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDBNotFound
	}
	return nil
}

func ExecContext(ctx context.Context, db sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func GetContext(ctx context.Context, db sqlx.ExtContext, dest any, query string, args ...any) error {
	if err := sqlx.GetContext(ctx, db, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDBNotFound
		}
		return err
	}
	return nil
}

func SelectContext(ctx context.Context, db sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, db, dest, query, args...)
}
