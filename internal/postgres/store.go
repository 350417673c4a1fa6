package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/roastdirect/internal/domain"
	"github.com/joao-fontenele/roastdirect/internal/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txn{tx: tx}, nil
}

func (s *Store) Products() store.ProductStore {
	return &ProductRepository{q: s.db}
}

func (s *Store) Orders() store.OrderStore {
	return &OrderRepository{q: s.db}
}

func (s *Store) Users() store.UserStore {
	return &UserRepository{q: s.db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

type txn struct {
	tx *sql.Tx
}

func (t *txn) Products() store.ProductStore {
	return &ProductRepository{q: t.tx}
}

func (t *txn) Orders() store.OrderStore {
	return &OrderRepository{q: t.tx}
}

func (t *txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return translate(err)
	}
	return nil
}

func (t *txn) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// translate maps Postgres concurrency and range failures onto domain errors.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return domain.Conflict("concurrent update detected, please retry")
		case "22003":
			return domain.Validation("numeric value out of range")
		case "23514":
			// inventory_count >= 0 check constraint
			return domain.Conflict("insufficient stock")
		}
	}
	return err
}
