package keychain

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteKeychain is a Keychain persisted in a SQLite database file.
type SQLiteKeychain struct {
	db   *sql.DB
	cfg  config
	once sync.Once
}

var _ Keychain = (*SQLiteKeychain)(nil)

// NewSQLite opens (creating if needed) a SQLite backed Keychain.
// If dbPath is empty or ":memory:", an in-memory database is used.
func NewSQLite(ctx context.Context, dbPath string, opts ...Option) (*SQLiteKeychain, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS keychain (
		service TEXT NOT NULL,
		account TEXT NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (service, account)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteKeychain{db: db, cfg: applyOptions(opts)}, nil
}

func (s *SQLiteKeychain) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *SQLiteKeychain) unavailable(op string, q Query, err error) Status {
	s.cfg.logger.Error("keychain sqlite %s failed for %s/%s: %s", op, q.Service, q.Account, err)
	return StatusUnavailable
}

func (s *SQLiteKeychain) Add(ctx context.Context, q Query) Status {
	if !q.valid() {
		return StatusInvalidQuery
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	data := q.Data
	if data == nil {
		data = []byte{}
	}
	result, err := s.db.ExecContext(qctx,
		`INSERT INTO keychain (service, account, data) VALUES (?, ?, ?) ON CONFLICT(service, account) DO NOTHING`,
		q.Service, q.Account, data,
	)
	if err != nil {
		return s.unavailable("add", q, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return s.unavailable("add", q, err)
	}
	if rows == 0 {
		return StatusDuplicateItem
	}
	return StatusSuccess
}

func (s *SQLiteKeychain) Find(ctx context.Context, q Query) ([]byte, Status) {
	if !q.valid() {
		return nil, StatusInvalidQuery
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var data []byte
	err := s.db.QueryRowContext(qctx,
		`SELECT data FROM keychain WHERE service = ? AND account = ?`, q.Service, q.Account,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, StatusItemNotFound
	}
	if err != nil {
		return nil, s.unavailable("find", q, err)
	}
	return data, StatusSuccess
}

func (s *SQLiteKeychain) Delete(ctx context.Context, q Query) Status {
	if !q.valid() {
		return StatusInvalidQuery
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	result, err := s.db.ExecContext(qctx,
		`DELETE FROM keychain WHERE service = ? AND account = ?`, q.Service, q.Account,
	)
	if err != nil {
		return s.unavailable("delete", q, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return s.unavailable("delete", q, err)
	}
	if rows == 0 {
		return StatusItemNotFound
	}
	return StatusSuccess
}

// Close closes the underlying database. It is safe to call more than once.
func (s *SQLiteKeychain) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}
