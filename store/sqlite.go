package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

// SQLite stores everything in a single database file. Suited to small
// single-node deployments; semantics match the DynamoDB backend.
//
// Tables:
//
//	records(pk, id, parentid, predecessorid, sortindex, modified, payload, payload_size)
//	collections(account, name)
//	accounts(name, uid, password)
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at cfg.Path.
func NewSQLite(config Config) (*SQLite, error) {
	config.validate()
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS records (
			pk TEXT NOT NULL,
			id TEXT NOT NULL,
			parentid TEXT NOT NULL DEFAULT '',
			predecessorid TEXT NOT NULL DEFAULT '',
			sortindex INTEGER NOT NULL DEFAULT 0,
			modified REAL NOT NULL DEFAULT 0,
			payload TEXT NOT NULL DEFAULT '',
			payload_size INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (pk, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_parent ON records (pk, parentid)`,
		`CREATE INDEX IF NOT EXISTS idx_records_predecessor ON records (pk, predecessorid)`,
		`CREATE INDEX IF NOT EXISTS idx_records_sortindex ON records (pk, sortindex)`,
		`CREATE INDEX IF NOT EXISTS idx_records_modified ON records (pk, modified)`,
		`CREATE TABLE IF NOT EXISTS collections (
			account TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (account, name)
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			name TEXT PRIMARY KEY,
			uid TEXT NOT NULL,
			password TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const recordColumns = "id, parentid, predecessorid, sortindex, modified, payload, payload_size"

func scanRecordRow(rows interface{ Scan(...any) error }) (Doc, error) {
	var (
		id, parent, pred, payload string
		sortindex, payloadSize    int64
		modified                  float64
	)
	if err := rows.Scan(&id, &parent, &pred, &sortindex, &modified, &payload, &payloadSize); err != nil {
		return nil, err
	}
	doc := Doc{
		FieldID:          id,
		FieldSortIndex:   float64(sortindex),
		FieldModified:    modified,
		FieldPayload:     payload,
		FieldPayloadSize: float64(payloadSize),
	}
	if parent != "" {
		doc[FieldParent] = parent
	}
	if pred != "" {
		doc[FieldPredecessor] = pred
	}
	return doc, nil
}

func (s *SQLite) GetRecord(ctx context.Context, scope Scope, id string) (Doc, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE pk = ? AND id = ?",
		scopePK(scope), id,
	)
	doc, err := scanRecordRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (s *SQLite) PutRecord(ctx context.Context, scope Scope, id string, doc Doc) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (pk, id, parentid, predecessorid, sortindex, modified, payload, payload_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pk, id) DO UPDATE SET
			parentid = excluded.parentid,
			predecessorid = excluded.predecessorid,
			sortindex = excluded.sortindex,
			modified = excluded.modified,
			payload = excluded.payload,
			payload_size = excluded.payload_size`,
		scopePK(scope), id,
		DocString(doc, FieldParent), DocString(doc, FieldPredecessor),
		int64(DocFloat(doc, FieldSortIndex)), DocFloat(doc, FieldModified),
		DocString(doc, FieldPayload), int64(DocFloat(doc, FieldPayloadSize)),
	)
	return err
}

func (s *SQLite) DeleteRecord(ctx context.Context, scope Scope, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE pk = ? AND id = ?", scopePK(scope), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeleteRecordBatch(ctx context.Context, scope Scope, ids []string) error {
	if len(ids) > MaxBatchKeys {
		return ErrBatchTooLarge
	}
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE pk = ? AND id = ?", scopePK(scope), id); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) ScanCollection(ctx context.Context, scope Scope, limit int) ([]Doc, error) {
	query := "SELECT " + recordColumns + " FROM records WHERE pk = ? ORDER BY id"
	args := []any{scopePK(scope)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryDocs(ctx, query, args...)
}

func (s *SQLite) ScanEqual(ctx context.Context, scope Scope, field, value string) ([]Doc, error) {
	if field != FieldParent && field != FieldPredecessor {
		return nil, ErrBadScanField
	}
	query := fmt.Sprintf(
		"SELECT %s FROM records WHERE pk = ? AND %s = ? ORDER BY id",
		recordColumns, field,
	)
	return s.queryDocs(ctx, query, scopePK(scope), value)
}

func (s *SQLite) ScanRange(ctx context.Context, scope Scope, field string, lower, upper *float64, descending bool) ([]Doc, error) {
	if field != FieldSortIndex && field != FieldModified {
		return nil, ErrBadScanField
	}
	query := fmt.Sprintf("SELECT %s FROM records WHERE pk = ?", recordColumns)
	args := []any{scopePK(scope)}
	if lower != nil {
		query += fmt.Sprintf(" AND %s > ?", field)
		args = append(args, *lower)
	}
	if upper != nil {
		query += fmt.Sprintf(" AND %s < ?", field)
		args = append(args, *upper)
	}
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", field, dir)
	return s.queryDocs(ctx, query, args...)
}

func (s *SQLite) EnsureCollection(ctx context.Context, account, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (account, name) VALUES (?, ?)
		 ON CONFLICT(account, name) DO NOTHING`,
		account, name,
	)
	return err
}

func (s *SQLite) ListCollections(ctx context.Context, account string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM collections WHERE account = ? ORDER BY name", account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLite) DeleteCollectionEntity(ctx context.Context, account, name string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM collections WHERE account = ? AND name = ?", account, name)
	return err
}

func (s *SQLite) GetAccount(ctx context.Context, name string) (*Account, error) {
	var account Account
	err := s.db.QueryRowContext(ctx,
		"SELECT name, uid, password FROM accounts WHERE name = ?", name,
	).Scan(&account.Name, &account.UID, &account.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *SQLite) CreateAccount(ctx context.Context, account *Account) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (name, uid, password) VALUES (?, ?, ?)",
		account.Name, account.UID, account.Password,
	)
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return ErrExists
	}
	return err
}

func (s *SQLite) PutAccount(ctx context.Context, account *Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, uid, password) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET uid = excluded.uid, password = excluded.password`,
		account.Name, account.UID, account.Password,
	)
	return err
}

func (s *SQLite) DeleteAccount(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE name = ?", name)
	return err
}

func (s *SQLite) queryDocs(ctx context.Context, query string, args ...any) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Doc
	for rows.Next() {
		doc, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
