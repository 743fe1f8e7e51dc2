// Package store provides the key-value/scan substrate the sync engine runs on.
package store

import (
	"context"

	"github.com/jacentio/weft/internal/keys"
)

// Field names shared by every backend. Scans may only target the indexed
// fields (FieldParent, FieldPredecessor, FieldSortIndex, FieldModified).
const (
	FieldID          = "id"
	FieldParent      = "parentid"
	FieldPredecessor = "predecessorid"
	FieldSortIndex   = "sortindex"
	FieldModified    = "modified"
	FieldPayload     = "payload"
	FieldPayloadSize = "payload_size"
)

// MaxBatchKeys is the largest id set accepted by DeleteRecordBatch.
const MaxBatchKeys = 500

// Doc is a stored record's field set. Numeric fields are float64, the rest
// strings; backends normalize on read so callers never see backend types.
type Doc map[string]any

// Scope identifies the ancestor partition a record operation runs in.
type Scope struct {
	Account    string
	Collection string
}

// Account is a persisted account entity. Password holds the hashed
// credential, never the cleartext.
type Account struct {
	Name     string `dynamodbav:"name" json:"name"`
	UID      string `dynamodbav:"uid" json:"uid"`
	Password string `dynamodbav:"password" json:"-"`
}

// Substrate is the primitive storage contract: point reads and writes,
// bounded batch deletes, and single-field equality/range scans within an
// ancestor scope. It never interprets payloads and never orders results
// beyond the scanned field.
type Substrate interface {
	// GetRecord returns a record by id, or ErrNotFound.
	GetRecord(ctx context.Context, scope Scope, id string) (Doc, error)

	// PutRecord inserts or replaces a record wholesale.
	PutRecord(ctx context.Context, scope Scope, id string, doc Doc) error

	// DeleteRecord removes a record, returning ErrNotFound if absent.
	DeleteRecord(ctx context.Context, scope Scope, id string) error

	// DeleteRecordBatch removes up to MaxBatchKeys records. Missing ids
	// are ignored.
	DeleteRecordBatch(ctx context.Context, scope Scope, ids []string) error

	// ScanCollection returns records in the scope in storage order.
	// limit 0 means no limit.
	ScanCollection(ctx context.Context, scope Scope, limit int) ([]Doc, error)

	// ScanEqual returns records whose field equals value, in storage order.
	ScanEqual(ctx context.Context, scope Scope, field, value string) ([]Doc, error)

	// ScanRange returns records whose numeric field lies strictly between
	// lower and upper (either bound may be nil), ordered by that field.
	ScanRange(ctx context.Context, scope Scope, field string, lower, upper *float64, descending bool) ([]Doc, error)

	// EnsureCollection makes the collection entity for (account, name)
	// exist. Idempotent; concurrent callers converge on one entity.
	EnsureCollection(ctx context.Context, account, name string) error

	// ListCollections returns the names of all persisted collection
	// entities owned by the account.
	ListCollections(ctx context.Context, account string) ([]string, error)

	// DeleteCollectionEntity removes a collection entity. No-op if absent.
	DeleteCollectionEntity(ctx context.Context, account, name string) error

	// GetAccount returns an account by name, or ErrNotFound.
	GetAccount(ctx context.Context, name string) (*Account, error)

	// CreateAccount inserts an account entity only if the name is not
	// already taken, returning ErrExists otherwise.
	CreateAccount(ctx context.Context, account *Account) error

	// PutAccount inserts or replaces an account entity.
	PutAccount(ctx context.Context, account *Account) error

	// DeleteAccount removes an account entity. No-op if absent.
	DeleteAccount(ctx context.Context, name string) error
}

// scopePK is the ancestor partition key for a scope.
func scopePK(scope Scope) string {
	return keys.RecordPK(scope.Account, scope.Collection)
}

// DocID extracts the id field of a Doc.
func DocID(doc Doc) string {
	s, _ := doc[FieldID].(string)
	return s
}

// DocString extracts a string field, "" when absent.
func DocString(doc Doc, field string) string {
	s, _ := doc[field].(string)
	return s
}

// DocFloat extracts a numeric field, 0 when absent. Backends that surface
// integers (SQLite) are normalized here.
func DocFloat(doc Doc, field string) float64 {
	switch v := doc[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
