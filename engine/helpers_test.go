package engine_test

import (
	"context"
	"testing"

	"github.com/jacentio/weft/engine"
	"github.com/jacentio/weft/store"
)

// tickClock hands out strictly increasing two-decimal stamps.
type tickClock struct {
	now float64
}

func (c *tickClock) Now() float64 {
	c.now += 0.01
	return c.now
}

type fixture struct {
	sub      *store.Memory
	records  *engine.Records
	cols     *engine.Collections
	accounts *engine.Accounts
	clock    *tickClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sub := store.NewMemory()
	clock := &tickClock{now: 1000}
	records := engine.NewRecords(sub, engine.Config{Clock: clock})
	cols := engine.NewCollections(sub, records)
	return &fixture{
		sub:      sub,
		records:  records,
		cols:     cols,
		accounts: engine.NewAccounts(sub, cols),
		clock:    clock,
	}
}

func (f *fixture) col(account, name string) engine.Collection {
	return engine.Collection{Account: account, Name: name}
}

// put stores a record and fails the test on any error.
func (f *fixture) put(t *testing.T, col engine.Collection, fields map[string]any) *engine.Record {
	t.Helper()
	rec, err := f.records.Put(context.Background(), col, fields)
	if err != nil {
		t.Fatalf("put %v: %v", fields["id"], err)
	}
	return rec
}

func strPtr(s string) *string     { return &s }
func intPtr(n int64) *int64       { return &n }
func floatPtr(f float64) *float64 { return &f }

func containsViolation(violations []string, want string) bool {
	for _, v := range violations {
		if v == want {
			return true
		}
	}
	return false
}
