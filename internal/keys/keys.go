// Package keys builds the composite keys that model the
// account -> collection -> record ownership hierarchy.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sep joins key segments. Record ids may not contain it, which the
// validator enforces before anything reaches the substrate.
const Sep = "/"

// RecordPK returns the partition key for all records of one collection.
// Every record scan is scoped to this prefix, so cascading deletes and
// per-collection queries never touch another account's data.
func RecordPK(account, collection string) string {
	return account + Sep + collection
}

// SplitRecordPK splits a record partition key back into (account, collection).
func SplitRecordPK(pk string) (account, collection string, ok bool) {
	i := strings.Index(pk, Sep)
	if i < 0 {
		return "", "", false
	}
	return pk[:i], pk[i+1:], true
}

// CollectionKey derives the deterministic key for a collection entity.
// Deriving it from (account, name) instead of an allocated id is what makes
// get-or-create safe under concurrent first writers: both racers compute
// the same key and the conditional put converges on a single entity.
func CollectionKey(account, name string) string {
	// Length-prefixed so ("a/b", "c") and ("a", "b/c") cannot collide.
	data := fmt.Sprintf("%d:%s:%s", len(account), account, name)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16])
}
