// Package docstore provides the document-store abstraction the progression
// engine persists through. Implementations must honor the atomicity contracts
// documented on each method: Create is a conditional write, Increment is an
// atomic add, and RunTxn applies all writes in the callback as one unit.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no document exists under the key.
var ErrNotFound = errors.New("document not found")

// Reader reads documents from a collection.
type Reader interface {
	// Get unmarshals the document at (collection, key) into out.
	// Returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, key string, out any) error

	// ListKeys returns the keys in a collection that start with prefix,
	// sorted ascending. An empty prefix lists the whole collection.
	ListKeys(ctx context.Context, collection, prefix string) ([]string, error)
}

// Writer mutates documents in a collection.
type Writer interface {
	// Put stores the document at (collection, key), replacing any existing one.
	Put(ctx context.Context, collection, key string, doc any) error

	// Create stores the document only if the key is free. It reports whether
	// the write happened; false means a document already holds the key and
	// nothing was written.
	Create(ctx context.Context, collection, key string, doc any) (bool, error)

	// Increment atomically adds delta to a top-level numeric field and returns
	// the new value. A missing document or field counts as zero. Never
	// implemented as fetch-then-write.
	Increment(ctx context.Context, collection, key, field string, delta float64) (float64, error)
}

// Txn is the view of the store inside a transaction. Reads observe the
// transaction's own writes.
type Txn interface {
	Reader
	Writer
}

// Store is a document store with transactional multi-document updates.
type Store interface {
	Reader
	Writer

	// RunTxn executes fn such that all reads are serialized against concurrent
	// transactions touching the same documents, and either every write in fn
	// commits or none does. Returning an error from fn discards all writes.
	RunTxn(ctx context.Context, fn func(tx Txn) error) error
}
