// Package store defines the document store the sync engine is built on.
//
// Documents live at slash-separated paths ("rides/r1", "rides/r1/content/c7")
// and hold a flat map of JSON-like fields. Every commit is stamped with a
// store-wide, strictly increasing version. Subscribers receive the current
// state first and then one delivery per commit that touches what they watch,
// in commit order, on a goroutine owned by the subscription.
//
// Implementations: memstore (in-process) and pgstore (Postgres).
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkordes/rideplanner/internal/domain"
)

// ErrNotFound is returned by Update and Delete when the document is absent.
// It matches domain.ErrNotFound under errors.Is.
var ErrNotFound = fmt.Errorf("store: document %w", domain.ErrNotFound)

// Fields is the body of a document.
type Fields map[string]any

// Snapshot is the state of one document at one version.
type Snapshot struct {
	ID         string
	Path       string
	Exists     bool
	Fields     Fields
	Version    int64
	CreateTime time.Time
	UpdateTime time.Time
}

// QuerySnapshot is the ordered result of a query at one version.
type QuerySnapshot struct {
	Docs    []Snapshot
	Version int64
}

// Filter is an equality match on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects the documents directly under Collection.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Desc       bool
}

// Cancel stops a subscription. It is idempotent and never blocks on delivery.
type Cancel func()

// DocListener receives document snapshots. A non-nil error ends the
// subscription; no further calls follow it.
type DocListener func(Snapshot, error)

// QueryListener receives query snapshots, with the same error rule as
// DocListener.
type QueryListener func(QuerySnapshot, error)

// Store is the document store contract.
type Store interface {
	// Get reads a document. An absent document is a snapshot with Exists
	// false, not an error.
	Get(ctx context.Context, path string) (Snapshot, error)

	// Query runs q once.
	Query(ctx context.Context, q Query) (QuerySnapshot, error)

	// Add creates a document with a store-assigned id under collection.
	Add(ctx context.Context, collection string, fields Fields) (string, error)

	// Set creates or replaces the document at path.
	Set(ctx context.Context, path string, fields Fields) error

	// Update merges fields into an existing document, key by key.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, path string, fields Fields) error

	// Delete removes the document at path. Child collections are untouched.
	// Returns ErrNotFound if the document does not exist.
	Delete(ctx context.Context, path string) error

	// Subscribe watches one document until cancel is called or ctx ends.
	Subscribe(ctx context.Context, path string, fn DocListener) (Cancel, error)

	// SubscribeQuery watches the result of q until cancel is called or ctx
	// ends.
	SubscribeQuery(ctx context.Context, q Query, fn QueryListener) (Cancel, error)
}

// Doc joins a collection path and a document id.
func Doc(collection, id string) string {
	return collection + "/" + id
}

// Split returns the collection and id of a document path.
func Split(path string) (collection, id string, err error) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("store: invalid document path %q", path)
	}
	return path[:i], path[i+1:], nil
}

// Change is one commit as seen by a change feed.
type Change struct {
	Path       string `json:"path"`
	Collection string `json:"collection"`
	Version    int64  `json:"version"`
}

// Feed fans commit notifications out to subscribers, possibly across
// processes. Delivery may be late or duplicated; listeners re-read state.
type Feed interface {
	Publish(ctx context.Context, c Change) error
	Listen(ctx context.Context, fn func(Change)) (Cancel, error)
}
