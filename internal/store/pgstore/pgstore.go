// Package pgstore implements store.Store on a single Postgres table.
//
// Every document is one row in "documents" keyed by path, with its fields in a
// JSONB column and a version drawn from the document_versions sequence on
// each commit. Deleted documents remain as tombstones so that their version
// keeps increasing across delete and re-create.
//
// Live subscriptions are driven by a store.Feed: each commit publishes a
// store.Change after it is durable, and subscribers re-read what they watch.
// With a shared feed (see redisfeed) subscribers in other processes see the
// commit too.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/rideplanner/internal/store"
)

// db is the minimal interface satisfied by *pgxpool.Pool and pgx.Tx.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the Postgres document store.
type Store struct {
	db   db
	feed store.Feed
	log  *slog.Logger
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for feed failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock sets the clock that resolves store.ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over db publishing commits on feed. Pass a
// store.LocalFeed for a single-process deployment.
func New(db db, feed store.Feed, opts ...Option) *Store {
	s := &Store{db: db, feed: feed, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

// Get reads one document. A path that was never written has version 0.
func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	const q = `
		SELECT path, doc_id, fields, version, created_at, updated_at, deleted_at IS NOT NULL
		FROM documents
		WHERE path = @path`

	snap, err := scanSnapshot(s.db.QueryRow(ctx, q, pgx.NamedArgs{"path": path}))
	if errors.Is(err, pgx.ErrNoRows) {
		_, id, splitErr := store.Split(path)
		if splitErr != nil {
			return store.Snapshot{}, fmt.Errorf("pgstore.Store.Get: %w", splitErr)
		}
		return store.Snapshot{ID: id, Path: path}, nil
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("pgstore.Store.Get: %w", err)
	}
	return snap, nil
}

// Query runs q. The version is read before the rows, so the rows are never
// older than the version they are reported at. Tombstones count toward the
// version, so removing a document still moves it forward.
func (s *Store) Query(ctx context.Context, q store.Query) (store.QuerySnapshot, error) {
	const head = `SELECT coalesce(max(version), 0) FROM documents WHERE collection = @collection`

	var version int64
	if err := s.db.QueryRow(ctx, head, pgx.NamedArgs{"collection": q.Collection}).Scan(&version); err != nil {
		return store.QuerySnapshot{}, fmt.Errorf("pgstore.Store.Query: head: %w", err)
	}

	sql, args, err := buildQuery(q)
	if err != nil {
		return store.QuerySnapshot{}, fmt.Errorf("pgstore.Store.Query: %w", err)
	}
	rows, err := s.db.Query(ctx, sql, args)
	if err != nil {
		return store.QuerySnapshot{}, fmt.Errorf("pgstore.Store.Query: %w", err)
	}
	defer rows.Close()

	var docs []store.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return store.QuerySnapshot{}, fmt.Errorf("pgstore.Store.Query: scan: %w", err)
		}
		docs = append(docs, snap)
	}
	if err := rows.Err(); err != nil {
		return store.QuerySnapshot{}, fmt.Errorf("pgstore.Store.Query: rows: %w", err)
	}
	return store.QuerySnapshot{Docs: docs, Version: version}, nil
}

// Add creates a document with a random UUID under collection.
func (s *Store) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, store.Doc(collection, id), fields); err != nil {
		return "", fmt.Errorf("pgstore.Store.Add: %w", err)
	}
	return id, nil
}

// Set creates or replaces a document. Replacing a tombstone resets its
// creation time.
func (s *Store) Set(ctx context.Context, path string, fields store.Fields) error {
	const q = `
		INSERT INTO documents (path, collection, doc_id, fields, version, created_at, updated_at)
		VALUES (@path, @collection, @doc_id, @fields, nextval('document_versions'), @now, @now)
		ON CONFLICT (path) DO UPDATE
		SET fields     = EXCLUDED.fields,
		    version    = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at,
		    created_at = CASE WHEN documents.deleted_at IS NULL THEN documents.created_at ELSE EXCLUDED.created_at END,
		    deleted_at = NULL
		RETURNING version`

	collection, id, err := store.Split(path)
	if err != nil {
		return fmt.Errorf("pgstore.Store.Set: %w", err)
	}
	now := s.now().UTC()
	raw, err := encodeFields(store.Apply(nil, fields, now))
	if err != nil {
		return fmt.Errorf("pgstore.Store.Set: encode: %w", err)
	}

	var version int64
	err = s.db.QueryRow(ctx, q, pgx.NamedArgs{
		"path":       path,
		"collection": collection,
		"doc_id":     id,
		"fields":     raw,
		"now":        now,
	}).Scan(&version)
	if err != nil {
		return fmt.Errorf("pgstore.Store.Set: %w", err)
	}
	s.publish(ctx, store.Change{Path: path, Collection: collection, Version: version})
	return nil
}

// Update merges fields into a live document inside a transaction holding the
// row lock, so concurrent appends never lose entries.
func (s *Store) Update(ctx context.Context, path string, fields store.Fields) error {
	const (
		lock = `
			SELECT collection, fields
			FROM documents
			WHERE path = @path AND deleted_at IS NULL
			FOR UPDATE`
		write = `
			UPDATE documents
			SET fields     = @fields,
			    version    = nextval('document_versions'),
			    updated_at = @now
			WHERE path = @path
			RETURNING version`
	)

	var change store.Change
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, lock, pgx.NamedArgs{"path": path}).Scan(&change.Collection, &raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeFields(raw)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		merged, err := encodeFields(store.Apply(current, fields, now))
		if err != nil {
			return err
		}
		change.Path = path
		return tx.QueryRow(ctx, write, pgx.NamedArgs{"path": path, "fields": merged, "now": now}).Scan(&change.Version)
	})
	if err != nil {
		return fmt.Errorf("pgstore.Store.Update: %w", err)
	}
	s.publish(ctx, change)
	return nil
}

// Delete turns a live document into a tombstone.
func (s *Store) Delete(ctx context.Context, path string) error {
	const q = `
		UPDATE documents
		SET fields     = '{}'::jsonb,
		    version    = nextval('document_versions'),
		    updated_at = @now,
		    deleted_at = @now
		WHERE path = @path AND deleted_at IS NULL
		RETURNING collection, version`

	change := store.Change{Path: path}
	err := s.db.QueryRow(ctx, q, pgx.NamedArgs{"path": path, "now": s.now().UTC()}).Scan(&change.Collection, &change.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("pgstore.Store.Delete: %w", store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("pgstore.Store.Delete: %w", err)
	}
	s.publish(ctx, change)
	return nil
}

// publish announces a durable commit. A feed failure does not undo the
// commit; subscribers catch up on the next change they see.
func (s *Store) publish(ctx context.Context, c store.Change) {
	if err := s.feed.Publish(ctx, c); err != nil {
		s.log.Warn("pgstore: publish change failed", "path", c.Path, "version", c.Version, "error", err)
	}
}

// Subscribe watches one document.
func (s *Store) Subscribe(ctx context.Context, path string, fn store.DocListener) (store.Cancel, error) {
	if _, _, err := store.Split(path); err != nil {
		return nil, fmt.Errorf("pgstore.Store.Subscribe: %w", err)
	}
	return s.watch(ctx, func(c store.Change) bool { return c.Path == path }, func(ctx context.Context) error {
		snap, err := s.Get(ctx, path)
		if err != nil {
			return err
		}
		fn(snap, nil)
		return nil
	}, func(err error) { fn(store.Snapshot{}, err) })
}

// SubscribeQuery watches the result of q.
func (s *Store) SubscribeQuery(ctx context.Context, q store.Query, fn store.QueryListener) (store.Cancel, error) {
	if _, _, err := buildQuery(q); err != nil {
		return nil, fmt.Errorf("pgstore.Store.SubscribeQuery: %w", err)
	}
	return s.watch(ctx, func(c store.Change) bool { return c.Collection == q.Collection }, func(ctx context.Context) error {
		qs, err := s.Query(ctx, q)
		if err != nil {
			return err
		}
		fn(qs, nil)
		return nil
	}, func(err error) { fn(store.QuerySnapshot{}, err) })
}

// watch registers on the feed before the first read so no commit between the
// two is missed. Reads run one at a time on the subscription's mailbox, which
// keeps deliveries in read order. A read error ends the subscription.
func (s *Store) watch(
	ctx context.Context,
	match func(store.Change) bool,
	refresh func(context.Context) error,
	fail func(error),
) (store.Cancel, error) {
	sctx, cancelCtx := context.WithCancel(ctx)
	box := store.NewMailbox()

	var (
		once     sync.Once
		stopFeed store.Cancel = func() {}
		mu       sync.Mutex
	)
	cancel := func() {
		once.Do(func() {
			cancelCtx()
			box.Close()
			mu.Lock()
			stopFeed()
			mu.Unlock()
		})
	}

	read := func() {
		if err := refresh(sctx); err != nil {
			if sctx.Err() != nil {
				return
			}
			fail(fmt.Errorf("pgstore: refresh: %w", err))
			cancel()
		}
	}

	stop, err := s.feed.Listen(sctx, func(c store.Change) {
		if match(c) {
			box.Post(read)
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("pgstore: listen: %w", err)
	}
	mu.Lock()
	stopFeed = stop
	mu.Unlock()

	box.Post(read)

	go func() {
		<-sctx.Done()
		cancel()
	}()
	return cancel, nil
}
