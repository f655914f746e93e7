package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/rideplanner/internal/store"
)

// timeLayout is fixed-width so that JSONB text ordering is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(s scanner) (store.Snapshot, error) {
	var (
		snap    store.Snapshot
		raw     []byte
		deleted bool
	)
	if err := s.Scan(&snap.Path, &snap.ID, &raw, &snap.Version, &snap.CreateTime, &snap.UpdateTime, &deleted); err != nil {
		return store.Snapshot{}, err
	}
	if deleted {
		return store.Snapshot{ID: snap.ID, Path: snap.Path, Version: snap.Version}, nil
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return store.Snapshot{}, err
	}
	snap.Exists = true
	snap.Fields = fields
	return snap, nil
}

func buildQuery(q store.Query) (string, pgx.NamedArgs, error) {
	if q.Collection == "" {
		return "", nil, errors.New("empty collection")
	}

	where := make(map[string]any, len(q.Where))
	for _, f := range q.Where {
		where[f.Field] = f.Value
	}
	rawWhere, err := encodeFields(where)
	if err != nil {
		return "", nil, fmt.Errorf("encode filter: %w", err)
	}

	sql := `
		SELECT path, doc_id, fields, version, created_at, updated_at, false
		FROM documents
		WHERE collection = @collection
		  AND deleted_at IS NULL
		  AND fields @> @where::jsonb`
	args := pgx.NamedArgs{"collection": q.Collection, "where": rawWhere}

	switch {
	case q.OrderBy == "":
		sql += `
		ORDER BY doc_id`
	case q.Desc:
		sql += `
		ORDER BY fields->>@order_by DESC NULLS LAST, doc_id`
		args["order_by"] = q.OrderBy
	default:
		sql += `
		ORDER BY fields->>@order_by ASC NULLS FIRST, doc_id`
		args["order_by"] = q.OrderBy
	}
	return sql, args, nil
}

// encodeFields renders f as JSON with times in timeLayout.
func encodeFields(f map[string]any) ([]byte, error) {
	return json.Marshal(encodeValue(f))
}

func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(timeLayout)
	case store.Fields:
		return encodeValue(map[string]any(x))
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = encodeValue(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = encodeValue(e)
		}
		return s
	}
	return v
}

// decodeFields parses stored JSON. Times come back as strings.
func decodeFields(raw []byte) (store.Fields, error) {
	f := store.Fields{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return f, nil
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func withTx(ctx context.Context, db db, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	return fn(tx)
}
