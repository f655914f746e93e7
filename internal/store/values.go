package store

import (
	"reflect"
	"strings"
	"time"
)

type serverTimestamp struct{}

// ServerTimestamp is replaced by the commit time (UTC) when written.
var ServerTimestamp any = serverTimestamp{}

// ArrayAppend appends elements to an array field. It is only meaningful as a
// top-level value passed to Update or Set.
type ArrayAppend struct {
	Elems []any
}

// Append returns an ArrayAppend for elems. Elements are appended as given,
// duplicates included, and may contain ServerTimestamp.
func Append(elems ...any) ArrayAppend {
	return ArrayAppend{Elems: elems}
}

// Apply merges patch into a copy of current at commit time now and returns
// the result. Sentinels in patch are resolved; current is not modified.
func Apply(current, patch Fields, now time.Time) Fields {
	out := make(Fields, len(current)+len(patch))
	for k, v := range current {
		out[k] = Clone(v)
	}
	for k, v := range patch {
		if app, ok := v.(ArrayAppend); ok {
			existing, _ := out[k].([]any)
			merged := make([]any, 0, len(existing)+len(app.Elems))
			merged = append(merged, existing...)
			for _, e := range app.Elems {
				merged = append(merged, resolve(e, now))
			}
			out[k] = merged
			continue
		}
		out[k] = resolve(v, now)
	}
	return out
}

func resolve(v any, now time.Time) any {
	switch x := v.(type) {
	case serverTimestamp:
		return now.UTC()
	case Fields:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = resolve(e, now)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = resolve(e, now)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = resolve(e, now)
		}
		return s
	case []string:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = e
		}
		return s
	}
	return v
}

// Clone deep-copies maps and slices so stored values never alias caller
// memory. Typed string slices become []any, as they would after a JSON round
// trip.
func Clone(v any) any {
	return resolve(v, time.Time{})
}

// CloneFields deep-copies f.
func CloneFields(f Fields) Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = Clone(v)
	}
	return out
}

// Matches reports whether f satisfies every filter.
func Matches(f Fields, where []Filter) bool {
	for _, w := range where {
		if !reflect.DeepEqual(f[w.Field], w.Value) {
			return false
		}
	}
	return true
}

// Compare orders two field values. Missing values sort first. Times compare
// chronologically, strings lexically; mixed types compare as equal.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return 0
}
