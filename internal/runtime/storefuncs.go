package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/pyexplain/internal/store"
)

// History host functions. Risor scripts cannot consume Go struct slices
// directly, so rows are returned as lists of maps with primitive values.

// makeRecentRunsFn creates "recent_runs".
//
// recent_runs(limit) → []map
func makeRecentRunsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("recent_runs", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("recent_runs", 1, len(args))
		}
		limit, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("recent_runs: %v", err)
		}
		runs, err := s.RecentRuns(int(limit))
		if err != nil {
			return object.Errorf("recent_runs: %v", err)
		}
		results := make([]object.Object, 0, len(runs))
		for _, r := range runs {
			results = append(results, runToMap(r))
		}
		return object.NewList(results)
	})
}

// makeKindCountsFn creates "kind_counts".
//
// kind_counts() → map[kind]int
func makeKindCountsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("kind_counts", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("kind_counts", 0, len(args))
		}
		counts, err := s.KindCounts()
		if err != nil {
			return object.Errorf("kind_counts: %v", err)
		}
		m := make(map[string]object.Object, len(counts))
		for _, kc := range counts {
			m[kc.Kind] = object.NewInt(int64(kc.Count))
		}
		return object.NewMap(m)
	})
}

// makeDBQueryFn creates "db_query", a read-only SQL escape hatch.
//
// db_query(sql, args...) → []map
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		queryArgs := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, arg.Inspect())
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

func runToMap(r *store.Run) object.Object {
	m := map[string]object.Object{
		"id":         object.NewString(r.ID),
		"label":      object.NewString(r.Label),
		"hash":       object.NewString(r.Hash),
		"created_at": object.NewString(r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")),
		"count":      object.NewInt(int64(r.Count)),
	}
	if r.FileID != nil {
		m["file_id"] = object.NewInt(*r.FileID)
	}
	return object.NewMap(m)
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func toInt64(obj object.Object) (int64, error) {
	switch v := obj.(type) {
	case *object.Int:
		return v.Value(), nil
	case *object.Float:
		return int64(v.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
