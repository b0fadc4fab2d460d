package fallback

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/utility-explorer/intelligence/internal/storage"
)

// ReadOnlyExecutor runs validated SELECT statements against the live
// database and renders rows as literal strings. Validation is repeated
// here so the executor stays safe even if a caller skips the router.
type ReadOnlyExecutor struct {
	db storage.DB
}

// NewReadOnlyExecutor creates an executor over the given connection.
func NewReadOnlyExecutor(db storage.DB) *ReadOnlyExecutor {
	return &ReadOnlyExecutor{db: db}
}

// Query executes the statement and returns one formatted line per row.
func (e *ReadOnlyExecutor) Query(ctx context.Context, query string) ([]string, error) {
	if err := ValidateReadOnly(query); err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []string
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		fields := make([]string, len(cols))
		for i, col := range cols {
			fields[i] = fmt.Sprintf("%s=%s", col, renderValue(values[i]))
		}
		out = append(out, "("+strings.Join(fields, ", ")+")")
	}
	return out, rows.Err()
}

var _ Executor = (*ReadOnlyExecutor)(nil)

func renderValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case sql.RawBytes:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
