package resolver

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"mysql-graphql/internal/dbexec"
)

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return errors.New("scan called without advancing rows")
	}
	row := r.rows[r.idx-1]
	if len(row) != len(dest) {
		return fmt.Errorf("scan row has %d values, dest has %d", len(row), len(dest))
	}
	for i, value := range row {
		if err := assignScanValue(dest[i], value); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Err() error {
	return r.err
}

func (r *fakeRows) Close() error {
	return nil
}

func assignScanValue(dest any, value any) error {
	switch d := dest.(type) {
	case *interface{}:
		*d = value
		return nil
	case *[]byte:
		switch v := value.(type) {
		case nil:
			*d = nil
		case []byte:
			*d = v
		case string:
			*d = []byte(v)
		default:
			return fmt.Errorf("cannot assign %T to *[]byte", value)
		}
		return nil
	default:
		rv := reflect.ValueOf(dest)
		if rv.Kind() != reflect.Ptr {
			return fmt.Errorf("scan dest must be pointer, got %T", dest)
		}
		if value == nil {
			rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
			return nil
		}
		vv := reflect.ValueOf(value)
		if vv.Type().AssignableTo(rv.Elem().Type()) {
			rv.Elem().Set(vv)
			return nil
		}
		if vv.Type().ConvertibleTo(rv.Elem().Type()) {
			rv.Elem().Set(vv.Convert(rv.Elem().Type()))
			return nil
		}
		return fmt.Errorf("cannot assign %T to %T", value, dest)
	}
}

// fakeExecutor records every statement and serves queued responses in order.
// Responses past the queue come back empty.
type fakeExecutor struct {
	responses [][][]any
	err       error
	calls     int
	queries   []string
	args      [][]any
}

func (e *fakeExecutor) QueryContext(_ context.Context, query string, args ...any) (dbexec.Rows, error) {
	e.calls++
	e.queries = append(e.queries, query)
	e.args = append(e.args, args)
	if e.err != nil {
		return nil, e.err
	}
	idx := e.calls - 1
	if idx >= len(e.responses) {
		return &fakeRows{}, nil
	}
	return &fakeRows{rows: e.responses[idx]}, nil
}

// jsonCell wraps a JSON payload the way the database returns it: one row
// with one column.
func jsonCell(payload string) [][]any {
	return [][]any{{[]byte(payload)}}
}
