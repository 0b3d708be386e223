package store_test

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockDBPool is an in-memory stand-in for the pgx pool.
type mockDBPool struct {
	pingErr  error
	execErr  error
	queryErr error
	rowErr   error

	rows     [][]any // rows served by Query
	row      []any   // row served by QueryRow
	affected int64   // RowsAffected reported by Exec

	execCalls atomic.Int64
}

func (m *mockDBPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	m.execCalls.Add(1)
	if m.execErr != nil {
		return pgconn.CommandTag{}, m.execErr
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", m.affected)), nil
}

func (m *mockDBPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return &mockRows{rows: m.rows}, nil
}

func (m *mockDBPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &mockRow{values: m.row, err: m.rowErr}
}

func (m *mockDBPool) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockDBPool) Close() {}

type mockRows struct {
	rows [][]any
	idx  int
}

func (r *mockRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return scanInto(r.rows[r.idx-1], dest)
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return nil }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

type mockRow struct {
	values []any
	err    error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(src []any, dest []any) error {
	if len(src) != len(dest) {
		return fmt.Errorf("scan column count mismatch: %d values, %d targets", len(src), len(dest))
	}
	for i, v := range src {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		value := reflect.ValueOf(v)
		if !value.Type().ConvertibleTo(target.Type()) {
			return fmt.Errorf("cannot scan %T into %s", v, target.Type())
		}
		target.Set(value.Convert(target.Type()))
	}
	return nil
}
