package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/HammerMeetNail/lingopals/internal/database"
)

type fakeCommandTag struct {
	rowsAffected int64
}

func (f fakeCommandTag) RowsAffected() int64 {
	return f.rowsAffected
}

type fakeRow struct {
	values []any
	err    error
}

func rowFromValues(values ...any) *fakeRow {
	return &fakeRow{values: values}
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignAll(dest, r.values)
}

type fakeRows struct {
	rows    [][]any
	idx     int
	err     error
	scanErr error
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return assignAll(dest, r.rows[r.idx-1])
}

func (r *fakeRows) Close()     { r.closed = true }
func (r *fakeRows) Err() error { return r.err }

func assignAll(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(values), len(dest))
	}
	for i := range dest {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer {
			return errors.New("scan: destination is not a pointer")
		}
		target := dv.Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		sv := reflect.ValueOf(values[i])
		if !sv.Type().ConvertibleTo(target.Type()) {
			return fmt.Errorf("scan: cannot assign %T to %s", values[i], target.Type())
		}
		target.Set(sv.Convert(target.Type()))
	}
	return nil
}

type fakeDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (database.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (database.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) database.Row
	BeginFunc    func(ctx context.Context) (database.Tx, error)
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (database.CommandTag, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, sql, args...)
	}
	return fakeCommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, sql, args...)
	}
	return &fakeRows{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{err: errors.New("unexpected QueryRow")}
}

func (f *fakeDB) Begin(ctx context.Context) (database.Tx, error) {
	if f.BeginFunc != nil {
		return f.BeginFunc(ctx)
	}
	return nil, errors.New("unexpected Begin")
}

type fakeTx struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (database.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (database.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) database.Row
	CommitFunc   func(ctx context.Context) error

	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (database.CommandTag, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, sql, args...)
	}
	return fakeCommandTag{rowsAffected: 1}, nil
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, sql, args...)
	}
	return &fakeRows{}, nil
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{err: errors.New("unexpected QueryRow")}
}

func (f *fakeTx) Commit(ctx context.Context) error {
	if f.CommitFunc != nil {
		if err := f.CommitFunc(ctx); err != nil {
			return err
		}
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}
