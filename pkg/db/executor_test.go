package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestExecutorReturnsNormalizedRows(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT region, total, sold_at, note FROM sales")).
		WillReturnRows(sqlmock.NewRows([]string{"region", "total", "sold_at", "note"}).
			AddRow([]byte("Asia"), 12.5, ts, nil).
			AddRow("Europe", int64(3), ts, "x"))

	e := NewExecutor(sqlDB)
	table, err := e.Execute(context.Background(), "SELECT region, total, sold_at, note FROM sales")
	require.NoError(t, err)
	require.Equal(t, []string{"region", "total", "sold_at", "note"}, table.Columns)
	require.Equal(t, 2, table.Len())
	require.Equal(t, []any{"Asia", 12.5, "2024-03-01T12:00:00Z", nil}, table.Rows[0])
	require.Equal(t, []any{"Europe", int64(3), "2024-03-01T12:00:00Z", "x"}, table.Rows[1])
	require.False(t, table.Truncated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorWrapsDriverErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT nope").WillReturnError(errors.New("no such column: nope"))

	_, err = NewExecutor(sqlDB).Execute(context.Background(), "SELECT nope FROM sales")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSQLExecution))
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "SELECT nope FROM sales", ee.SQL)
	require.Contains(t, err.Error(), "no such column: nope")
}

func TestExecutorReadOnlyGuard(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	e := NewExecutor(sqlDB, WithReadOnly(true))
	for _, stmt := range []string{"DROP TABLE sales", "  delete from sales", "UPDATE sales SET x = 1", ""} {
		_, err := e.Execute(context.Background(), stmt)
		require.ErrorIs(t, err, ErrSQLExecution, stmt)
	}

	mock.ExpectQuery("(?i)^with").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
	table, err := e.Execute(context.Background(), "with t as (select 1 as n) select n from t")
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorMaxRows(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT n").WillReturnRows(rows)

	table, err := NewExecutor(sqlDB, WithMaxRows(3)).Execute(context.Background(), "SELECT n FROM numbers")
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	require.True(t, table.Truncated)
}

func TestTableText(t *testing.T) {
	table := &Table{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{int64(1), "x"}, {int64(2), nil}, {int64(3), "z"}},
	}
	require.Equal(t, "a | b\n1 | x\n2 | NULL\n3 | z", table.Text(0))
	require.Equal(t, "a | b\n1 | x\n... 2 more rows", table.Text(2))
	require.Equal(t, []map[string]any{
		{"a": int64(1), "b": "x"},
		{"a": int64(2), "b": nil},
		{"a": int64(3), "b": "z"},
	}, table.Records())
}
