package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDescribeSchemaInformationSchema(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	d, err := LookupDialect("postgres")
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, d.Driver)

	mock.ExpectQuery(regexp.QuoteMeta(d.ColumnsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("audit", "id", "integer").
			AddRow("sales", "region", "text").
			AddRow("sales", "total_profit", "numeric"))
	mock.ExpectQuery("SELECT prompt FROM _prompts").
		WillReturnError(errors.New(`relation "_prompts" does not exist`))

	s, err := DescribeSchema(context.Background(), sqlDB, d, []string{"AUDIT"})
	require.NoError(t, err)
	require.Equal(t, []string{"sales"}, s.TableNames())
	require.Equal(t, "CREATE TABLE sales (\n  region text,\n  total_profit numeric\n);", s.Text())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := Open(ctx, Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = sqlDB.ExecContext(ctx, `CREATE TABLE Sales1m (Region TEXT, Total_Profit REAL)`)
	require.NoError(t, err)
	_, err = sqlDB.ExecContext(ctx, `CREATE TABLE _prompts (prompt TEXT)`)
	require.NoError(t, err)
	_, err = sqlDB.ExecContext(ctx, `INSERT INTO _prompts VALUES ('Profit is in USD')`)
	require.NoError(t, err)
	_, err = sqlDB.ExecContext(ctx, `INSERT INTO Sales1m VALUES ('Asia', 10.5), ('Europe', 3)`)
	require.NoError(t, err)

	d, err := LookupDialect(DriverSQLite)
	require.NoError(t, err)
	s, err := DescribeSchema(ctx, sqlDB, d, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Sales1m"}, s.TableNames())
	require.Contains(t, s.Text(), "CREATE TABLE Sales1m (Region TEXT, Total_Profit REAL);")
	require.Contains(t, s.Text(), "- Profit is in USD")

	table, err := NewExecutor(sqlDB).Execute(ctx, "SELECT Total_Profit FROM Sales1m WHERE Region = 'Asia'")
	require.NoError(t, err)
	require.Equal(t, [][]any{{10.5}}, table.Rows)
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")

	_, err = Open(context.Background(), Config{Driver: DriverSQLite})
	require.Error(t, err)
}
