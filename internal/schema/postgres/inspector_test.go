package postgres

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/askdb/askdb/internal/schema"
)

func TestTablesGroupsColumnsByTableInOrder(t *testing.T) {
	mock, inspector := newMockInspector(t, "sqlmock_inspector_ok")

	mock.ExpectPing()
	mock.ExpectQuery("information_schema.columns").WillReturnRows(
		sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("items", "id", "bigint").
			AddRow("items", "name", "text").
			AddRow("orders", "id", "bigint").
			AddRow("orders", "total", "numeric"))
	mock.ExpectClose()

	tables, err := inspector.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	want := []schema.Table{
		{Name: "items", Columns: []schema.Column{{Name: "id", DataType: "bigint"}, {Name: "name", DataType: "text"}}},
		{Name: "orders", Columns: []schema.Column{{Name: "id", DataType: "bigint"}, {Name: "total", DataType: "numeric"}}},
	}
	if len(tables) != len(want) {
		t.Fatalf("tables = %d, want %d", len(tables), len(want))
	}
	for i := range want {
		if tables[i].Name != want[i].Name {
			t.Fatalf("tables[%d].Name = %q, want %q", i, tables[i].Name, want[i].Name)
		}
		if len(tables[i].Columns) != len(want[i].Columns) {
			t.Fatalf("tables[%d] columns = %d, want %d", i, len(tables[i].Columns), len(want[i].Columns))
		}
		for j := range want[i].Columns {
			if tables[i].Columns[j] != want[i].Columns[j] {
				t.Fatalf("tables[%d].Columns[%d] = %+v, want %+v", i, j, tables[i].Columns[j], want[i].Columns[j])
			}
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTablesEmptySchema(t *testing.T) {
	mock, inspector := newMockInspector(t, "sqlmock_inspector_empty")

	mock.ExpectPing()
	mock.ExpectQuery("information_schema.columns").WillReturnRows(
		sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}))
	mock.ExpectClose()

	tables, err := inspector.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("tables = %v, want empty", tables)
	}
}

func TestTablesPropagatesQueryFailure(t *testing.T) {
	mock, inspector := newMockInspector(t, "sqlmock_inspector_fail")

	mock.ExpectPing()
	mock.ExpectQuery("information_schema.columns").
		WillReturnError(errors.New("permission denied for schema information_schema"))
	mock.ExpectClose()

	if _, err := inspector.Tables(context.Background()); err == nil {
		t.Fatal("expected query failure")
	}
}

func TestTablesPropagatesConnectionFailure(t *testing.T) {
	mock, inspector := newMockInspector(t, "sqlmock_inspector_conn")

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	if _, err := inspector.Tables(context.Background()); err == nil {
		t.Fatal("expected connection failure")
	}
}

func newMockInspector(t *testing.T, dsn string) (sqlmock.Sqlmock, *Inspector) {
	t.Helper()
	db, mock, err := sqlmock.NewWithDSN(dsn,
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.NewWithDSN() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return mock, NewInspector(Options{Driver: "sqlmock", DSN: dsn})
}
