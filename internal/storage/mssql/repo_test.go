package mssql

import (
	"context"
	"strings"
	"testing"

	"ordersetl/internal/ddl"
	"ordersetl/internal/storage"
	"ordersetl/internal/table"
)

func TestCreateStatement(t *testing.T) {
	t.Parallel()

	def := storage.TableDef(Dialect{}, "dbo.analytics", []table.Column{
		{Name: "order_id"},
		{Name: "amount_outlier", Kind: table.Bool},
		{Name: "created_at", Kind: table.Time},
	})
	got, err := ddl.BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE [dbo].[analytics] (\n  [order_id] NVARCHAR(MAX),\n  [amount_outlier] BIT,\n  [created_at] DATETIME2\n);"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDialect_Identifiers(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	if got := d.QuoteIdent("a]b"); got != "[a]]b]" {
		t.Fatalf("QuoteIdent = %s", got)
	}
	if got := d.Placeholder(2); got != "@p2" {
		t.Fatalf("Placeholder = %s", got)
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, err := NewRepository(context.Background(), storage.Config{DSN: "sqlserver://%zz"})
	if err == nil || !strings.Contains(err.Error(), "mssql dsn") {
		t.Fatalf("err = %v, want dsn error", err)
	}
}
