package etl

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"ordersetl/internal/columnar"
	"ordersetl/internal/config"
	"ordersetl/internal/datasource"
	"ordersetl/internal/quality"
	"ordersetl/internal/runmeta"
	"ordersetl/internal/storage/sqlite"
)

const (
	ordersCSV = "order_id,user_id,amount,quantity,created_at,status\n" +
		"1,a,10,1,2024-01-01,Paid\n" +
		"2,b,25.5,2,2024-01-02T09:30:00Z,refunded\n" +
		"3,ghost,,1,bad,pending\n"
	usersCSV = "user_id,country,signup_date\n" +
		"a,US,2023-01-01\n" +
		"b, de ,2023-06-15\n"
)

var fixedNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

// newProject lays out data/raw under a temp root and returns a runner for it.
func newProject(t *testing.T, orders, users string) *Runner {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "data", "raw")
	if err := os.MkdirAll(raw, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{"orders.csv": orders, "users.csv": users} {
		if err := os.WriteFile(filepath.Join(raw, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &Runner{
		Config: config.Default(root),
		Logger: zaptest.NewLogger(t),
		Now:    func() time.Time { return fixedNow },
	}
}

/*
TestRunner_WritesArtifactsAndMetadata verifies a full run: the three Parquet
files read back with the expected shapes, and the metadata document carries
the statistics, resolved paths and artifact checksums.
*/
func TestRunner_WritesArtifactsAndMetadata(t *testing.T) {
	t.Parallel()

	r := newProject(t, ordersCSV, usersCSV)
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	cfg := r.Config.Resolved()
	ctx := context.Background()

	analytics, err := columnar.ReadFile(ctx, cfg.Outputs.Analytics)
	if err != nil {
		t.Fatalf("read analytics: %v", err)
	}
	if diff := cmp.Diff(res.Analytics.Records(), analytics.Records()); diff != "" {
		t.Fatalf("analytics round trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"us", "de", nil}, analytics.Values("country")); diff != "" {
		t.Fatalf("country mismatch (-want +got):\n%s", diff)
	}

	ordersClean, err := columnar.ReadFile(ctx, cfg.Outputs.OrdersClean)
	if err != nil {
		t.Fatalf("read orders_clean: %v", err)
	}
	if ordersClean.Len() != 3 || ordersClean.Has("country") {
		t.Fatalf("orders_clean: %d rows, columns %v", ordersClean.Len(), ordersClean.Names())
	}
	users, err := columnar.ReadFile(ctx, cfg.Outputs.Users)
	if err != nil {
		t.Fatalf("read users: %v", err)
	}
	if users.Len() != 2 {
		t.Fatalf("users rows = %d, want 2", users.Len())
	}

	doc, err := runmeta.Read(cfg.Outputs.RunMeta)
	if err != nil {
		t.Fatalf("read run meta: %v", err)
	}
	if doc.RowsInOrdersRaw != 3 || doc.RowsInUsersRaw != 2 || doc.RowsOutAnalytics != 3 {
		t.Fatalf("row counts = %+v", doc.Stats)
	}
	if doc.UnparseableCreatedAt != 1 || doc.MissingCreatedAtAfterParse != 1 {
		t.Fatalf("created_at counts = %+v", doc.Stats)
	}
	if doc.JoinMatchRate == nil || math.Abs(*doc.JoinMatchRate-2.0/3.0) > 1e-9 || doc.JoinMatchColumn != "country" {
		t.Fatalf("join match = %v %q", doc.JoinMatchRate, doc.JoinMatchColumn)
	}
	if !doc.StartedAt.Equal(fixedNow) || doc.RunID == "" {
		t.Fatalf("run identity = %q %v", doc.RunID, doc.StartedAt)
	}
	wantOutputs := map[string]string{
		"orders_clean":    cfg.Outputs.OrdersClean,
		"users":           cfg.Outputs.Users,
		"analytics_table": cfg.Outputs.Analytics,
		"run_meta":        cfg.Outputs.RunMeta,
	}
	if diff := cmp.Diff(wantOutputs, doc.Outputs); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
	if doc.Inputs["orders_raw"] != cfg.Inputs.Orders || doc.Config["root"] != cfg.Root {
		t.Fatalf("inputs/config = %v %v", doc.Inputs, doc.Config)
	}
	for key, path := range map[string]string{
		"orders_clean":    cfg.Outputs.OrdersClean,
		"users":           cfg.Outputs.Users,
		"analytics_table": cfg.Outputs.Analytics,
	} {
		a, ok := doc.Artifacts[key]
		if !ok {
			t.Fatalf("artifact %s missing", key)
		}
		sum, err := runmeta.Checksum(path)
		if err != nil {
			t.Fatal(err)
		}
		if a.XXH3 != sum || a.Bytes <= 0 {
			t.Fatalf("artifact %s = %+v, checksum %s", key, a, sum)
		}
	}

	// Leftover temporary files would mean a stage was never committed.
	entries, err := os.ReadDir(filepath.Dir(cfg.Outputs.Analytics))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("processed dir has %d entries, want 4", len(entries))
	}
}

func TestRunner_RerunOverwrites(t *testing.T) {
	t.Parallel()

	r := newProject(t, ordersCSV, usersCSV)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first, err := runmeta.Read(r.Config.Resolved().Outputs.RunMeta)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second, err := runmeta.Read(r.Config.Resolved().Outputs.RunMeta)
	if err != nil {
		t.Fatal(err)
	}
	if first.RunID == second.RunID {
		t.Fatalf("run id reused: %s", first.RunID)
	}
	if diff := cmp.Diff(first.Artifacts, second.Artifacts); diff != "" {
		t.Fatalf("same inputs produced different artifacts (-first +second):\n%s", diff)
	}
}

/*
TestRunner_FailureWritesNothing verifies that a structural failure leaves
the output directory exactly as it was: no new artifacts, and an existing
metadata document from an earlier run is not replaced.
*/
func TestRunner_FailureWritesNothing(t *testing.T) {
	t.Parallel()

	dupUsers := "user_id,country,signup_date\na,US,2023-01-01\na,DE,2023-01-02\n"
	r := newProject(t, ordersCSV, dupUsers)
	cfg := r.Config.Resolved()

	if err := os.MkdirAll(filepath.Dir(cfg.Outputs.RunMeta), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Outputs.RunMeta, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := r.Run(context.Background())
	var kv *quality.KeyViolationError
	if !errors.As(err, &kv) {
		t.Fatalf("err = %v, want *quality.KeyViolationError", err)
	}

	entries, err := os.ReadDir(filepath.Dir(cfg.Outputs.RunMeta))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("processed dir has %d entries, want only the previous run meta", len(entries))
	}
	if b, _ := os.ReadFile(cfg.Outputs.RunMeta); string(b) != "previous" {
		t.Fatalf("run meta replaced by a failed run: %q", b)
	}
}

func TestRunner_MissingInput(t *testing.T) {
	t.Parallel()

	r := newProject(t, ordersCSV, usersCSV)
	r.Config.Inputs.Users = filepath.Join("data", "raw", "nope.csv")

	_, err := r.Run(context.Background())
	if !errors.Is(err, datasource.ErrMissing) {
		t.Fatalf("err = %v, want datasource.ErrMissing", err)
	}
	if _, err := os.Stat(r.Config.Resolved().Outputs.RunMeta); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("run meta written after failed load: %v", err)
	}
}

/*
TestRunner_ExportsToSQLite verifies that the analytics table is exported to
the configured backend, and that a failing export keeps every artifact off
disk.
*/
func TestRunner_ExportsToSQLite(t *testing.T) {
	t.Parallel()

	r := newProject(t, ordersCSV, usersCSV)
	dsn := filepath.Join(t.TempDir(), "analytics.db")
	r.Config.Storage = config.Storage{Kind: "sqlite", DSN: dsn, Table: "analytics", BatchSize: 2}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	db, err := sqlite.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "analytics"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("exported rows = %d, want 3", n)
	}
	var matched int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "analytics" WHERE "country" IS NOT NULL`).Scan(&matched); err != nil {
		t.Fatalf("count matched: %v", err)
	}
	if matched != 2 {
		t.Fatalf("matched rows = %d, want 2", matched)
	}

	bad := newProject(t, ordersCSV, usersCSV)
	bad.Config.Storage = config.Storage{Kind: "sqlite", DSN: dsn, Table: "nosuchdb.analytics"}
	if _, err := bad.Run(context.Background()); err == nil {
		t.Fatalf("export into unknown schema: want error")
	}
	if _, err := os.Stat(filepath.Dir(bad.Config.Resolved().Outputs.Analytics)); err != nil {
		t.Fatalf("stat processed dir: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(bad.Config.Resolved().Outputs.Analytics))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("artifacts left after failed export: %v", names)
	}
}

func TestRunner_ReadsInputsOverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exports/orders.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, ordersCSV)
	}))
	defer srv.Close()

	r := newProject(t, "", usersCSV)
	r.Config.Inputs.Orders = srv.URL + "/exports/orders.csv"
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.RowsInOrdersRaw != 3 {
		t.Fatalf("orders rows = %d, want 3", res.Stats.RowsInOrdersRaw)
	}
	doc, err := runmeta.Read(r.Config.Resolved().Outputs.RunMeta)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Inputs["orders_raw"] != srv.URL+"/exports/orders.csv" {
		t.Fatalf("orders input recorded as %q", doc.Inputs["orders_raw"])
	}

	r.Config.Inputs.Orders = srv.URL + "/exports/missing.csv"
	if _, err := r.Run(context.Background()); !errors.Is(err, datasource.ErrMissing) {
		t.Fatalf("missing remote input: err = %v, want datasource.ErrMissing", err)
	}
}
