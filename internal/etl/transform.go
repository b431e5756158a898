// Package etl runs the orders pipeline: it reads the raw orders and users
// files, cleans and enriches orders, joins them with users, and writes the
// orders_clean, users and analytics tables plus a run metadata document.
//
// Transform is the pure core and touches no files. Runner wraps it with I/O,
// logging and metrics.
package etl

import (
	"errors"
	"fmt"
	"time"

	"ordersetl/internal/join"
	"ordersetl/internal/quality"
	"ordersetl/internal/runmeta"
	"ordersetl/internal/table"
	"ordersetl/internal/transformer"
	"ordersetl/internal/transformer/builtin"
)

// Stats is the immutable statistics snapshot of one run.
type Stats = runmeta.Stats

// Column names the pipeline reads or derives.
const (
	colUserID    = "user_id"
	colCountry   = "country"
	colSignup    = "signup_date"
	colAmount    = "amount"
	colCreatedAt = "created_at"
	colStatus    = "status"

	colStatusClean  = "status_clean"
	colAmountWinsor = "amount_winsor"
)

// flaggedColumns get a {col}_missing companion before any parsing, so the
// flags describe the raw input.
var flaggedColumns = []string{"amount", "quantity", "created_at", "status"}

// Options are the tunable parameters of Transform.
type Options struct {
	StatusMap   map[string]string
	WinsorLower float64
	WinsorUpper float64
	// JoinSuffix renames users columns that collide with orders columns.
	JoinSuffix string
	// MatchColumn is the users column whose presence defines a matched row.
	// Empty disables the match rate.
	MatchColumn string
	// Observe, when set, is called after every cleaning step.
	Observe transformer.Observer
}

// DefaultOptions returns the built-in status map and winsorization bounds.
func DefaultOptions() Options {
	return Options{
		StatusMap:   builtin.StatusMap,
		WinsorLower: builtin.DefaultWinsorLower,
		WinsorUpper: builtin.DefaultWinsorUpper,
		JoinSuffix:  join.DefaultSuffix,
		MatchColumn: colCountry,
	}
}

// Result holds the three output tables and the run statistics.
type Result struct {
	OrdersClean *table.Table
	Users       *table.Table
	Analytics   *table.Table
	Stats       Stats
}

// Transform validates the raw tables and produces the output tables. Any
// structural problem (missing column, empty input, duplicate user, broken
// join contract) is returned as an error and no result is produced.
// Per-value problems become missing cells and show up in Stats.
func Transform(ordersRaw, usersRaw *table.Table, opt Options) (Result, error) {
	if err := checkInputs(ordersRaw, usersRaw); err != nil {
		return Result{}, err
	}

	users, err := cleanUsers(usersRaw, opt.Observe)
	if err != nil {
		return Result{}, fmt.Errorf("clean users: %w", err)
	}

	var (
		unparseable int
		outliers    int
		unmapped    int
		bounds      builtin.Bounds
	)
	chain := transformer.Chain{Observe: opt.Observe}
	chain.
		Then("enforce_schema", func(t *table.Table) (*table.Table, error) {
			return builtin.EnforceSchema(t, builtin.OrdersSchema)
		}).
		Then("status_clean", func(t *table.Table) (*table.Table, error) {
			t, err := builtin.NormalizeTextColumn(t, colStatus, colStatusClean)
			if err != nil {
				return nil, err
			}
			unmapped = builtin.Unmapped(t.Values(colStatusClean), opt.StatusMap)
			return builtin.ApplyMappingColumn(t, colStatusClean, colStatusClean, opt.StatusMap)
		}).
		Then("missing_flags", func(t *table.Table) (*table.Table, error) {
			return builtin.AddMissingFlags(t, flaggedColumns)
		}).
		Then("parse_created_at", func(t *table.Table) (*table.Table, error) {
			out, n, err := builtin.ParseDatetime(t, colCreatedAt, true)
			unparseable = n
			return out, err
		}).
		Then("time_parts", func(t *table.Table) (*table.Table, error) {
			return builtin.AddTimeParts(t, colCreatedAt)
		}).
		Then("winsorize_amount", func(t *table.Table) (*table.Table, error) {
			out, b, err := builtin.WinsorizeColumn(t, colAmount, colAmountWinsor, opt.WinsorLower, opt.WinsorUpper)
			bounds = b
			return out, err
		}).
		Then("outlier_flag", func(t *table.Table) (*table.Table, error) {
			out, n, err := builtin.AddOutlierFlagWithin(t, colAmount, bounds)
			outliers = n
			return out, err
		})

	orders, err := chain.Apply(ordersRaw)
	if err != nil {
		return Result{}, fmt.Errorf("clean orders: %w", err)
	}

	start := time.Now()
	analytics, err := join.SafeLeftJoin(orders, users, join.Options{
		On:            []string{colUserID},
		Cardinality:   join.ManyToOne,
		Suffix:        opt.JoinSuffix,
		CheckRowCount: true,
	})
	if opt.Observe != nil {
		opt.Observe("join_users", err, time.Since(start))
	}
	if err != nil {
		return Result{}, err
	}

	ordersClean, err := analytics.Select(orders.Names()...)
	if err != nil {
		return Result{}, fmt.Errorf("orders_clean: %w", err)
	}

	stats := Stats{
		RowsInOrdersRaw:            ordersRaw.Len(),
		RowsInUsersRaw:             usersRaw.Len(),
		RowsOutAnalytics:           analytics.Len(),
		MissingCreatedAtAfterParse: analytics.NullCount(colCreatedAt),
		UnparseableCreatedAt:       unparseable,
		JoinMatchColumn:            opt.MatchColumn,
		JoinMatchRate:              matchRate(analytics, opt.MatchColumn),
		OrdersOutliers:             outliers,
		UnmappedStatusValues:       unmapped,
	}

	return Result{
		OrdersClean: ordersClean,
		Users:       users,
		Analytics:   analytics,
		Stats:       stats,
	}, nil
}

// checkInputs runs the fail-fast quality gate over both raw tables.
func checkInputs(orders, users *table.Table) error {
	if err := quality.RequireColumns(orders, builtin.OrdersSchema.Names()); err != nil {
		return label(err, "orders_raw")
	}
	if err := quality.RequireColumns(users, builtin.UsersSchema.Names()); err != nil {
		return label(err, "users_raw")
	}
	if err := quality.AssertNonEmpty(orders, "orders_raw"); err != nil {
		return err
	}
	if err := quality.AssertNonEmpty(users, "users_raw"); err != nil {
		return err
	}
	// The join below is many-to-one; fail here with the offending ids
	// rather than with a bare cardinality violation.
	return quality.AssertUniqueKey(users, colUserID)
}

func label(err error, name string) error {
	var se *quality.SchemaError
	if errors.As(err, &se) {
		se.Table = name
	}
	return err
}

// cleanUsers enforces the users schema, normalizes country and parses
// signup_date.
func cleanUsers(t *table.Table, observe transformer.Observer) (*table.Table, error) {
	chain := transformer.Chain{Observe: observe}
	chain.
		Then("users_schema", func(t *table.Table) (*table.Table, error) {
			return builtin.EnforceSchema(t, builtin.UsersSchema)
		}).
		Then("users_country", func(t *table.Table) (*table.Table, error) {
			return builtin.NormalizeTextColumn(t, colCountry, colCountry)
		}).
		Then("users_signup_date", func(t *table.Table) (*table.Table, error) {
			out, _, err := builtin.ParseDatetime(t, colSignup, true)
			return out, err
		})
	return chain.Apply(t)
}

// matchRate is the share of rows with a non-missing col, or nil when the
// column is absent or the table is empty.
func matchRate(t *table.Table, col string) *float64 {
	if col == "" || !t.Has(col) || t.Len() == 0 {
		return nil
	}
	r := 1 - float64(t.NullCount(col))/float64(t.Len())
	return &r
}
