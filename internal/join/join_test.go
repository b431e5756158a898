package join

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ordersetl/internal/quality"
	"ordersetl/internal/table"
)

func orders(t *testing.T, userIDs ...any) *table.Table {
	t.Helper()
	rows := make([][]any, len(userIDs))
	for i, u := range userIDs {
		rows[i] = []any{fmt.Sprint(i + 1), u, float64(10 * (i + 1))}
	}
	return table.MustNew([]table.Column{
		{Name: "order_id"}, {Name: "user_id"}, {Name: "amount", Kind: table.Float},
	}, rows)
}

func users(t *testing.T, pairs ...[2]any) *table.Table {
	t.Helper()
	rows := make([][]any, len(pairs))
	for i, p := range pairs {
		rows[i] = []any{p[0], p[1]}
	}
	return table.MustNew([]table.Column{{Name: "user_id"}, {Name: "country"}}, rows)
}

func manyToOne() Options {
	return Options{On: []string{"user_id"}, Cardinality: ManyToOne, CheckRowCount: true}
}

/*
TestSafeLeftJoin_ManyToOnePreservesLeftRows verifies that every left row
appears exactly once, augmented with the matching right columns or nils.
*/
func TestSafeLeftJoin_ManyToOnePreservesLeftRows(t *testing.T) {
	t.Parallel()

	left := orders(t, "a", "b", "a", "zzz", nil)
	right := users(t, [2]any{"a", "us"}, [2]any{"b", "de"}, [2]any{"c", "fr"})

	out, err := SafeLeftJoin(left, right, manyToOne())
	if err != nil {
		t.Fatalf("SafeLeftJoin: %v", err)
	}
	if out.Len() != left.Len() {
		t.Fatalf("rows = %d, want %d", out.Len(), left.Len())
	}
	if diff := cmp.Diff([]string{"order_id", "user_id", "amount", "country"}, out.Names()); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"1", "2", "3", "4", "5"}, out.Values("order_id")); diff != "" {
		t.Fatalf("left order changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"us", "de", "us", nil, nil}, out.Values("country")); diff != "" {
		t.Fatalf("country mismatch (-want +got):\n%s", diff)
	}
}

/*
TestSafeLeftJoin_RightDuplicatesFailBeforeJoining verifies that a right table
with repeated keys is rejected under one-to-one and many-to-one contracts,
even when no left row would have matched the duplicate.
*/
func TestSafeLeftJoin_RightDuplicatesFailBeforeJoining(t *testing.T) {
	t.Parallel()

	left := orders(t, "a")
	right := users(t, [2]any{"a", "us"}, [2]any{"x", "de"}, [2]any{"x", "fr"})

	for _, c := range []Cardinality{ManyToOne, OneToOne} {
		for _, check := range []bool{true, false} {
			_, err := SafeLeftJoin(left, right, Options{On: []string{"user_id"}, Cardinality: c, CheckRowCount: check})
			var cv *CardinalityViolation
			if !errors.As(err, &cv) {
				t.Fatalf("%s check=%v: err = %v, want *CardinalityViolation", c, check, err)
			}
			if cv.Side != "right" || cv.Duplicates != 1 {
				t.Fatalf("%s: violation = %+v", c, cv)
			}
		}
	}
}

func TestSafeLeftJoin_LeftUniqueness(t *testing.T) {
	t.Parallel()

	left := orders(t, "a", "a")
	right := users(t, [2]any{"a", "us"})

	for _, c := range []Cardinality{OneToOne, OneToMany} {
		_, err := SafeLeftJoin(left, right, Options{On: []string{"user_id"}, Cardinality: c})
		var cv *CardinalityViolation
		if !errors.As(err, &cv) || cv.Side != "left" {
			t.Fatalf("%s: err = %v, want left *CardinalityViolation", c, err)
		}
	}
	if _, err := SafeLeftJoin(left, right, manyToOne()); err != nil {
		t.Fatalf("many_to_one with repeated left keys: %v", err)
	}
}

func TestSafeLeftJoin_ManyToManyFansOut(t *testing.T) {
	t.Parallel()

	left := orders(t, "a", "b")
	right := users(t, [2]any{"a", "us"}, [2]any{"a", "ca"})

	out, err := SafeLeftJoin(left, right, Options{On: []string{"user_id"}, Cardinality: ManyToMany, CheckRowCount: true})
	if err != nil {
		t.Fatalf("SafeLeftJoin: %v", err)
	}
	want := []table.Record{
		{"order_id": "1", "user_id": "a", "amount": 10.0, "country": "us"},
		{"order_id": "1", "user_id": "a", "amount": 10.0, "country": "ca"},
		{"order_id": "2", "user_id": "b", "amount": 20.0, "country": nil},
	}
	if diff := cmp.Diff(want, out.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestSafeLeftJoin_SuffixAndCompositeKey(t *testing.T) {
	t.Parallel()

	left := table.MustNew(
		[]table.Column{{Name: "k1"}, {Name: "k2", Kind: table.Int}, {Name: "note"}},
		[][]any{{"a", int64(1), "left"}, {"a", int64(2), "left"}},
	)
	right := table.MustNew(
		[]table.Column{{Name: "k1"}, {Name: "k2", Kind: table.Int}, {Name: "note"}},
		[][]any{{"a", int64(2), "right"}},
	)

	out, err := SafeLeftJoin(left, right, Options{On: []string{"k1", "k2"}, Cardinality: OneToOne, Suffix: "_user", CheckRowCount: true})
	if err != nil {
		t.Fatalf("SafeLeftJoin: %v", err)
	}
	want := []table.Record{
		{"k1": "a", "k2": int64(1), "note": "left", "note_user": nil},
		{"k1": "a", "k2": int64(2), "note": "left", "note_user": "right"},
	}
	if diff := cmp.Diff(want, out.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	def, err := SafeLeftJoin(left, right, Options{On: []string{"k1", "k2"}, Cardinality: OneToOne})
	if err != nil {
		t.Fatalf("SafeLeftJoin default suffix: %v", err)
	}
	if !def.Has("note_r") {
		t.Fatalf("default suffix column missing: %v", def.Names())
	}
}

func TestSafeLeftJoin_MissingKeyColumn(t *testing.T) {
	t.Parallel()

	left := orders(t, "a")
	right := table.MustNew([]table.Column{{Name: "country"}}, nil)

	_, err := SafeLeftJoin(left, right, manyToOne())
	var se *quality.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *quality.SchemaError", err)
	}
}

func TestJoinExplosionError_Message(t *testing.T) {
	t.Parallel()

	var err error = &JoinExplosionError{Before: 3, After: 5}
	if got := err.Error(); got != "join: row count changed 3 -> 5" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestParseCardinality(t *testing.T) {
	t.Parallel()

	cases := map[string]Cardinality{
		"many_to_one":  ManyToOne,
		"many-to-one":  ManyToOne,
		"1:1":          OneToOne,
		" One_To_Many": OneToMany,
		"m:m":          ManyToMany,
	}
	for in, want := range cases {
		got, err := ParseCardinality(in)
		if err != nil || got != want {
			t.Errorf("ParseCardinality(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseCardinality("some"); err == nil {
		t.Errorf("ParseCardinality(some): want error")
	}
}
