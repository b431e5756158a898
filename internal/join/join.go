// Package join implements a left outer join between two record tables under
// an explicit cardinality contract.
//
// The contract is checked against the inputs before any rows are produced:
// a many-to-one join fails when the right table repeats a key, not after the
// damage shows up as extra rows. For one-to-one and many-to-one joins the
// output row count is additionally compared with the left row count.
package join

import (
	"fmt"
	"strings"

	"ordersetl/internal/quality"
	"ordersetl/internal/table"
)

// Cardinality is the declared key relationship between left and right.
type Cardinality int

const (
	ManyToOne Cardinality = iota
	OneToOne
	OneToMany
	ManyToMany
)

func (c Cardinality) String() string {
	switch c {
	case OneToOne:
		return "one_to_one"
	case ManyToOne:
		return "many_to_one"
	case OneToMany:
		return "one_to_many"
	case ManyToMany:
		return "many_to_many"
	default:
		return fmt.Sprintf("cardinality(%d)", int(c))
	}
}

// ParseCardinality accepts "one_to_one", "one-to-one", "1:1" and the
// equivalents for the other contracts.
func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))) {
	case "one_to_one", "1:1":
		return OneToOne, nil
	case "many_to_one", "m:1":
		return ManyToOne, nil
	case "one_to_many", "1:m":
		return OneToMany, nil
	case "many_to_many", "m:m":
		return ManyToMany, nil
	}
	return 0, fmt.Errorf("join: unknown cardinality %q", s)
}

// requiresUniqueLeft reports whether the contract forbids repeated left keys.
func (c Cardinality) requiresUniqueLeft() bool { return c == OneToOne || c == OneToMany }

// requiresUniqueRight reports whether the contract forbids repeated right keys.
func (c Cardinality) requiresUniqueRight() bool { return c == OneToOne || c == ManyToOne }

// DefaultSuffix is appended to right-side columns whose names collide with a
// left-side column.
const DefaultSuffix = "_r"

// Options configures SafeLeftJoin.
type Options struct {
	// On lists the key columns; both tables must have all of them.
	On          []string
	Cardinality Cardinality
	// Suffix renames colliding right-side columns. Empty means DefaultSuffix.
	Suffix string
	// CheckRowCount enables the output-length check for one-to-one and
	// many-to-one joins.
	CheckRowCount bool
}

// SafeLeftJoin returns every left row once per matching right row, or once
// with missing right-side columns when nothing matches. Key columns appear
// once, taken from the left table. Left rows with a missing key cell never
// match.
func SafeLeftJoin(left, right *table.Table, opt Options) (*table.Table, error) {
	if len(opt.On) == 0 {
		return nil, fmt.Errorf("join: no key columns")
	}
	if err := quality.RequireColumns(left, opt.On); err != nil {
		return nil, fmt.Errorf("join: left: %w", err)
	}
	if err := quality.RequireColumns(right, opt.On); err != nil {
		return nil, fmt.Errorf("join: right: %w", err)
	}

	leftKeys := keys(left, opt.On)
	rightKeys := keys(right, opt.On)

	if opt.Cardinality.requiresUniqueLeft() {
		if d := duplicates(leftKeys); d > 0 {
			return nil, &CardinalityViolation{Cardinality: opt.Cardinality, Side: "left", On: opt.On, Duplicates: d}
		}
	}
	if opt.Cardinality.requiresUniqueRight() {
		if d := duplicates(rightKeys); d > 0 {
			return nil, &CardinalityViolation{Cardinality: opt.Cardinality, Side: "right", On: opt.On, Duplicates: d}
		}
	}

	rightCols, err := rightColumns(left, right, opt)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]int, len(rightKeys))
	for i, k := range rightKeys {
		if k.null {
			continue
		}
		index[k.enc] = append(index[k.enc], i)
	}

	var leftIdx, rightIdx []int
	for i, k := range leftKeys {
		matches := index[k.enc]
		if k.null || len(matches) == 0 {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, -1)
			continue
		}
		for _, j := range matches {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
		}
	}

	rightPart, err := right.Select(rightCols.src...)
	if err != nil {
		return nil, err
	}
	rightPart, err = rename(rightPart.Take(rightIdx), rightCols)
	if err != nil {
		return nil, err
	}
	out, err := left.Take(leftIdx).Concat(rightPart)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	if opt.CheckRowCount && opt.Cardinality.requiresUniqueRight() && out.Len() != left.Len() {
		return nil, &JoinExplosionError{Before: left.Len(), After: out.Len()}
	}
	return out, nil
}

type key struct {
	enc  string
	null bool
}

func keys(t *table.Table, on []string) []key {
	cols := make([][]any, len(on))
	for j, c := range on {
		cols[j] = t.Values(c)
	}
	out := make([]key, t.Len())
	vals := make([]any, len(on))
	for i := range out {
		null := false
		for j := range on {
			vals[j] = cols[j][i]
			if vals[j] == nil {
				null = true
			}
		}
		out[i] = key{enc: table.Key(vals...), null: null}
	}
	return out
}

// duplicates counts distinct key values occurring more than once. Missing
// keys count like any other value, matching quality.AssertUniqueKey.
func duplicates(ks []key) int {
	seen := make(map[string]int, len(ks))
	d := 0
	for _, k := range ks {
		seen[k.enc]++
		if seen[k.enc] == 2 {
			d++
		}
	}
	return d
}

type renames struct {
	src []string
	dst []string
}

// rightColumns picks the non-key right columns and their output names.
func rightColumns(left, right *table.Table, opt Options) (renames, error) {
	suffix := opt.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	isKey := make(map[string]struct{}, len(opt.On))
	for _, c := range opt.On {
		isKey[c] = struct{}{}
	}

	var r renames
	for _, name := range right.Names() {
		if _, ok := isKey[name]; ok {
			continue
		}
		dst := name
		if left.Has(name) {
			dst = name + suffix
			if left.Has(dst) || right.Has(dst) {
				return renames{}, fmt.Errorf("join: column %q collides even after suffix %q", name, suffix)
			}
		}
		r.src = append(r.src, name)
		r.dst = append(r.dst, dst)
	}
	return r, nil
}

func rename(t *table.Table, r renames) (*table.Table, error) {
	out := t
	for j, src := range r.src {
		if src == r.dst[j] {
			continue
		}
		var err error
		if out, err = out.Rename(src, r.dst[j]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
