package builtin

import (
	"fmt"
	"math"
	"sort"

	"ordersetl/internal/table"
)

// Default winsorization percentiles.
const (
	DefaultWinsorLower = 0.01
	DefaultWinsorUpper = 0.99
)

// OutlierSuffix is appended to a column name to form its outlier-flag column.
const OutlierSuffix = "_outlier"

// Bounds is a closed [Lo, Hi] interval. OK is false when it was computed from
// no values, in which case nothing is clipped or flagged.
type Bounds struct {
	Lo, Hi float64
	OK     bool
}

// rankBounds takes bounds at observed values: the lower percentile rounds down to
// the nearest rank and the upper one rounds up. Clipping therefore never
// moves a value past an observation, and winsorizing already-winsorized data
// yields the same bounds again.
func rankBounds(sorted []float64, lower, upper float64) Bounds {
	last := float64(len(sorted) - 1)
	lo := int(math.Floor(lower * last))
	hi := int(math.Ceil(upper * last))
	return Bounds{Lo: sorted[lo], Hi: sorted[hi], OK: true}
}

// WinsorBounds computes the lower/upper percentile bounds over the non-missing
// numeric values.
func WinsorBounds(values []any, lower, upper float64) (Bounds, error) {
	if lower < 0 || upper > 1 || lower > upper {
		return Bounds{}, fmt.Errorf("winsorize: invalid percentiles [%v, %v]", lower, upper)
	}
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := numeric(v); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return Bounds{}, nil
	}
	sort.Float64s(nums)
	return rankBounds(nums, lower, upper), nil
}

// Clip returns v limited to b. Missing values stay missing.
func (b Bounds) Clip(v any) any {
	f, ok := numeric(v)
	if !ok || !b.OK {
		return v
	}
	return math.Min(math.Max(f, b.Lo), b.Hi)
}

// Outside reports whether v lies strictly outside b. Missing values are
// never outside.
func (b Bounds) Outside(v any) bool {
	f, ok := numeric(v)
	if !ok || !b.OK {
		return false
	}
	return f < b.Lo || f > b.Hi
}

// Winsorize clips values below the lower percentile and above the upper
// percentile to those percentiles. Percentiles are computed over non-missing
// values only and missing values pass through. Re-applying with the same
// percentiles leaves the result unchanged.
func Winsorize(values []any, lower, upper float64) ([]any, error) {
	b, err := WinsorBounds(values, lower, upper)
	if err != nil {
		return nil, err
	}
	return ClipTo(values, b), nil
}

// ClipTo clips every value to b. Non-missing values come back as float64.
func ClipTo(values []any, b Bounds) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = b.Clip(v)
	}
	return out
}

// WinsorizeColumn writes the winsorized form of src into dst as a float
// column and returns the bounds it used.
func WinsorizeColumn(t *table.Table, src, dst string, lower, upper float64) (*table.Table, Bounds, error) {
	if err := requireNumeric(t, src); err != nil {
		return nil, Bounds{}, err
	}
	vals := floats(t.Values(src))
	b, err := WinsorBounds(vals, lower, upper)
	if err != nil {
		return nil, Bounds{}, err
	}
	out, err := t.WithColumn(table.Column{Name: dst, Kind: table.Float}, ClipTo(vals, b))
	if err != nil {
		return nil, Bounds{}, err
	}
	return out, b, nil
}

// AddOutlierFlag adds "{col}_outlier", true where the original value of col
// falls outside the winsorization bounds for the same percentiles. It
// returns the number of flagged rows.
func AddOutlierFlag(t *table.Table, col string, lower, upper float64) (*table.Table, int, error) {
	if err := requireNumeric(t, col); err != nil {
		return nil, 0, err
	}
	b, err := WinsorBounds(t.Values(col), lower, upper)
	if err != nil {
		return nil, 0, err
	}
	return AddOutlierFlagWithin(t, col, b)
}

// AddOutlierFlagWithin is AddOutlierFlag with precomputed bounds, typically
// the ones WinsorizeColumn returned for the same column.
func AddOutlierFlagWithin(t *table.Table, col string, b Bounds) (*table.Table, int, error) {
	if err := requireNumeric(t, col); err != nil {
		return nil, 0, err
	}
	vals := t.Values(col)
	flags := make([]any, len(vals))
	flagged := 0
	for i, v := range vals {
		out := b.Outside(v)
		flags[i] = out
		if out {
			flagged++
		}
	}
	res, err := t.WithColumn(table.Column{Name: col + OutlierSuffix, Kind: table.Bool}, flags)
	if err != nil {
		return nil, 0, err
	}
	return res, flagged, nil
}

func requireNumeric(t *table.Table, col string) error {
	c, ok := t.Column(col)
	if !ok {
		return fmt.Errorf("outlier: unknown column %q", col)
	}
	if c.Kind != table.Float && c.Kind != table.Int {
		return fmt.Errorf("outlier: column %q is %s, want numeric", col, c.Kind)
	}
	return nil
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case int64:
		return float64(x), true
	}
	return 0, false
}

func floats(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if f, ok := numeric(v); ok {
			out[i] = f
		}
	}
	return out
}
