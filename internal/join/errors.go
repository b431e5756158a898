package join

import (
	"fmt"
	"strings"
)

// CardinalityViolation reports a side of the join whose keys are not unique
// although the declared cardinality requires it.
type CardinalityViolation struct {
	Cardinality Cardinality
	// Side is "left" or "right".
	Side string
	On   []string
	// Duplicates is the number of distinct key values that repeat.
	Duplicates int
}

func (e *CardinalityViolation) Error() string {
	return fmt.Sprintf("join: %s contract broken: %s key (%s) has %d duplicated value(s)",
		e.Cardinality, e.Side, strings.Join(e.On, ", "), e.Duplicates)
}

// JoinExplosionError reports a join whose output row count differs from the
// left input although the cardinality promised it would not.
type JoinExplosionError struct {
	Before, After int
}

func (e *JoinExplosionError) Error() string {
	return fmt.Sprintf("join: row count changed %d -> %d", e.Before, e.After)
}
