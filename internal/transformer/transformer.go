// Package transformer composes named table transformations into an ordered
// chain. Each step takes the previous step's fully materialized table and
// returns a new one; the first failing step stops the chain.
package transformer

import (
	"fmt"
	"time"

	"ordersetl/internal/table"
)

// Func is a single table transformation.
type Func func(*table.Table) (*table.Table, error)

// Step is a named transformation. The name appears in errors and metrics.
type Step struct {
	Name string
	Fn   Func
}

// Observer is notified after every step with its outcome and duration.
type Observer func(step string, err error, d time.Duration)

// Chain is an ordered list of steps.
type Chain struct {
	Steps   []Step
	Observe Observer
}

// Then appends a step and returns the chain for fluent construction.
func (c *Chain) Then(name string, fn Func) *Chain {
	c.Steps = append(c.Steps, Step{Name: name, Fn: fn})
	return c
}

// Apply runs every step in order.
func (c *Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for _, s := range c.Steps {
		start := time.Now()
		next, err := s.Fn(out)
		if c.Observe != nil {
			c.Observe(s.Name, err, time.Since(start))
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		out = next
	}
	return out, nil
}
