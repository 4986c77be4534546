// Package idgen hands out the monotonically increasing order and trade
// identifiers spec.md §4.1 requires: a strictly increasing total order of
// admission used as the time-priority tiebreak, assigned outside any book
// lock so it reflects global admission order across symbols.
package idgen

import "sync/atomic"

// Sequence is a single atomic monotonic counter, grounded on the
// counter-only id scheme in ccyyhlg-lightning-exchange's IDGenerator
// (no timestamp component needed: the counter alone guarantees both
// uniqueness and ordering).
type Sequence struct {
	counter atomic.Int64
}

// Next returns the next value in the sequence, starting at 1.
func (s *Sequence) Next() int64 {
	return s.counter.Add(1)
}

// Generator produces order IDs and trade IDs from two independent
// sequences.
type Generator struct {
	orders Sequence
	trades Sequence
}

// New creates a Generator with both sequences starting from zero.
func New() *Generator {
	return &Generator{}
}

// NextOrderID returns the next process-wide unique order ID.
func (g *Generator) NextOrderID() int64 {
	return g.orders.Next()
}

// NextTradeID returns the next process-wide unique trade ID.
func (g *Generator) NextTradeID() int64 {
	return g.trades.Next()
}
