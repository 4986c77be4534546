// Package book implements the per-side price ladder spec.md §4.2
// describes: an ordered mapping from price to a FIFO queue of active
// orders at that price.
package book

import (
	"matchengine/internal/models"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// PriceLevel is the FIFO queue of orders resting at one price, matched
// from the head in admission order.
type PriceLevel []*models.Order

// SideBook is one side (bids or asks) of a symbol's order book: a
// red-black tree keyed by int64 price, descending for bids and
// ascending for asks, whose values are PriceLevel queues. Grounded on
// the teacher's OrderBook.Bids/Asks, pulled out into its own type so
// OrderBook composes two of these instead of inlining both trees.
type SideBook struct {
	tree *redblacktree.Tree
}

// NewBids returns a SideBook ordered highest-price-first.
func NewBids() *SideBook {
	return &SideBook{tree: redblacktree.NewWith(func(a, b interface{}) int {
		return utils.Int64Comparator(b, a)
	})}
}

// NewAsks returns a SideBook ordered lowest-price-first.
func NewAsks() *SideBook {
	return &SideBook{tree: redblacktree.NewWith(utils.Int64Comparator)}
}

// Empty reports whether the side has no resting orders.
func (sb *SideBook) Empty() bool {
	return sb.tree.Empty()
}

// Insert appends order to the queue at its price, creating the price
// level if necessary.
func (sb *SideBook) Insert(order *models.Order) {
	level, found := sb.tree.Get(order.Price)
	if !found {
		sb.tree.Put(order.Price, PriceLevel{order})
		return
	}
	sb.tree.Put(order.Price, append(level.(PriceLevel), order))
}

// Remove deletes order from its price level by ID, removing the level
// entirely if it becomes empty. Reports whether the order was found.
func (sb *SideBook) Remove(order *models.Order) bool {
	level, found := sb.tree.Get(order.Price)
	if !found {
		return false
	}
	priceLevel := level.(PriceLevel)
	idx := -1
	for i, o := range priceLevel {
		if o.OrderID == order.OrderID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	priceLevel = append(priceLevel[:idx], priceLevel[idx+1:]...)
	if len(priceLevel) == 0 {
		sb.tree.Remove(order.Price)
	} else {
		sb.tree.Put(order.Price, priceLevel)
	}
	return true
}

// Best returns the order at the head of the best price level, or nil
// if the side is empty.
func (sb *SideBook) Best() *models.Order {
	node := sb.tree.Left() // tree ordering puts the best price at Left()
	if node == nil {
		return nil
	}
	level := node.Value.(PriceLevel)
	if len(level) == 0 {
		return nil
	}
	return level[0]
}

// InsertFront puts order back at the head of its price level's queue,
// preserving its time priority after a partial fill (nothing else was
// admitted ahead of it while the book lock was held for the match).
func (sb *SideBook) InsertFront(order *models.Order) {
	level, found := sb.tree.Get(order.Price)
	if !found {
		sb.tree.Put(order.Price, PriceLevel{order})
		return
	}
	existing := level.(PriceLevel)
	merged := make(PriceLevel, 0, len(existing)+1)
	merged = append(merged, order)
	merged = append(merged, existing...)
	sb.tree.Put(order.Price, merged)
}

// RemoveHead removes and returns the order at the head of the best
// price level, deleting the level if it becomes empty.
func (sb *SideBook) RemoveHead() *models.Order {
	node := sb.tree.Left()
	if node == nil {
		return nil
	}
	price := node.Key.(int64)
	level := node.Value.(PriceLevel)
	if len(level) == 0 {
		return nil
	}
	head := level[0]
	level = level[1:]
	if len(level) == 0 {
		sb.tree.Remove(price)
	} else {
		sb.tree.Put(price, level)
	}
	return head
}

// Iterate calls fn for each price level in priority order (best price
// first), stopping early if fn returns false.
func (sb *SideBook) Iterate(fn func(price int64, level PriceLevel) bool) {
	it := sb.tree.Iterator()
	it.Begin()
	for it.Next() {
		if !fn(it.Key().(int64), it.Value().(PriceLevel)) {
			return
		}
	}
}

// Liquidity sums remaining quantity across all resting orders, up to
// (and stopping early once it reaches) maxNeeded. The matching path does
// not call it: market orders are matched without a liquidity pre-check.
func (sb *SideBook) Liquidity(maxNeeded int64) int64 {
	var available int64
	sb.Iterate(func(_ int64, level PriceLevel) bool {
		for _, o := range level {
			available += o.RemainingQuantity
			if available >= maxNeeded {
				return false
			}
		}
		return true
	})
	return available
}
