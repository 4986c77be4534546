// Package matching implements the per-symbol order book and the
// multi-symbol matching engine that routes requests to it (spec.md §4).
package matching

import (
	"sync"
	"time"

	"matchengine/internal/book"
	"matchengine/internal/idgen"
	"matchengine/internal/models"
)

// PriceLevelData is one aggregated level of a depth snapshot.
type PriceLevelData struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// OrderBookSnapshot is the bounded, point-in-time depth view spec.md §3
// describes: top N price levels per side, aggregated by remaining
// quantity.
type OrderBookSnapshot struct {
	Symbol    string           `json:"symbol"`
	Bids      []PriceLevelData `json:"bids"`
	Asks      []PriceLevelData `json:"asks"`
	Timestamp int64            `json:"timestamp"`
}

// Quote is the top-of-book view: best bid/ask and their quantities.
// Either side may be nil if that side of the book is empty.
type Quote struct {
	Symbol      string `json:"symbol"`
	BidPrice    *int64 `json:"bidPrice"`
	BidQuantity int64  `json:"bidQuantity"`
	AskPrice    *int64 `json:"askPrice"`
	AskQuantity int64  `json:"askQuantity"`
	Spread      *int64 `json:"spread"`
}

// OrderBook is one symbol's book: a bid side, an ask side, and a byId
// index covering every order the book has ever accepted. Grounded on
// the teacher's OrderBook (internal/matching/engine.go), split so
// SideBook is its own reusable type.
type OrderBook struct {
	Symbol string

	mu   sync.RWMutex
	bids *book.SideBook
	asks *book.SideBook
	byID map[int64]*models.Order

	totalBuyOrders  int64
	totalSellOrders int64
}

// NewOrderBook creates an empty book for symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   book.NewBids(),
		asks:   book.NewAsks(),
		byID:   make(map[int64]*models.Order),
	}
}

// Add runs the matching algorithm from spec.md §4.3 against order,
// mutating the book and returning the trades produced. The caller
// (MatchingEngine) is responsible for validation; Add assumes order
// has already passed it. order.RemainingQuantity/Status are updated in
// place as trades execute.
func (ob *OrderBook) Add(order *models.Order, gen *idgen.Generator) []*models.Trade {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if order.OriginalQuantity <= 0 {
		return nil
	}

	var trades []*models.Trade
	switch order.Type {
	case models.Limit, models.Market:
		trades = ob.match(order, gen)
	default:
		// STOP / STOP_LIMIT: accepted but inactive (spec.md §9); neither
		// matched nor rested.
		ob.byID[order.OrderID] = order
		return nil
	}

	if order.RemainingQuantity > 0 {
		if order.Type == models.Limit {
			ob.insertResting(order)
		}
		// MARKET residual is discarded without resting (spec.md §4.3 step 4).
	}

	ob.byID[order.OrderID] = order
	return trades
}

func (ob *OrderBook) match(order *models.Order, gen *idgen.Generator) []*models.Trade {
	var trades []*models.Trade

	var opposite *book.SideBook
	crosses := func(restingPrice int64) bool { return true }
	if order.Side == models.Buy {
		opposite = ob.asks
		if order.Type == models.Limit {
			crosses = func(restingPrice int64) bool { return restingPrice <= order.Price }
		}
	} else {
		opposite = ob.bids
		if order.Type == models.Limit {
			crosses = func(restingPrice int64) bool { return restingPrice >= order.Price }
		}
	}

	for order.RemainingQuantity > 0 {
		resting := opposite.Best()
		if resting == nil || !crosses(resting.Price) {
			break
		}
		resting = opposite.RemoveHead()

		delta := order.RemainingQuantity
		if resting.RemainingQuantity < delta {
			delta = resting.RemainingQuantity
		}

		buyerID, sellerID := order.OrderID, resting.OrderID
		buyClient, sellClient := order.ClientID, resting.ClientID
		if order.Side == models.Sell {
			buyerID, sellerID = resting.OrderID, order.OrderID
			buyClient, sellClient = resting.ClientID, order.ClientID
		}

		trade := models.NewTrade(gen.NextTradeID(), ob.Symbol, buyerID, sellerID, resting.Price, delta, buyClient, sellClient)
		trades = append(trades, trade)

		order.Fill(delta)
		resting.Fill(delta)

		if resting.RemainingQuantity > 0 {
			// Re-insert the partially filled resting order at the head of
			// its level (it keeps priority; nothing else was admitted
			// ahead of it while the book lock was held).
			opposite.InsertFront(resting)
		} else {
			ob.dec(resting.Side)
		}
		ob.byID[resting.OrderID] = resting
	}

	return trades
}

func (ob *OrderBook) insertResting(order *models.Order) {
	if order.Side == models.Buy {
		ob.bids.Insert(order)
		ob.totalBuyOrders++
	} else {
		ob.asks.Insert(order)
		ob.totalSellOrders++
	}
}

func (ob *OrderBook) dec(side models.Side) {
	if side == models.Buy {
		ob.totalBuyOrders--
	} else {
		ob.totalSellOrders--
	}
}

// Cancel removes an active order from the book by ID. Returns false if
// the order is unknown or no longer active, matching spec.md §4.4.
func (ob *OrderBook) Cancel(orderID int64) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, ok := ob.byID[orderID]
	if !ok || !order.Active() {
		return false
	}

	var removed bool
	if order.Side == models.Buy {
		removed = ob.bids.Remove(order)
	} else {
		removed = ob.asks.Remove(order)
	}
	if !removed {
		return false
	}

	order.Cancel()
	ob.dec(order.Side)
	return true
}

// Get returns the current value of an order this book has ever
// accepted, if any.
func (ob *OrderBook) Get(orderID int64) (*models.Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	o, ok := ob.byID[orderID]
	return o, ok
}

// Snapshot returns the top depthLimit levels per side (0 means
// unbounded). The view is taken entirely under the read lock, so it is
// never a mix of pre- and post-update state (spec.md §5).
func (ob *OrderBook) Snapshot(depthLimit int) *OrderBookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	snap := &OrderBookSnapshot{
		Symbol:    ob.Symbol,
		Bids:      make([]PriceLevelData, 0),
		Asks:      make([]PriceLevelData, 0),
		Timestamp: time.Now().UnixMilli(),
	}

	collect := func(sb *book.SideBook, out *[]PriceLevelData) {
		count := 0
		sb.Iterate(func(price int64, level book.PriceLevel) bool {
			if depthLimit > 0 && count >= depthLimit {
				return false
			}
			var qty int64
			for _, o := range level {
				qty += o.RemainingQuantity
			}
			*out = append(*out, PriceLevelData{Price: price, Quantity: qty})
			count++
			return true
		})
	}
	collect(ob.bids, &snap.Bids)
	collect(ob.asks, &snap.Asks)
	return snap
}

// QuoteView returns the current top-of-book quote.
func (ob *OrderBook) QuoteView() *Quote {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	q := &Quote{Symbol: ob.Symbol}
	if bid := ob.bids.Best(); bid != nil {
		price := bid.Price
		q.BidPrice = &price
		var qty int64
		ob.bids.Iterate(func(p int64, level book.PriceLevel) bool {
			if p != price {
				return false
			}
			for _, o := range level {
				qty += o.RemainingQuantity
			}
			return false
		})
		q.BidQuantity = qty
	}
	if ask := ob.asks.Best(); ask != nil {
		price := ask.Price
		q.AskPrice = &price
		var qty int64
		ob.asks.Iterate(func(p int64, level book.PriceLevel) bool {
			if p != price {
				return false
			}
			for _, o := range level {
				qty += o.RemainingQuantity
			}
			return false
		})
		q.AskQuantity = qty
	}
	if q.BidPrice != nil && q.AskPrice != nil {
		spread := *q.AskPrice - *q.BidPrice
		q.Spread = &spread
	}
	return q
}

// Counts returns the number of active resting orders per side.
func (ob *OrderBook) Counts() (buy, sell int64) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.totalBuyOrders, ob.totalSellOrders
}
