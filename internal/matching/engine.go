package matching

import (
	"sync"
	"sync/atomic"
	"time"

	"matchengine/internal/idgen"
	"matchengine/internal/metrics"
	"matchengine/internal/models"

	"github.com/rs/zerolog"
)

// OrderResult is what Submit returns to an adapter: the post-match
// order state, the trades produced by this call, and a non-nil Error
// only for a programmer-invariant violation (never for validation,
// which is represented in Order.Status/Order.RejectReason per
// spec.md §7).
type OrderResult struct {
	Order  *models.Order
	Trades []*models.Trade
	Error  error
}

// TradeListener is invoked synchronously, under no book lock, for every
// trade executed by Submit — the hook MarketDataPublisher uses to push
// TRADE events at execution time rather than only on a tick.
type TradeListener func(trade *models.Trade)

// Engine is the multi-symbol matching engine: a registry of per-symbol
// OrderBooks, validation, and aggregate statistics (spec.md §4.4).
// Grounded on the teacher's Engine (internal/matching/engine.go).
type Engine struct {
	booksMu sync.RWMutex
	books   map[string]*OrderBook

	gen     *idgen.Generator
	metrics *metrics.Metrics
	log     zerolog.Logger

	totalOrders atomic.Int64
	totalTrades atomic.Int64

	listenersMu sync.RWMutex
	listeners   []TradeListener
}

// NewEngine creates an engine with no symbols registered. Call
// RegisterSymbol for each symbol in the configured universe before
// serving traffic (spec.md §4.4: "created eagerly for the configured
// symbol universe").
func NewEngine(gen *idgen.Generator, m *metrics.Metrics, log zerolog.Logger) *Engine {
	return &Engine{
		books:   make(map[string]*OrderBook),
		gen:     gen,
		metrics: m,
		log:     log.With().Str("component", "matching-engine").Logger(),
	}
}

// RegisterSymbol eagerly creates the book for symbol if it does not
// already exist.
func (e *Engine) RegisterSymbol(symbol string) {
	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	if _, ok := e.books[symbol]; !ok {
		e.books[symbol] = NewOrderBook(symbol)
	}
}

// OnTrade registers a listener invoked for every trade this engine
// executes, outside any book lock.
func (e *Engine) OnTrade(fn TradeListener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) publishTrades(trades []*models.Trade) {
	if len(trades) == 0 {
		return
	}
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	for _, t := range trades {
		for _, fn := range e.listeners {
			fn(t)
		}
	}
}

func (e *Engine) lookupBook(symbol string) (*OrderBook, bool) {
	e.booksMu.RLock()
	ob, ok := e.books[symbol]
	e.booksMu.RUnlock()
	return ob, ok
}

// Submit validates and routes an order through to its symbol's book
// (spec.md §4.4). Unknown symbols and validation failures return a
// REJECTED order rather than a Go error.
func (e *Engine) Submit(orderID int64, clientOrderID, symbol string, side models.Side, orderType models.OrderType, price, quantity int64, clientID string) *OrderResult {
	startTime := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.AddLatency(time.Since(startTime).Microseconds())
		}
	}()

	order := models.NewOrder(orderID, clientOrderID, symbol, side, orderType, price, quantity, clientID)
	e.totalOrders.Add(1)
	if e.metrics != nil {
		e.metrics.IncOrdersReceived()
	}

	ob, ok := e.lookupBook(symbol)
	if !ok {
		order.Reject("Unknown symbol")
		e.log.Warn().Str("symbol", symbol).Int64("order_id", orderID).Msg("rejected order: unknown symbol")
		return &OrderResult{Order: order}
	}

	if err := order.Validate(); err != nil {
		order.Reject(err.Error())
		e.log.Warn().Str("symbol", symbol).Int64("order_id", orderID).Err(err).Msg("rejected order: validation failed")
		return &OrderResult{Order: order}
	}

	// MARKET orders match whatever is available; an unfillable residual
	// is discarded rather than rejected (spec.md §4.3 step 4/§9(b)).
	trades := ob.Add(order, e.gen)

	e.totalTrades.Add(int64(len(trades)))
	if e.metrics != nil {
		e.metrics.IncTradesExecuted(int64(len(trades)))
		e.metrics.IncSymbolTrades(symbol, int64(len(trades)))
		if len(trades) > 0 {
			// Each trade matches the incoming order and a resting order.
			e.metrics.IncOrdersMatched(int64(len(trades)) + 1)
		}
		if order.Type == models.Limit && order.RemainingQuantity > 0 {
			e.metrics.IncOrdersInBook()
		}
	}
	e.publishTrades(trades)

	e.log.Debug().Str("symbol", symbol).Int64("order_id", orderID).Int("trades", len(trades)).Str("status", order.Status.String()).Msg("order processed")

	return &OrderResult{Order: order, Trades: trades}
}

// Cancel cancels an active order. False if the symbol is unknown, the
// order is unknown, or the order is no longer active (spec.md §4.4).
func (e *Engine) Cancel(symbol string, orderID int64) bool {
	ob, ok := e.lookupBook(symbol)
	if !ok {
		return false
	}
	ok = ob.Cancel(orderID)
	if ok && e.metrics != nil {
		e.metrics.IncOrdersCancelled()
		e.metrics.DecOrdersInBook()
	}
	return ok
}

// GetOrder looks up an order by symbol and ID.
func (e *Engine) GetOrder(symbol string, orderID int64) (*models.Order, bool) {
	ob, ok := e.lookupBook(symbol)
	if !ok {
		return nil, false
	}
	return ob.Get(orderID)
}

// Snapshot returns the depth snapshot for symbol, or nil if unknown.
func (e *Engine) Snapshot(symbol string, depthLimit int) *OrderBookSnapshot {
	ob, ok := e.lookupBook(symbol)
	if !ok {
		return nil
	}
	return ob.Snapshot(depthLimit)
}

// Quote returns the top-of-book quote for symbol, or nil if unknown.
func (e *Engine) Quote(symbol string) *Quote {
	ob, ok := e.lookupBook(symbol)
	if !ok {
		return nil
	}
	return ob.QuoteView()
}

// Symbols returns the configured symbol universe.
func (e *Engine) Symbols() []string {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()
	out := make([]string, 0, len(e.books))
	for s := range e.books {
		out = append(out, s)
	}
	return out
}

// Stats is the aggregate view spec.md §4.4's stats() operation returns.
type Stats struct {
	TotalOrders     int64
	TotalTrades     int64
	TotalBuyOrders  int64
	TotalSellOrders int64
	ActiveSymbols   int
}

// Stats returns the engine's aggregate counters.
func (e *Engine) Stats() Stats {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()

	var buy, sell int64
	for _, ob := range e.books {
		b, s := ob.Counts()
		buy += b
		sell += s
	}

	return Stats{
		TotalOrders:     e.totalOrders.Load(),
		TotalTrades:     e.totalTrades.Load(),
		TotalBuyOrders:  buy,
		TotalSellOrders: sell,
		ActiveSymbols:   len(e.books),
	}
}
