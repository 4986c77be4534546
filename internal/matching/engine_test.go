package matching

import (
	"fmt"
	"sync"
	"testing"

	"matchengine/internal/idgen"
	"matchengine/internal/metrics"
	"matchengine/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine := NewEngine(idgen.New(), metrics.NewMetrics(), zerolog.Nop())
	engine.RegisterSymbol("AAPL")
	return engine
}

func submit(engine *Engine, clOrdID string, side models.Side, orderType models.OrderType, price, qty int64) *OrderResult {
	return engine.Submit(engine.gen.NextOrderID(), clOrdID, "AAPL", side, orderType, price, qty, "client-"+clOrdID)
}

func TestSubmit_SimpleMatch(t *testing.T) {
	engine := newTestEngine(t)

	submit(engine, "sell1", models.Sell, models.Limit, 100, 10)
	result := submit(engine, "buy1", models.Buy, models.Limit, 100, 10)

	assert.Len(t, result.Trades, 1)
	assert.Equal(t, int64(10), result.Trades[0].Quantity)
	assert.Equal(t, int64(100), result.Trades[0].Price)
	assert.Equal(t, int64(0), result.Order.RemainingQuantity)
	assert.Equal(t, models.Filled, result.Order.Status)

	snap := engine.Snapshot("AAPL", 0)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func TestSubmit_PartialFill(t *testing.T) {
	engine := newTestEngine(t)

	submit(engine, "sell1", models.Sell, models.Limit, 100, 5)
	result := submit(engine, "buy1", models.Buy, models.Limit, 100, 10)

	assert.Len(t, result.Trades, 1)
	assert.Equal(t, int64(5), result.Trades[0].Quantity)
	assert.Equal(t, int64(5), result.Order.RemainingQuantity)
	assert.Equal(t, models.PartiallyFilled, result.Order.Status)

	snap := engine.Snapshot("AAPL", 0)
	assert.Empty(t, snap.Asks)
	if assert.Len(t, snap.Bids, 1) {
		assert.Equal(t, int64(100), snap.Bids[0].Price)
		assert.Equal(t, int64(5), snap.Bids[0].Quantity)
	}
}

func TestSubmit_MultiLevelMatch(t *testing.T) {
	engine := newTestEngine(t)

	submit(engine, "sell1", models.Sell, models.Limit, 100, 5)
	submit(engine, "sell2", models.Sell, models.Limit, 101, 5)

	result := submit(engine, "buy1", models.Buy, models.Limit, 101, 8)

	assert.Len(t, result.Trades, 2)
	assert.Equal(t, int64(0), result.Order.RemainingQuantity)
	assert.Equal(t, int64(5), result.Trades[0].Quantity)
	assert.Equal(t, int64(100), result.Trades[0].Price)
	assert.Equal(t, int64(3), result.Trades[1].Quantity)
	assert.Equal(t, int64(101), result.Trades[1].Price)

	snap := engine.Snapshot("AAPL", 0)
	if assert.Len(t, snap.Asks, 1) {
		assert.Equal(t, int64(101), snap.Asks[0].Price)
		assert.Equal(t, int64(2), snap.Asks[0].Quantity)
	}
}

// TestSubmit_MarketOrderTakesBestPrice is scenario 3 of spec.md §8:
// resting asks at 100 x5 and 101 x10; a market buy of 8 fills 5 @ 100
// then 3 @ 101 — the maker's price, never the taker's.
func TestSubmit_MarketOrderTakesBestPrice(t *testing.T) {
	engine := newTestEngine(t)

	submit(engine, "sell1", models.Sell, models.Limit, 100, 5)
	submit(engine, "sell2", models.Sell, models.Limit, 101, 10)

	result := submit(engine, "buy1", models.Buy, models.Market, 0, 8)

	if assert.Len(t, result.Trades, 2) {
		assert.Equal(t, int64(100), result.Trades[0].Price)
		assert.Equal(t, int64(5), result.Trades[0].Quantity)
		assert.Equal(t, int64(101), result.Trades[1].Price)
		assert.Equal(t, int64(3), result.Trades[1].Quantity)
	}
	assert.Equal(t, models.Filled, result.Order.Status)
}

// TestSubmit_MarketOrderInsufficientLiquidity is the boundary case
// spec.md §8 describes: a MARKET order larger than the book can fill
// takes everything available, then discards the residual rather than
// resting or rejecting — it ends PARTIALLY_FILLED, not REJECTED.
func TestSubmit_MarketOrderInsufficientLiquidity(t *testing.T) {
	engine := newTestEngine(t)

	submit(engine, "sell1", models.Sell, models.Limit, 100, 5)
	result := submit(engine, "buy1", models.Buy, models.Market, 0, 10)

	if assert.Len(t, result.Trades, 1) {
		assert.Equal(t, int64(100), result.Trades[0].Price)
		assert.Equal(t, int64(5), result.Trades[0].Quantity)
	}
	assert.Equal(t, models.PartiallyFilled, result.Order.Status)
	assert.Equal(t, int64(5), result.Order.FilledQuantity)
	assert.Equal(t, int64(5), result.Order.RemainingQuantity)

	snap := engine.Snapshot("AAPL", 0)
	assert.Empty(t, snap.Asks)
	assert.Empty(t, snap.Bids)
}

// TestSubmit_EmptyBookMarketOrder is scenario 4 of spec.md §8: a market
// order against an empty book produces no trades, rests nothing, and
// leaves the book unchanged (the residual is discarded silently).
func TestSubmit_EmptyBookMarketOrder(t *testing.T) {
	engine := newTestEngine(t)

	result := submit(engine, "buy1", models.Buy, models.Market, 0, 50)

	assert.Empty(t, result.Trades)
	assert.Equal(t, models.New, result.Order.Status)
	assert.Equal(t, int64(50), result.Order.RemainingQuantity)

	snap := engine.Snapshot("AAPL", 0)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

// TestCancel_Idempotence is scenario 5 of spec.md §8.
func TestCancel_Idempotence(t *testing.T) {
	engine := newTestEngine(t)

	result := submit(engine, "buy1", models.Buy, models.Limit, 150_00, 100)

	assert.True(t, engine.Cancel("AAPL", result.Order.OrderID))
	assert.False(t, engine.Cancel("AAPL", result.Order.OrderID))
}

// TestCancel_AfterFill is scenario 6 of spec.md §8: once an order has
// fully filled, cancellation of the same id must fail.
func TestCancel_AfterFill(t *testing.T) {
	engine := newTestEngine(t)

	submit(engine, "sell1", models.Sell, models.Limit, 150_00, 100)
	buyResult := submit(engine, "buy1", models.Buy, models.Limit, 150_00, 100)

	assert.Equal(t, models.Filled, buyResult.Order.Status)
	assert.False(t, engine.Cancel("AAPL", buyResult.Order.OrderID))
}

// TestSnapshot_Ordering is scenario 7 of spec.md §8: bids appear
// strictly decreasing in price.
func TestSnapshot_Ordering(t *testing.T) {
	engine := newTestEngine(t)

	submit(engine, "buy1", models.Buy, models.Limit, 149_00, 100)
	submit(engine, "buy2", models.Buy, models.Limit, 148_00, 50)

	snap := engine.Snapshot("AAPL", 0)
	if assert.Len(t, snap.Bids, 2) {
		assert.Greater(t, snap.Bids[0].Price, snap.Bids[1].Price)
		assert.Equal(t, int64(149_00), snap.Bids[0].Price)
		assert.Equal(t, int64(148_00), snap.Bids[1].Price)
	}
}

func TestSubmit_UnknownSymbolRejected(t *testing.T) {
	engine := newTestEngine(t)
	orderID := int64(1)
	result := engine.Submit(orderID, "c1", "ZZZZ", models.Buy, models.Limit, 100, 10, "client-1")
	assert.Equal(t, models.Rejected, result.Order.Status)
	assert.Equal(t, "Unknown symbol", result.Order.RejectReason)
}

func TestSubmit_ValidationRejected(t *testing.T) {
	engine := newTestEngine(t)
	orderID := engine.gen.NextOrderID()
	result := engine.Submit(orderID, "c1", "AAPL", models.Buy, models.Limit, 0, 10, "client-1")
	assert.Equal(t, models.Rejected, result.Order.Status)
	assert.NotEmpty(t, result.Order.RejectReason)
}

func TestStopOrder_AcceptedButInactive(t *testing.T) {
	engine := newTestEngine(t)
	result := submit(engine, "stop1", models.Buy, models.Stop, 100, 10)

	assert.Equal(t, models.New, result.Order.Status)
	assert.Empty(t, result.Trades)

	order, ok := engine.GetOrder("AAPL", result.Order.OrderID)
	assert.True(t, ok)
	assert.Equal(t, models.Stop, order.Type)

	snap := engine.Snapshot("AAPL", 0)
	assert.Empty(t, snap.Bids)
}

func TestEngine_TradeListenerFires(t *testing.T) {
	engine := newTestEngine(t)
	var received []int64
	var mu sync.Mutex
	engine.OnTrade(func(tr *models.Trade) {
		mu.Lock()
		received = append(received, tr.TradeID)
		mu.Unlock()
	})

	submit(engine, "sell1", models.Sell, models.Limit, 100, 10)
	submit(engine, "buy1", models.Buy, models.Limit, 100, 10)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 1)
}

func TestEngineConcurrency(t *testing.T) {
	engine := newTestEngine(t)
	numGoroutines := 100
	ordersPerGoroutine := 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < ordersPerGoroutine; j++ {
				side := models.Buy
				if (id+j)%2 == 0 {
					side = models.Sell
				}
				submit(engine, fmt.Sprintf("order-%d-%d", id, j), side, models.Limit, 100, 1)
			}
		}(i)
	}

	wg.Wait()

	stats := engine.Stats()
	assert.Equal(t, int64(numGoroutines*ordersPerGoroutine), stats.TotalOrders)
}

// BenchmarkSubmit measures throughput of placing orders into a
// pre-filled book.
func BenchmarkSubmit(b *testing.B) {
	engine := NewEngine(idgen.New(), metrics.NewMetrics(), zerolog.Nop())
	engine.RegisterSymbol("AAPL")

	for i := 0; i < 1000; i++ {
		submit(engine, fmt.Sprintf("sell-%d", i), models.Sell, models.Limit, int64(1000+i), 1)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		submit(engine, fmt.Sprintf("bench-%d", i), models.Buy, models.Limit, 1000, 1)
	}
}
