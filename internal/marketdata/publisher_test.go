package marketdata

import (
	"testing"
	"time"

	"matchengine/internal/idgen"
	"matchengine/internal/matching"
	"matchengine/internal/metrics"
	"matchengine/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestSetup(t *testing.T) (*matching.Engine, *Publisher) {
	t.Helper()
	engine := matching.NewEngine(idgen.New(), metrics.NewMetrics(), zerolog.Nop())
	engine.RegisterSymbol("AAPL")
	pub := New(engine, 20*time.Millisecond, 10, zerolog.Nop())
	return engine, pub
}

func TestSubscribe_ReceivesTradeEventImmediately(t *testing.T) {
	engine, pub := newTestSetup(t)
	sub := pub.Subscribe(8, nil)

	engine.Submit(1, "c1", "AAPL", models.Sell, models.Limit, 100, 10, "client1")
	engine.Submit(2, "c2", "AAPL", models.Buy, models.Limit, 100, 10, "client2")

	select {
	case ev := <-sub.Outbound:
		assert.Equal(t, EventTrade, ev.Type)
		assert.Equal(t, "AAPL", ev.Symbol)
	case <-time.After(time.Second):
		t.Fatal("expected a TRADE event to be delivered")
	}
}

func TestSubscribe_SymbolFilterExcludesOtherSymbols(t *testing.T) {
	engine, pub := newTestSetup(t)
	engine.RegisterSymbol("MSFT")
	sub := pub.Subscribe(8, []string{"MSFT"})

	engine.Submit(1, "c1", "AAPL", models.Sell, models.Limit, 100, 10, "client1")
	engine.Submit(2, "c2", "AAPL", models.Buy, models.Limit, 100, 10, "client2")

	select {
	case ev := <-sub.Outbound:
		t.Fatalf("unexpected event for unsubscribed symbol: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	_, pub := newTestSetup(t)
	sub := pub.Subscribe(8, nil)
	pub.Unsubscribe(sub.ID)

	assert.Equal(t, Closed, sub.State())
	pub.broadcast(Event{Type: EventTrade, Symbol: "AAPL"})

	select {
	case <-sub.Outbound:
		t.Fatal("closed subscriber should not receive events")
	default:
	}
}

func TestBroadcast_DropsFrameWhenBufferFull(t *testing.T) {
	_, pub := newTestSetup(t)
	sub := pub.Subscribe(1, nil)

	assert.True(t, sub.send(Event{Type: EventQuote, Symbol: "AAPL"}))
	assert.False(t, sub.send(Event{Type: EventQuote, Symbol: "AAPL"}))
}

func TestTick_PublishesSnapshotAndQuote(t *testing.T) {
	engine, pub := newTestSetup(t)
	sub := pub.Subscribe(16, nil)

	engine.Submit(1, "c1", "AAPL", models.Buy, models.Limit, 100, 10, "client1")
	pub.tick()

	var sawBook, sawQuote bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Outbound:
			if ev.Type == EventOrderBook {
				sawBook = true
			}
			if ev.Type == EventQuote {
				sawQuote = true
			}
		case <-time.After(time.Second):
			t.Fatal("expected tick to publish both snapshot and quote")
		}
	}
	assert.True(t, sawBook)
	assert.True(t, sawQuote)
}
