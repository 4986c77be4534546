// Package marketdata implements the periodic snapshot/quote publisher
// and trade broadcaster described in spec.md §4.5: a ticker-driven
// goroutine that takes a point-in-time view of each configured book,
// releases the book lock, then fans the view out to every active
// subscriber without blocking on a slow one.
package marketdata

import (
	"sync"
	"time"

	"matchengine/internal/matching"
	"matchengine/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType is the market-data envelope's discriminator (spec.md §6).
type EventType string

const (
	EventOrderBook EventType = "ORDER_BOOK"
	EventQuote     EventType = "QUOTE"
	EventTrade     EventType = "TRADE"
)

// Event is the typed envelope every market-data frame is wrapped in.
type Event struct {
	Type      EventType `json:"type"`
	Symbol    string    `json:"symbol"`
	Timestamp int64     `json:"timestamp"`
	Data      any       `json:"data"`
}

// TradeData is the TRADE event payload.
type TradeData struct {
	TradeID     int64  `json:"tradeId"`
	Symbol      string `json:"symbol"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Timestamp   int64  `json:"timestamp"`
	BuyOrderID  int64  `json:"buyOrderId"`
	SellOrderID int64  `json:"sellOrderId"`
}

// SubscriberState is the connection lifecycle spec.md §4.5 names.
type SubscriberState int32

const (
	Connecting SubscriberState = iota
	Active
	Closed
)

// Subscriber is a single market-data connection. Outbound is a
// buffered channel the transport adapter (internal/wsgw) drains; a
// full channel means the subscriber is slow, and the publisher drops
// that one frame rather than blocking (spec.md §4.5's stated backpressure
// policy: "retains the subscriber and skips the frame").
type Subscriber struct {
	ID       string
	Outbound chan Event
	Symbols  map[string]bool // nil/empty means "all symbols"

	mu    sync.Mutex
	state SubscriberState
}

func newSubscriber(bufferSize int) *Subscriber {
	return &Subscriber{
		ID:       uuid.New().String(),
		Outbound: make(chan Event, bufferSize),
		state:    Connecting,
	}
}

// State returns the subscriber's current lifecycle state.
func (s *Subscriber) State() SubscriberState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscriber) setState(st SubscriberState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Subscriber) wants(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Symbols) == 0 {
		return true
	}
	return s.Symbols[symbol]
}

// AddSymbols scopes the subscription to additionally include symbols,
// safe for concurrent use with broadcast's wants() check.
func (s *Subscriber) AddSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Symbols == nil {
		s.Symbols = make(map[string]bool, len(symbols))
	}
	for _, sym := range symbols {
		s.Symbols[sym] = true
	}
}

// RemoveSymbols narrows the subscription, removing symbols from the
// filter set.
func (s *Subscriber) RemoveSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		delete(s.Symbols, sym)
	}
}

// send delivers an event without blocking; returns false if the
// subscriber's outbound buffer was full.
func (s *Subscriber) send(ev Event) bool {
	select {
	case s.Outbound <- ev:
		return true
	default:
		return false
	}
}

// Publisher drives periodic snapshot/quote publication and immediate
// trade broadcast (spec.md §4.5).
type Publisher struct {
	engine   *matching.Engine
	interval time.Duration
	depth    int
	log      zerolog.Logger

	subs sync.Map // map[string]*Subscriber

	stop chan struct{}
	done chan struct{}
}

// New creates a Publisher for engine, ticking at interval and
// publishing up to depth price levels per side.
func New(engine *matching.Engine, interval time.Duration, depth int, log zerolog.Logger) *Publisher {
	p := &Publisher{
		engine:   engine,
		interval: interval,
		depth:    depth,
		log:      log.With().Str("component", "market-data-publisher").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	engine.OnTrade(p.onTrade)
	return p
}

// Subscribe registers a new subscriber, ACTIVE immediately (no
// historical backfill, only future events, per spec.md §4.5).
// symbols, if non-empty, filters which symbols this subscriber
// receives; pass nil for all symbols.
func (p *Publisher) Subscribe(bufferSize int, symbols []string) *Subscriber {
	sub := newSubscriber(bufferSize)
	if len(symbols) > 0 {
		sub.Symbols = make(map[string]bool, len(symbols))
		for _, s := range symbols {
			sub.Symbols[s] = true
		}
	}
	sub.setState(Active)
	p.subs.Store(sub.ID, sub)
	return sub
}

// Unsubscribe closes and removes a subscriber.
func (p *Publisher) Unsubscribe(id string) {
	if v, ok := p.subs.LoadAndDelete(id); ok {
		v.(*Subscriber).setState(Closed)
	}
}

func (p *Publisher) onTrade(t *models.Trade) {
	ev := Event{
		Type:      EventTrade,
		Symbol:    t.Symbol,
		Timestamp: t.Timestamp,
		Data: TradeData{
			TradeID:     t.TradeID,
			Symbol:      t.Symbol,
			Price:       t.Price,
			Quantity:    t.Quantity,
			Timestamp:   t.Timestamp,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
		},
	}
	p.broadcast(ev)
}

// Run starts the periodic tick loop; it returns when Stop is called.
func (p *Publisher) Run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// Stop halts the tick loop and waits for Run to return.
func (p *Publisher) Stop() {
	close(p.stop)
	<-p.done
}

func (p *Publisher) tick() {
	for _, symbol := range p.engine.Symbols() {
		// Snapshot/quote are each taken entirely under the book's own
		// lock (matching.OrderBook.Snapshot/QuoteView), so no book lock
		// is held here across the broadcast below (spec.md §5).
		snap := p.engine.Snapshot(symbol, p.depth)
		if snap != nil {
			p.broadcast(Event{Type: EventOrderBook, Symbol: symbol, Timestamp: snap.Timestamp, Data: snap})
		}
		quote := p.engine.Quote(symbol)
		if quote != nil {
			p.broadcast(Event{Type: EventQuote, Symbol: symbol, Timestamp: time.Now().UnixMilli(), Data: quote})
		}
	}
}

func (p *Publisher) broadcast(ev Event) {
	p.subs.Range(func(_, v any) bool {
		sub := v.(*Subscriber)
		if sub.State() != Active || !sub.wants(ev.Symbol) {
			return true
		}
		if !sub.send(ev) {
			p.log.Warn().Str("subscriber", sub.ID).Str("symbol", ev.Symbol).Msg("dropping market-data frame: subscriber outbound buffer full")
		}
		return true
	})
}
