package fixgw

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"matchengine/internal/idgen"
	"matchengine/internal/matching"
	"matchengine/internal/models"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const connReadTimeout = 60 * time.Second

// Server is the order-entry TCP listener: one goroutine accepts
// connections, a fixed-size worker pool drains per-connection frames
// and submits them to the matching engine (spec.md §6). Grounded on
// saiputravu-Exchange's internal/net.Server + internal/worker.go
// worker pool, adapted to a line-delimited text protocol instead of
// fixed-width binary frames and to matchengine's int64 order IDs.
type Server struct {
	addr       string
	engine     *matching.Engine
	gen        *idgen.Generator
	poolSize   int
	senderComp string
	targetComp string
	log        zerolog.Logger

	sessionsMu sync.Mutex
	sessions   map[string]net.Conn

	cancel context.CancelFunc
}

// New creates a fixgw Server listening on addr.
func New(addr string, engine *matching.Engine, gen *idgen.Generator, poolSize int, senderComp, targetComp string, log zerolog.Logger) *Server {
	return &Server{
		addr:       addr,
		engine:     engine,
		gen:        gen,
		poolSize:   poolSize,
		senderComp: senderComp,
		targetComp: targetComp,
		log:        log.With().Str("component", "fixgw").Logger(),
		sessions:   make(map[string]net.Conn),
	}
}

// Run accepts connections until ctx is cancelled, dispatching each to
// the worker pool's task channel.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("fixgw: listen: %w", err)
	}
	defer listener.Close()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	tasks := make(chan net.Conn, 64)
	for i := 0; i < s.poolSize; i++ {
		t.Go(func() error {
			for {
				select {
				case <-t.Dying():
					return nil
				case conn := <-tasks:
					s.handleConnection(t, conn)
				}
			}
		})
	}

	s.log.Info().Str("addr", s.addr).Int("workers", s.poolSize).Msg("fixgw listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error().Err(err).Msg("fixgw accept error")
				continue
			}
		}
		s.addSession(conn)
		select {
		case tasks <- conn:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
	}
}

// Stop halts the accept loop and lets in-flight connections drain.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	s.sessions[conn.RemoteAddr().String()] = conn
	s.sessionsMu.Unlock()
}

func (s *Server) removeSession(conn net.Conn) {
	s.sessionsMu.Lock()
	delete(s.sessions, conn.RemoteAddr().String())
	s.sessionsMu.Unlock()
}

// handleConnection owns one connection for its whole lifetime,
// reading one newline-delimited frame at a time. Unlike
// saiputravu-Exchange's per-read-then-requeue pool, a text session stays on its worker for
// its duration — the pool bounds concurrent connections rather than
// concurrent reads.
func (s *Server) handleConnection(t *tomb.Tomb, conn net.Conn) {
	defer conn.Close()
	defer s.removeSession(conn)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 64*1024)

	for scanner.Scan() {
		select {
		case <-t.Dying():
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(connReadTimeout))

		msg, err := ParseMessage(scanner.Text())
		if err != nil {
			s.log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("fixgw: malformed frame")
			continue
		}

		reply, err := s.dispatch(msg)
		if err != nil {
			s.log.Warn().Err(err).Msg("fixgw: dispatch error")
			reply = rejectMessage(err.Error())
		}
		if reply != nil {
			if _, werr := conn.Write(reply.Encode()); werr != nil {
				s.log.Error().Err(werr).Msg("fixgw: write error, closing connection")
				return
			}
		}
	}
}

func (s *Server) dispatch(msg *Message) (*Message, error) {
	switch msg.MsgType() {
	case MsgTypeNewOrderSingle:
		return s.handleNewOrderSingle(msg)
	case MsgTypeOrderCancelRequest:
		return s.handleCancelRequest(msg)
	case MsgTypeHeartbeat:
		return NewMessage(MsgTypeHeartbeat).SetString(tagSenderCompID, s.senderComp), nil
	default:
		return nil, fmt.Errorf("unsupported MsgType %q", msg.MsgType())
	}
}

func (s *Server) handleNewOrderSingle(msg *Message) (*Message, error) {
	clOrdID, _ := msg.Get(tagClOrdID)
	symbol, _ := msg.Get(tagSymbol)
	clientID, _ := msg.Get(tagSenderCompID)

	sideRaw, _ := msg.Get(tagSide)
	side, err := wireToSide(sideRaw)
	if err != nil {
		return nil, err
	}
	ordTypeRaw, _ := msg.Get(tagOrdType)
	ordType, err := wireToOrdType(ordTypeRaw)
	if err != nil {
		return nil, err
	}
	qty, err := msg.GetInt64(tagOrderQty)
	if err != nil {
		return nil, fmt.Errorf("OrderQty(38): %w", err)
	}
	var price int64
	if p, ok := msg.Get(tagPrice); ok {
		price, err = parsePrice(p)
		if err != nil {
			return nil, fmt.Errorf("Price(44): %w", err)
		}
	}

	orderID := s.gen.NextOrderID()
	result := s.engine.Submit(orderID, clOrdID, symbol, side, ordType, price, qty, clientID)
	return executionReport(result.Order, result.Trades, s.senderComp), nil
}

// handleCancelRequest parses an OrderCancelRequest and acknowledges it
// with a PENDING_CANCEL execution report, but — deliberately, per
// spec.md §9(c) — never calls engine.Cancel. This reproduces a known
// adapter-layer bug in the original source rather than the core
// (matching.Engine.Cancel itself is correct and is what the HTTP
// order-entry adapter calls). TODO: wire this through to
// engine.Cancel once an adapter-level PENDING_CANCEL→CANCELLED
// follow-up report is designed.
func (s *Server) handleCancelRequest(msg *Message) (*Message, error) {
	symbol, _ := msg.Get(tagSymbol)
	orderID, err := msg.GetInt64(tagOrderID)
	if err != nil {
		return nil, fmt.Errorf("OrderID(37) required for cancel: %w", err)
	}

	order, ok := s.engine.GetOrder(symbol, orderID)
	if !ok || !order.Active() {
		reject := NewMessage(MsgTypeOrderCancelReject).
			SetInt64(tagOrderID, orderID).
			SetString(tagSymbol, symbol).
			SetString(tagText, "order not found or not active")
		return reject, nil
	}

	pending := *order
	pending.Status = models.PendingCancel
	return executionReport(&pending, nil, s.senderComp), nil
}

func executionReport(order *models.Order, trades []*models.Trade, senderComp string) *Message {
	var sumPQ, sumQ int64
	for _, tr := range trades {
		sumPQ += tr.Price * tr.Quantity
		sumQ += tr.Quantity
	}
	var avgPx int64
	if sumQ > 0 {
		avgPx = sumPQ / sumQ
	}

	m := NewMessage(MsgTypeExecutionReport).
		SetString(tagSenderCompID, senderComp).
		SetInt64(tagOrderID, order.OrderID).
		SetString(tagClOrdID, order.ClientOrderID).
		SetString(tagSymbol, order.Symbol).
		SetString(tagSide, sideToWire(order.Side)).
		SetInt64(tagOrderQty, order.OriginalQuantity).
		SetInt64(tagLeavesQty, order.RemainingQuantity).
		SetInt64(tagCumQty, order.FilledQuantity).
		SetInt64(tagAvgPx, avgPx).
		SetByte(tagExecType, order.Status.ExecType()).
		SetByte(tagOrdStatus, order.Status.ExecType()).
		SetInt64(tagTransactTime, order.Timestamp)
	if order.Status == models.Rejected {
		m.SetString(tagText, order.RejectReason)
	}
	return m
}

func rejectMessage(reason string) *Message {
	return NewMessage(MsgTypeReject).SetString(tagText, reason)
}

func parsePrice(raw string) (int64, error) {
	var whole, frac int64
	_, err := fmt.Sscanf(raw, "%d.%d", &whole, &frac)
	if err == nil {
		return whole*100 + frac, nil
	}
	var i int64
	if _, err := fmt.Sscanf(raw, "%d", &i); err != nil {
		return 0, err
	}
	return i * 100, nil
}
