// Package api is the HTTP order-entry and inspection surface: REST
// endpoints over the matching engine, encoding results as spec.md §6's
// execution-report shape. Grounded on the teacher's internal/api
// server, generalized to the int64-ID order model and client-supplied
// clientOrderId/clientId identity.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"matchengine/internal/idgen"
	"matchengine/internal/matching"
	"matchengine/internal/metrics"
	"matchengine/internal/models"

	"github.com/rs/zerolog"
)

// CreateOrderRequest is the order-entry request body.
type CreateOrderRequest struct {
	ClientOrderID string           `json:"clientOrderId"`
	ClientID      string           `json:"clientId"`
	Symbol        string           `json:"symbol"`
	Side          models.Side      `json:"side"`
	Type          models.OrderType `json:"type"`
	Price         int64            `json:"price,omitempty"` // required for LIMIT/STOP_LIMIT
	Quantity      int64            `json:"quantity"`
}

// ExecutionReport is the response to a submit: the order's current
// state plus any trades the submit call produced. The cancel endpoint
// returns a CancelResponse instead.
type ExecutionReport struct {
	OrderID       int64       `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Symbol        string      `json:"symbol"`
	Side          string      `json:"side"`
	TotalQty      int64       `json:"totalQty"`
	RemainingQty  int64       `json:"remainingQty"`
	FilledQty     int64       `json:"filledQty"`
	AveragePrice  float64     `json:"averagePrice"`
	ExecType      string      `json:"execType"`
	OrderStatus   string      `json:"orderStatus"`
	TransactTime  int64       `json:"transactTime"`
	RejectReason  string      `json:"rejectReason,omitempty"`
	Trades        []TradeView `json:"trades,omitempty"`
}

// TradeView is one trade entry within an ExecutionReport.
type TradeView struct {
	TradeID  int64 `json:"tradeId"`
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// CancelResponse is returned from the cancel endpoint.
type CancelResponse struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// OrderView is the representation returned by
// GET /api/v1/orders/{symbol}/{id}.
type OrderView struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	ClientID      string `json:"clientId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         int64  `json:"price"`
	Quantity      int64  `json:"quantity"`
	FilledQty     int64  `json:"filledQty"`
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptimeSeconds"`
	OrdersProcessed int64  `json:"ordersProcessed"`
}

// Server is the HTTP server exposing order entry and book inspection.
type Server struct {
	listenAddr string
	engine     *matching.Engine
	gen        *idgen.Generator
	metrics    *metrics.Metrics
	log        zerolog.Logger
	startTime  time.Time
}

// New creates a new Server.
func New(listenAddr string, engine *matching.Engine, gen *idgen.Generator, m *metrics.Metrics, log zerolog.Logger) *Server {
	return &Server{
		listenAddr: listenAddr,
		engine:     engine,
		gen:        gen,
		metrics:    m,
		log:        log.With().Str("component", "api").Logger(),
		startTime:  time.Now(),
	}
}

// Handler returns the server's routed http.Handler, for use standalone
// or composed with other handlers (e.g. the wsgw upgrade endpoint) on
// the same http.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders", s.handleCreateOrder)
	mux.HandleFunc("DELETE /api/v1/orders/{symbol}/{id}", s.handleCancelOrder)
	mux.HandleFunc("GET /api/v1/orderbook/{symbol}", s.handleGetOrderBook)
	mux.HandleFunc("GET /api/v1/quote/{symbol}", s.handleGetQuote)
	mux.HandleFunc("GET /api/v1/orders/{symbol}/{id}", s.handleGetOrder)
	mux.HandleFunc("GET /health", s.handleHealthCheck)
	mux.HandleFunc("GET /metrics", s.handleGetMetrics)
	return mux
}

// Run starts the HTTP server, blocking until it exits.
func (s *Server) Run() error {
	return http.ListenAndServe(s.listenAddr, s.Handler())
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	orderID := s.gen.NextOrderID()
	result := s.engine.Submit(orderID, req.ClientOrderID, req.Symbol, req.Side, req.Type, req.Price, req.Quantity, req.ClientID)

	status := http.StatusCreated
	if result.Order.Status == models.Rejected {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, toExecutionReport(result.Order, result.Trades))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ok := s.engine.Cancel(symbol, id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found or not active"})
		return
	}

	order, _ := s.engine.GetOrder(symbol, id)
	writeJSON(w, http.StatusOK, CancelResponse{OrderID: id, Status: order.Status.String()})
}

func (s *Server) handleGetOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			depth = v
		}
	}

	snap := s.engine.Snapshot(symbol, depth)
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	quote := s.engine.Quote(symbol)
	if quote == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol"})
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, ok := s.engine.GetOrder(symbol, id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	writeJSON(w, http.StatusOK, OrderView{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		ClientID:      order.ClientID,
		Symbol:        order.Symbol,
		Side:          order.Side.String(),
		Type:          order.Type.String(),
		Price:         order.Price,
		Quantity:      order.OriginalQuantity,
		FilledQty:     order.FilledQuantity,
		Status:        order.Status.String(),
		Timestamp:     order.Timestamp,
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "healthy",
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
		OrdersProcessed: s.metrics.OrdersReceived.Load(),
	})
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics)
}

func toExecutionReport(order *models.Order, trades []*models.Trade) ExecutionReport {
	var sumPQ, sumQ int64
	views := make([]TradeView, len(trades))
	for i, t := range trades {
		views[i] = TradeView{TradeID: t.TradeID, Price: t.Price, Quantity: t.Quantity}
		sumPQ += t.Price * t.Quantity
		sumQ += t.Quantity
	}
	var avgPrice float64
	if sumQ > 0 {
		avgPrice = float64(sumPQ) / float64(sumQ)
	}

	execType := string(order.Status.ExecType())
	report := ExecutionReport{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          order.Side.String(),
		TotalQty:      order.OriginalQuantity,
		RemainingQty:  order.RemainingQuantity,
		FilledQty:     order.FilledQuantity,
		AveragePrice:  avgPrice,
		ExecType:      execType,
		OrderStatus:   execType,
		TransactTime:  order.Timestamp,
		Trades:        views,
	}
	if order.Status == models.Rejected {
		report.RejectReason = order.RejectReason
	}
	return report
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
