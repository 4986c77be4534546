// Package wsgw is the market-data transport adapter: it upgrades HTTP
// connections to WebSocket and relays marketdata.Publisher events to
// each connection, accepting "subscribe"/"unsubscribe" control frames from
// the client (spec.md §4.5/§6).
package wsgw

import (
	"encoding/json"
	"net/http"
	"time"

	"matchengine/internal/marketdata"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	outboundBuffer = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// controlFrame is the inbound client message used to scope a
// subscription to a symbol set after connecting.
type controlFrame struct {
	Action  string   `json:"action"` // "subscribe" | "unsubscribe"
	Symbols []string `json:"symbols"`
}

// Server upgrades connections and pumps marketdata.Publisher events to
// them over the socket.
type Server struct {
	publisher *marketdata.Publisher
	log       zerolog.Logger
}

// New creates a wsgw Server backed by publisher.
func New(publisher *marketdata.Publisher, log zerolog.Logger) *Server {
	return &Server{publisher: publisher, log: log.With().Str("component", "wsgw").Logger()}
}

// ServeHTTP implements http.Handler, upgrading the request to a
// WebSocket and registering it as a market-data subscriber.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("wsgw: upgrade failed")
		return
	}

	var initial []string
	if q := r.URL.Query()["symbol"]; len(q) > 0 {
		initial = q
	}
	sub := s.publisher.Subscribe(outboundBuffer, initial)
	s.log.Info().Str("subscriber", sub.ID).Msg("wsgw: subscriber connected")

	done := make(chan struct{})
	go s.readPump(conn, sub, done)
	s.writePump(conn, sub, done)

	s.publisher.Unsubscribe(sub.ID)
	conn.Close()
	s.log.Info().Str("subscriber", sub.ID).Msg("wsgw: subscriber disconnected")
}

// readPump drains control frames from the client until the connection
// closes, applying subscribe/unsubscribe scoping.
func (s *Server) readPump(conn *websocket.Conn, sub *marketdata.Subscriber, done chan struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cf controlFrame
		if err := json.Unmarshal(raw, &cf); err != nil {
			s.log.Debug().Err(err).Msg("wsgw: ignoring malformed control frame")
			continue
		}
		switch cf.Action {
		case "subscribe":
			sub.AddSymbols(cf.Symbols)
		case "unsubscribe":
			sub.RemoveSymbols(cf.Symbols)
		}
	}
}

// writePump forwards Publisher events and periodic pings to the
// socket until the connection's readPump signals done.
func (s *Server) writePump(conn *websocket.Conn, sub *marketdata.Subscriber, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-sub.Outbound:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
