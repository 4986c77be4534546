package models

import (
	"fmt"
	"time"
)

// Trade is an immutable record of a single match between a resting
// (maker) order and an incoming (taker) order. Price is always the
// maker's price (spec.md §3/§4.3).
type Trade struct {
	TradeID       int64
	Symbol        string
	BuyOrderID    int64
	SellOrderID   int64
	Price         int64
	Quantity      int64
	BuyClientID   string
	SellClientID  string
	Timestamp     int64
}

// NewTrade creates and returns a new Trade.
func NewTrade(tradeID int64, symbol string, buyOrderID, sellOrderID int64, price, quantity int64, buyClientID, sellClientID string) *Trade {
	return &Trade{
		TradeID:      tradeID,
		Symbol:       symbol,
		BuyOrderID:   buyOrderID,
		SellOrderID:  sellOrderID,
		Price:        price,
		Quantity:     quantity,
		BuyClientID:  buyClientID,
		SellClientID: sellClientID,
		Timestamp:    time.Now().UnixNano(),
	}
}

// String renders a Trade for logging.
func (t *Trade) String() string {
	return fmt.Sprintf("Trade[id=%d symbol=%s buy=%d sell=%d price=%d qty=%d]",
		t.TradeID, t.Symbol, t.BuyOrderID, t.SellOrderID, t.Price, t.Quantity)
}
