// Package models defines the value objects shared by every layer of the
// matching engine: orders, trades, and the small enums that describe them.
package models

import (
	"fmt"
	"time"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus int

const (
	New OrderStatus = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
	PendingCancel
)

func (s OrderStatus) String() string {
	switch s {
	case New:
		return "NEW"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	case PendingCancel:
		return "PENDING_CANCEL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes an OrderStatus as its string representation.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ExecType returns the FIX-flavored exec-type/order-status wire code for
// this status (spec.md §6: NEW->'0', PARTIALLY_FILLED->'1', FILLED->'2',
// CANCELLED->'4', PENDING_CANCEL->'6', REJECTED->'8'; execType and
// orderStatus share the same code per symbol).
func (s OrderStatus) ExecType() byte {
	switch s {
	case New:
		return '0'
	case PartiallyFilled:
		return '1'
	case Filled:
		return '2'
	case PendingCancel:
		return '6'
	case Cancelled:
		return '4'
	default:
		return '8'
	}
}

// Active reports whether an order with this status still rests in the book.
func (s OrderStatus) Active() bool {
	return s == New || s == PartiallyFilled
}

// Side is the side of an order: buy or sell.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes a Side as its string representation.
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes a Side from its string representation.
func (s *Side) UnmarshalJSON(data []byte) error {
	str := unquote(data)
	switch str {
	case "BUY":
		*s = Buy
	case "SELL":
		*s = Sell
	default:
		return fmt.Errorf("unknown side: %s", str)
	}
	return nil
}

// OrderType is the tagged variant spec.md §3 describes. Only Market and
// Limit are executed by the matching algorithm; Stop and StopLimit are
// accepted and stored but never activated (spec.md §9).
type OrderType int

const (
	Limit OrderType = iota
	Market
	Stop
	StopLimit
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case Stop:
		return "STOP"
	case StopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes an OrderType as its string representation.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON decodes an OrderType from its string representation.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	str := unquote(data)
	switch str {
	case "LIMIT":
		*t = Limit
	case "MARKET":
		*t = Market
	case "STOP":
		*t = Stop
	case "STOP_LIMIT":
		*t = StopLimit
	default:
		return fmt.Errorf("unknown order type: %s", str)
	}
	return nil
}

func unquote(data []byte) string {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return str
}

// Order is a value object mutated only while its owning book's lock is
// held; every mutating method advances status in place, matching
// spec.md's "transitions produce a new Order value, identity preserved
// via orderId" semantics without forcing a defensive copy on every fill.
type Order struct {
	OrderID           int64
	ClientOrderID     string
	Symbol            string
	Side              Side
	Type              OrderType
	Price             int64 // fixed-decimal currency units; meaningless for MARKET
	OriginalQuantity  int64
	RemainingQuantity int64
	FilledQuantity    int64
	ClientID          string
	Status            OrderStatus
	RejectReason      string
	Timestamp         int64 // admission instant, UnixNano
}

// NewOrder creates a new order in the NEW state.
func NewOrder(orderID int64, clientOrderID, symbol string, side Side, orderType OrderType, price, quantity int64, clientID string) *Order {
	return &Order{
		OrderID:           orderID,
		ClientOrderID:     clientOrderID,
		Symbol:            symbol,
		Side:              side,
		Type:              orderType,
		Price:             price,
		OriginalQuantity:  quantity,
		RemainingQuantity: quantity,
		FilledQuantity:    0,
		ClientID:          clientID,
		Status:            New,
		Timestamp:         time.Now().UnixNano(),
	}
}

// String renders an Order for logging.
func (o *Order) String() string {
	return fmt.Sprintf("Order[id=%d client=%s symbol=%s side=%s type=%s price=%d qty=%d/%d status=%s]",
		o.OrderID, o.ClientOrderID, o.Symbol, o.Side, o.Type, o.Price, o.RemainingQuantity, o.OriginalQuantity, o.Status)
}

// Fill applies a fill of size delta, advancing the order's status.
func (o *Order) Fill(delta int64) {
	o.RemainingQuantity -= delta
	o.FilledQuantity += delta
	if o.RemainingQuantity == 0 {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
}

// Cancel marks the order CANCELLED. Remaining quantity is left untouched.
func (o *Order) Cancel() {
	o.Status = Cancelled
}

// Reject marks the order REJECTED with a human-readable reason.
func (o *Order) Reject(reason string) {
	o.Status = Rejected
	o.RejectReason = reason
}

// Active reports whether the order still rests in the book.
func (o *Order) Active() bool {
	return o.Status.Active()
}

// Validate checks the fields spec.md §4.4 requires before admission.
func (o *Order) Validate() error {
	if o.OriginalQuantity <= 0 {
		return fmt.Errorf("invalid quantity: must be positive")
	}
	if (o.Type == Limit || o.Type == StopLimit) && o.Price <= 0 {
		return fmt.Errorf("invalid price: must be positive for limit orders")
	}
	if o.ClientOrderID == "" {
		return fmt.Errorf("clientOrderId is required")
	}
	if o.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	return nil
}
