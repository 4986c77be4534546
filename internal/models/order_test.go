package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_FillTransitionsToPartiallyFilledThenFilled(t *testing.T) {
	o := NewOrder(1, "c1", "AAPL", Buy, Limit, 100, 10, "client1")

	o.Fill(4)
	assert.Equal(t, PartiallyFilled, o.Status)
	assert.Equal(t, int64(6), o.RemainingQuantity)
	assert.Equal(t, int64(4), o.FilledQuantity)

	o.Fill(6)
	assert.Equal(t, Filled, o.Status)
	assert.Equal(t, int64(0), o.RemainingQuantity)
	assert.True(t, o.Active() == false)
}

func TestOrder_CancelLeavesRemainingUntouched(t *testing.T) {
	o := NewOrder(1, "c1", "AAPL", Buy, Limit, 100, 10, "client1")
	o.Fill(3)
	o.Cancel()

	assert.Equal(t, Cancelled, o.Status)
	assert.Equal(t, int64(7), o.RemainingQuantity)
	assert.False(t, o.Active())
}

func TestOrder_Reject(t *testing.T) {
	o := NewOrder(1, "c1", "AAPL", Buy, Limit, 100, 10, "client1")
	o.Reject("bad price")

	assert.Equal(t, Rejected, o.Status)
	assert.Equal(t, "bad price", o.RejectReason)
	assert.False(t, o.Active())
}

func TestOrder_Validate(t *testing.T) {
	cases := []struct {
		name    string
		order   *Order
		wantErr bool
	}{
		{"valid limit", NewOrder(1, "c1", "AAPL", Buy, Limit, 100, 10, "cl"), false},
		{"zero quantity", NewOrder(1, "c1", "AAPL", Buy, Limit, 100, 0, "cl"), true},
		{"negative price limit", NewOrder(1, "c1", "AAPL", Buy, Limit, -1, 10, "cl"), true},
		{"market zero price ok", NewOrder(1, "c1", "AAPL", Buy, Market, 0, 10, "cl"), false},
		{"missing clientOrderId", NewOrder(1, "", "AAPL", Buy, Limit, 100, 10, "cl"), true},
		{"missing clientId", NewOrder(1, "c1", "AAPL", Buy, Limit, 100, 10, ""), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.order.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderStatus_ExecType(t *testing.T) {
	assert.Equal(t, byte('0'), New.ExecType())
	assert.Equal(t, byte('1'), PartiallyFilled.ExecType())
	assert.Equal(t, byte('2'), Filled.ExecType())
	assert.Equal(t, byte('4'), Cancelled.ExecType())
	assert.Equal(t, byte('6'), PendingCancel.ExecType())
	assert.Equal(t, byte('8'), Rejected.ExecType())
}

func TestSide_MarshalUnmarshalJSON(t *testing.T) {
	data, err := Buy.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"BUY"`, string(data))

	var s Side
	assert.NoError(t, s.UnmarshalJSON([]byte(`"SELL"`)))
	assert.Equal(t, Sell, s)

	assert.Error(t, s.UnmarshalJSON([]byte(`"SIDEWAYS"`)))
}
