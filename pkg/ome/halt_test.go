package ome

import (
	"errors"
	"testing"

	"clob/pkg/book"
	"clob/pkg/event"
	"clob/pkg/xnats"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestHaltOnCrossedBook(t *testing.T) {
	rec := &event.Recorder{}
	e := NewEngine("BTC_USDT", WithPublisher(rec))

	_, err := e.Submit(SubmitReq{
		Side:     book.SideSell,
		Kind:     book.KindLimit,
		Price:    decimal.NewNullDecimal(decimal.NewFromInt(100)),
		Quantity: decimal.NewFromInt(1),
	})
	require.Nil(t, err)

	// a bid above the best ask that never went through matching
	e.mu.Lock()
	err = e.book.InsertResting(&book.Order{
		ID:       99,
		Seq:      99,
		Side:     book.SideBuy,
		Kind:     book.KindLimit,
		Price:    decimal.NewFromInt(200),
		OrigQty:  decimal.NewFromInt(1),
		Quantity: decimal.NewFromInt(1),
		Status:   book.StatusOpen,
	})
	e.mu.Unlock()
	require.Nil(t, err)

	rec.Reset()
	_, err = e.Submit(SubmitReq{
		Side:     book.SideSell,
		Kind:     book.KindLimit,
		Price:    decimal.NewNullDecimal(decimal.NewFromInt(300)),
		Quantity: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, ErrInvariant)
	var ie *InvariantError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, "submit", ie.Op)
	require.Empty(t, rec.Events())
	require.NotNil(t, e.Halted())

	_, err = e.Submit(SubmitReq{
		Side:     book.SideBuy,
		Kind:     book.KindMarket,
		Quantity: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, ErrHalted)

	_, err = e.Cancel(1)
	require.ErrorIs(t, err, ErrHalted)

	// reads keep working
	_, ok := e.BestAsk()
	require.True(t, ok)
	require.NotNil(t, e.Audit())
}

func TestExecuteCommands(t *testing.T) {
	e := NewEngine("BTC_USDT")

	out, r := execute(e, &xnats.Command{Type: xnats.CmdTypeSubmit, Submit: &xnats.SubmitReq{
		Side:     "sell",
		Kind:     "limit",
		Price:    decimal.NewNullDecimal(decimal.NewFromInt(10)),
		Quantity: decimal.NewFromInt(2),
		Owner:    "m",
	}}, 1000, 1)
	require.Nil(t, out.err)
	require.Equal(t, int64(1), r.CmdLogID)
	require.Equal(t, int64(1000), r.Order.Time)
	require.Equal(t, book.StatusOpen, r.Order.Status)

	out, r = execute(e, &xnats.Command{Type: xnats.CmdTypeSubmit, Submit: &xnats.SubmitReq{
		Side:     "BUY",
		Kind:     "MARKET",
		Quantity: decimal.NewFromInt(1),
		Owner:    "t",
	}}, 2000, 3)
	require.Nil(t, out.err)
	require.True(t, r.Order.Price.IsZero())
	require.Len(t, r.Trades, 1)
	require.Len(t, r.Makers, 1)
	require.Equal(t, book.StatusPartiallyFilled, r.Makers[0].Status)
	require.Equal(t, int64(2000), r.Trades[0].Time)

	_, r = execute(e, &xnats.Command{Type: xnats.CmdTypeSubmit, Submit: &xnats.SubmitReq{
		Side: "HOLD", Kind: "LIMIT", Quantity: decimal.NewFromInt(1),
	}}, 3000, 5)
	require.Equal(t, string(ReasonInvalidSide), r.Reject)
	require.Nil(t, r.Order)

	_, r = execute(e, &xnats.Command{Type: xnats.CmdTypeSubmit, Submit: &xnats.SubmitReq{
		Side: "BUY", Kind: "STOP", Quantity: decimal.NewFromInt(1),
	}}, 3000, 7)
	require.Equal(t, string(ReasonInvalidKind), r.Reject)

	_, r = execute(e, &xnats.Command{Type: "Amend"}, 3000, 9)
	require.Equal(t, string(ReasonInvalidCommand), r.Reject)

	out, r = execute(e, &xnats.Command{Type: xnats.CmdTypeCancel, Cancel: &xnats.CancelReq{OrderID: 1}}, 4000, 11)
	require.Nil(t, out.err)
	require.True(t, out.found)
	require.Equal(t, book.StatusCancelled, r.Cancelled.Status)
	require.True(t, r.Cancelled.Quantity.Equal(decimal.NewFromInt(1)))

	out, r = execute(e, &xnats.Command{Type: xnats.CmdTypeCancel, Cancel: &xnats.CancelReq{OrderID: 1}}, 5000, 13)
	require.Nil(t, out.err)
	require.False(t, out.found)
	require.Nil(t, r.Cancelled)
	require.Empty(t, r.Reject)
}
