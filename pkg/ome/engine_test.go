package ome_test

import (
	"errors"
	"testing"
	"time"

	"clob/pkg/book"
	"clob/pkg/event"
	"clob/pkg/ome"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limit(side book.Side, qty, price string) ome.SubmitReq {
	return ome.SubmitReq{
		Side:     side,
		Kind:     book.KindLimit,
		Price:    decimal.NewNullDecimal(d(price)),
		Quantity: d(qty),
		Owner:    "u1",
	}
}

func market(side book.Side, qty string) ome.SubmitReq {
	return ome.SubmitReq{
		Side:     side,
		Kind:     book.KindMarket,
		Quantity: d(qty),
		Owner:    "u2",
	}
}

func newEngine(opts ...ome.Option) (*ome.Engine, *event.Recorder) {
	rec := &event.Recorder{}
	opts = append([]ome.Option{ome.WithPublisher(rec)}, opts...)
	return ome.NewEngine("BTC_USDT", opts...), rec
}

func submit(t *testing.T, e *ome.Engine, req ome.SubmitReq) ome.Result {
	t.Helper()
	res, err := e.Submit(req)
	require.Nil(t, err)
	require.Nil(t, e.Audit())
	return res
}

func TestLimitThenMarketScenario(t *testing.T) {
	e, _ := newEngine()

	res := submit(t, e, limit(book.SideBuy, "10", "100"))
	require.Empty(t, res.Trades)
	require.Equal(t, book.StatusOpen, res.Status)
	buyID := res.OrderID

	res = submit(t, e, limit(book.SideSell, "4", "100"))
	require.Len(t, res.Trades, 1)
	require.True(t, res.Trades[0].Quantity.Equal(d("4")))
	require.True(t, res.Trades[0].Price.Equal(d("100")))
	require.Equal(t, book.StatusFilled, res.Status)

	o, ok := e.Order(buyID)
	require.True(t, ok)
	require.True(t, o.Quantity.Equal(d("6")))
	require.Equal(t, book.StatusPartiallyFilled, o.Status)

	res = submit(t, e, market(book.SideSell, "10"))
	require.Len(t, res.Trades, 1)
	require.True(t, res.Trades[0].Quantity.Equal(d("6")))
	require.True(t, res.Trades[0].Price.Equal(d("100")))
	require.Equal(t, buyID, res.Trades[0].MakerOrderID)
	require.Equal(t, book.StatusCancelled, res.Status)
	require.True(t, res.Remaining.Equal(d("4")))
	require.True(t, res.Filled.Equal(d("6")))

	_, ok = e.BestBid()
	require.False(t, ok)
	_, ok = e.BestAsk()
	require.False(t, ok)
	_, ok = e.Order(buyID)
	require.False(t, ok)
}

func TestPricePriorityScenario(t *testing.T) {
	e, _ := newEngine()

	r101 := submit(t, e, limit(book.SideBuy, "5", "101"))
	r102 := submit(t, e, limit(book.SideBuy, "5", "102"))

	res := submit(t, e, limit(book.SideSell, "10", "100"))
	require.Len(t, res.Trades, 2)
	require.Equal(t, r102.OrderID, res.Trades[0].MakerOrderID)
	require.True(t, res.Trades[0].Price.Equal(d("102")))
	require.Equal(t, r101.OrderID, res.Trades[1].MakerOrderID)
	require.True(t, res.Trades[1].Price.Equal(d("101")))
	require.Equal(t, int64(1), res.Trades[0].Seq)
	require.Equal(t, int64(2), res.Trades[1].Seq)
	require.Equal(t, book.StatusFilled, res.Status)

	depth := e.Depth(book.AllLevels)
	require.Empty(t, depth.Bids)
	require.Empty(t, depth.Asks)
}

func TestFIFOAtPrice(t *testing.T) {
	e, _ := newEngine()

	first := submit(t, e, limit(book.SideSell, "3", "50"))
	second := submit(t, e, limit(book.SideSell, "3", "50.00"))

	res := submit(t, e, limit(book.SideBuy, "4", "50"))
	require.Len(t, res.Trades, 2)
	require.Equal(t, first.OrderID, res.Trades[0].MakerOrderID)
	require.True(t, res.Trades[0].Quantity.Equal(d("3")))
	require.Equal(t, second.OrderID, res.Trades[1].MakerOrderID)
	require.True(t, res.Trades[1].Quantity.Equal(d("1")))

	o, ok := e.Order(second.OrderID)
	require.True(t, ok)
	require.True(t, o.Quantity.Equal(d("2")))

	require.Len(t, res.Makers, 2)
	require.Equal(t, book.StatusFilled, res.Makers[0].Status)
	require.Equal(t, book.StatusPartiallyFilled, res.Makers[1].Status)
}

func TestLimitRestsRemainderAtOwnPrice(t *testing.T) {
	e, _ := newEngine()

	submit(t, e, limit(book.SideSell, "2", "99"))
	res := submit(t, e, limit(book.SideBuy, "5", "101"))
	require.Len(t, res.Trades, 1)
	require.True(t, res.Trades[0].Price.Equal(d("99")))
	require.Equal(t, book.StatusPartiallyFilled, res.Status)

	bid, ok := e.BestBid()
	require.True(t, ok)
	require.True(t, bid.Price.Equal(d("101")))
	require.True(t, bid.Quantity.Equal(d("3")))
}

func TestNoCrossWithoutTrade(t *testing.T) {
	e, _ := newEngine()

	submit(t, e, limit(book.SideSell, "1", "101"))
	res := submit(t, e, limit(book.SideBuy, "1", "100.999"))
	require.Empty(t, res.Trades)

	depth := e.Depth(10)
	require.Len(t, depth.Bids, 1)
	require.Len(t, depth.Asks, 1)
}

func TestRejectedInput(t *testing.T) {
	e, rec := newEngine()

	cases := []struct {
		req    ome.SubmitReq
		reason ome.Reason
	}{
		{ome.SubmitReq{Side: 0, Kind: book.KindLimit, Price: decimal.NewNullDecimal(d("1")), Quantity: d("1")}, ome.ReasonInvalidSide},
		{ome.SubmitReq{Side: book.SideBuy, Kind: 9, Price: decimal.NewNullDecimal(d("1")), Quantity: d("1")}, ome.ReasonInvalidKind},
		{ome.SubmitReq{Side: book.SideBuy, Kind: book.KindLimit, Quantity: d("1")}, ome.ReasonMissingPrice},
		{limit(book.SideBuy, "1", "0"), ome.ReasonNonPositivePrice},
		{limit(book.SideBuy, "1", "-3"), ome.ReasonNonPositivePrice},
		{limit(book.SideBuy, "0", "1"), ome.ReasonNonPositiveQuantity},
		{market(book.SideSell, "-1"), ome.ReasonNonPositiveQuantity},
		{ome.SubmitReq{Side: book.SideBuy, Kind: book.KindMarket, Price: decimal.NewNullDecimal(d("1")), Quantity: d("1")}, ome.ReasonUnexpectedPrice},
	}

	for _, c := range cases {
		_, err := e.Submit(c.req)
		require.ErrorIs(t, err, ome.ErrRejected)
		reason, ok := ome.RejectReason(err)
		require.True(t, ok)
		require.Equal(t, c.reason, reason)
	}

	require.Equal(t, int64(0), e.LastSeq())
	require.Empty(t, rec.Events())
}

func TestIdempotentCancel(t *testing.T) {
	e, rec := newEngine()

	a := submit(t, e, limit(book.SideBuy, "1", "10"))
	b := submit(t, e, limit(book.SideBuy, "1", "10"))

	found, err := e.Cancel(a.OrderID)
	require.Nil(t, err)
	require.True(t, found)

	rec.Reset()
	before := e.Depth(book.AllLevels)

	found, err = e.Cancel(a.OrderID)
	require.Nil(t, err)
	require.False(t, found)

	// filled orders are not found either
	submit(t, e, limit(book.SideSell, "1", "10"))
	_, ok := e.Order(b.OrderID)
	require.False(t, ok)
	rec.Reset()
	found, err = e.Cancel(b.OrderID)
	require.Nil(t, err)
	require.False(t, found)
	require.Empty(t, rec.Events())

	found, err = e.Cancel(12345)
	require.Nil(t, err)
	require.False(t, found)

	require.NotEqual(t, before, e.Depth(book.AllLevels))
	require.Nil(t, e.Audit())
}

func TestEventsOrder(t *testing.T) {
	e, rec := newEngine(ome.WithDepthLevels(1))

	submit(t, e, limit(book.SideBuy, "2", "100"))
	require.Equal(t, []event.Kind{event.KindOrderAccepted, event.KindDepthChanged}, rec.Kinds())

	rec.Reset()
	submit(t, e, limit(book.SideBuy, "1", "99"))
	submit(t, e, limit(book.SideBuy, "1", "98"))
	evs := rec.Events()
	last := evs[len(evs)-1]
	require.Equal(t, event.KindDepthChanged, last.Kind)
	require.Len(t, last.Depth.Depth.Bids, 1)

	rec.Reset()
	res := submit(t, e, market(book.SideSell, "5"))
	require.Equal(t, []event.Kind{
		event.KindOrderAccepted,
		event.KindTrade,
		event.KindTrade,
		event.KindTrade,
		event.KindOrderCancelled,
		event.KindDepthChanged,
	}, rec.Kinds())
	evs = rec.Events()
	require.Equal(t, res.OrderID, evs[0].Accepted.OrderID)
	require.Equal(t, event.CancelUnfilledRest, evs[4].Cancelled.Reason)
	require.True(t, evs[4].Cancelled.Remaining.Equal(d("1")))
	require.Equal(t, int64(3), evs[5].Depth.TradeSeq)

	rec.Reset()
	r := submit(t, e, limit(book.SideSell, "1", "200"))
	rec.Reset()
	_, err := e.Cancel(r.OrderID)
	require.Nil(t, err)
	require.Equal(t, []event.Kind{event.KindOrderCancelled, event.KindDepthChanged}, rec.Kinds())
	require.Equal(t, event.CancelByOwner, rec.Events()[0].Cancelled.Reason)
}

func TestDepthEventsOff(t *testing.T) {
	e, rec := newEngine(ome.WithDepthEvents(false))
	submit(t, e, limit(book.SideBuy, "1", "1"))
	require.Equal(t, []event.Kind{event.KindOrderAccepted}, rec.Kinds())
}

func TestClockAndTime(t *testing.T) {
	now := time.Unix(1700000000, 0)
	e, _ := newEngine(ome.WithClock(func() time.Time { return now }))

	a := submit(t, e, limit(book.SideBuy, "1", "1"))
	o, _ := e.Order(a.OrderID)
	require.Equal(t, now.UnixNano(), o.Time)

	req := limit(book.SideBuy, "1", "1")
	req.Time = 42
	b := submit(t, e, req)
	o, _ = e.Order(b.OrderID)
	require.Equal(t, int64(42), o.Time)

	// time never decides priority
	res := submit(t, e, limit(book.SideSell, "1", "1"))
	require.Equal(t, a.OrderID, res.Trades[0].MakerOrderID)
}

func TestTradesSince(t *testing.T) {
	e, _ := newEngine()
	for i := 0; i < 3; i++ {
		submit(t, e, limit(book.SideSell, "1", "10"))
	}
	submit(t, e, market(book.SideBuy, "3"))

	require.Len(t, e.TradesSince(0), 3)
	tr := e.TradesSince(2)
	require.Len(t, tr, 1)
	require.Equal(t, int64(3), tr[0].Seq)
	require.Empty(t, e.TradesSince(3))

	snap := e.Snapshot(5)
	require.Equal(t, int64(4), snap.Seq)
	require.Equal(t, int64(3), snap.TradeSeq)
	require.Equal(t, 0, e.Levels(book.SideSell))
}

func TestHaltedError(t *testing.T) {
	err := &ome.InvariantError{Symbol: "BTC_USDT", Op: "submit", Detail: "x"}
	require.True(t, errors.Is(err, ome.ErrInvariant))
	require.False(t, errors.Is(err, ome.ErrRejected))
	require.Contains(t, err.Error(), "invariant violation")
}
