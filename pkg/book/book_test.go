package book_test

import (
	"testing"

	"clob/pkg/book"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var seq int64

func limit(side book.Side, price, qty string) *book.Order {
	seq++
	return &book.Order{
		ID:       seq,
		Seq:      seq,
		Side:     side,
		Kind:     book.KindLimit,
		Price:    decimal.RequireFromString(price),
		OrigQty:  decimal.RequireFromString(qty),
		Quantity: decimal.RequireFromString(qty),
		Status:   book.StatusOpen,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBestPrices(t *testing.T) {
	b := book.New("BTC_USDT")
	require.Nil(t, b.BestBid())
	require.Nil(t, b.BestAsk())

	require.Nil(t, b.InsertResting(limit(book.SideBuy, "100", "1")))
	require.Nil(t, b.InsertResting(limit(book.SideBuy, "102", "1")))
	require.Nil(t, b.InsertResting(limit(book.SideBuy, "101", "1")))
	require.Nil(t, b.InsertResting(limit(book.SideSell, "105", "1")))
	require.Nil(t, b.InsertResting(limit(book.SideSell, "103", "1")))

	require.True(t, b.BestBid().Price.Equal(d("102")))
	require.True(t, b.BestAsk().Price.Equal(d("103")))
	require.Equal(t, 3, b.Levels(book.SideBuy))
	require.Equal(t, 2, b.Levels(book.SideSell))
	require.False(t, b.Crossed())
}

func TestLevelIsFIFO(t *testing.T) {
	b := book.New("BTC_USDT")
	o1 := limit(book.SideSell, "100", "1")
	o2 := limit(book.SideSell, "100.00", "2")
	o3 := limit(book.SideSell, "100", "3")
	for _, o := range []*book.Order{o1, o2, o3} {
		require.Nil(t, b.InsertResting(o))
	}

	l := b.BestAsk()
	require.Equal(t, 3, l.Len())
	require.True(t, l.Total().Equal(d("6")))
	require.Equal(t, o1, l.Front())

	orders := l.Orders()
	require.Equal(t, []int64{o1.ID, o2.ID, o3.ID}, []int64{orders[0].ID, orders[1].ID, orders[2].ID})

	// removing from the middle keeps the queue order
	_, ok := b.Remove(o2.ID)
	require.True(t, ok)
	orders = b.BestAsk().Orders()
	require.Len(t, orders, 2)
	require.Equal(t, o1.ID, orders[0].ID)
	require.Equal(t, o3.ID, orders[1].ID)
	require.True(t, b.BestAsk().Total().Equal(d("4")))
}

func TestInsertRestingRejects(t *testing.T) {
	b := book.New("BTC_USDT")
	o := limit(book.SideBuy, "100", "1")
	require.Nil(t, b.InsertResting(o))
	require.ErrorIs(t, b.InsertResting(o), book.ErrDuplicateOrder)

	m := limit(book.SideBuy, "0", "1")
	m.Kind = book.KindMarket
	require.ErrorIs(t, b.InsertResting(m), book.ErrNotRestable)

	z := limit(book.SideBuy, "100", "0")
	require.ErrorIs(t, b.InsertResting(z), book.ErrNotRestable)

	c := limit(book.SideBuy, "100", "1")
	c.Status = book.StatusCancelled
	require.ErrorIs(t, b.InsertResting(c), book.ErrNotRestable)
}

func TestRemoveDeletesEmptyLevel(t *testing.T) {
	b := book.New("BTC_USDT")
	o := limit(book.SideBuy, "100", "1")
	require.Nil(t, b.InsertResting(o))

	got, ok := b.Remove(o.ID)
	require.True(t, ok)
	require.Equal(t, o, got)
	require.False(t, got.Resting())
	require.Nil(t, b.BestBid())
	require.Equal(t, 0, b.Levels(book.SideBuy))

	_, ok = b.Remove(o.ID)
	require.False(t, ok)
}

func TestFill(t *testing.T) {
	b := book.New("BTC_USDT")
	o := limit(book.SideSell, "100", "5")
	require.Nil(t, b.InsertResting(o))

	require.Nil(t, b.Fill(o, d("2")))
	require.Equal(t, book.StatusPartiallyFilled, o.Status)
	require.True(t, o.Quantity.Equal(d("3")))
	require.True(t, o.Filled().Equal(d("2")))
	require.True(t, b.BestAsk().Total().Equal(d("3")))

	require.ErrorIs(t, b.Fill(o, d("4")), book.ErrOverfill)
	require.ErrorIs(t, b.Fill(o, d("0")), book.ErrOverfill)

	require.Nil(t, b.Fill(o, d("3")))
	require.Equal(t, book.StatusFilled, o.Status)
	require.Nil(t, b.BestAsk())
	require.Equal(t, 0, b.Len())

	require.ErrorIs(t, b.Fill(o, d("1")), book.ErrNotResting)
}

func TestDepth(t *testing.T) {
	b := book.New("BTC_USDT")
	require.Nil(t, b.InsertResting(limit(book.SideBuy, "99", "1")))
	require.Nil(t, b.InsertResting(limit(book.SideBuy, "100", "2")))
	require.Nil(t, b.InsertResting(limit(book.SideBuy, "100", "3")))
	require.Nil(t, b.InsertResting(limit(book.SideBuy, "98", "4")))
	require.Nil(t, b.InsertResting(limit(book.SideSell, "101", "1.5")))
	require.Nil(t, b.InsertResting(limit(book.SideSell, "102", "2.5")))

	depth := b.Depth(2)
	require.Len(t, depth.Bids, 2)
	require.True(t, depth.Bids[0].Price.Equal(d("100")))
	require.True(t, depth.Bids[0].Quantity.Equal(d("5")))
	require.True(t, depth.Bids[1].Price.Equal(d("99")))
	require.Len(t, depth.Asks, 2)
	require.True(t, depth.Asks[0].Price.Equal(d("101")))

	all := b.Depth(book.AllLevels)
	require.Len(t, all.Bids, 3)
	require.Len(t, all.Asks, 2)

	none := b.Depth(0)
	require.Empty(t, none.Bids)
	require.Empty(t, none.Asks)
	require.NotNil(t, none.Bids)
	require.True(t, b.RestingQuantity().Equal(d("14")))
}

func TestCrossed(t *testing.T) {
	b := book.New("BTC_USDT")
	require.Nil(t, b.InsertResting(limit(book.SideBuy, "100", "1")))
	require.Nil(t, b.InsertResting(limit(book.SideSell, "100", "1")))
	require.True(t, b.Crossed())
}

func TestParse(t *testing.T) {
	s, err := book.ParseSide("bid")
	require.Nil(t, err)
	require.Equal(t, book.SideBuy, s)
	s, err = book.ParseSide("SELL")
	require.Nil(t, err)
	require.Equal(t, book.SideSell, s)
	_, err = book.ParseSide("hold")
	require.ErrorIs(t, err, book.ErrInvalidSide)

	k, err := book.ParseKind("market")
	require.Nil(t, err)
	require.Equal(t, book.KindMarket, k)
	_, err = book.ParseKind("stop")
	require.ErrorIs(t, err, book.ErrInvalidKind)

	require.Equal(t, book.SideSell, book.SideBuy.Opposite())
	require.Equal(t, "PARTIALLY_FILLED", book.StatusPartiallyFilled.String())
}
