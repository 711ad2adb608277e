// Package book keeps the resting liquidity of one instrument in price-time priority.
//
// Each side is a btree of price levels, best price first, and every level is a FIFO
// queue ordered by admission sequence. An id index gives direct access to a resting
// order for cancellation. The book never matches by itself: crossing orders is the
// job of the matching engine in package ome.
package book

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateOrder = errors.New("order exists")
	ErrNotRestable    = errors.New("order cannot rest")
	ErrNotResting     = errors.New("order is not resting")
	ErrOverfill       = errors.New("fill exceeds remaining quantity")
)

const btreeDegree = 8

// OrderBook of a single instrument. Not safe for concurrent use, the owner
// (one matching engine) serializes access.
type OrderBook struct {
	Symbol string

	bids   *btree.BTreeG[*PriceLevel]
	asks   *btree.BTreeG[*PriceLevel]
	orders map[int64]*Order
}

// PriceQty aggregate quantity at one price
type PriceQty struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Depth best-first aggregated levels of both sides
type Depth struct {
	Bids []PriceQty `json:"bids"`
	Asks []PriceQty `json:"asks"`
}

func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   btree.NewG[*PriceLevel](btreeDegree, bidLess),
		asks:   btree.NewG[*PriceLevel](btreeDegree, askLess),
		orders: make(map[int64]*Order),
	}
}

func (b *OrderBook) tree(side Side) *btree.BTreeG[*PriceLevel] {
	if side == SideBuy {
		return b.bids
	}
	return b.asks
}

// Best returns the top level of a side, nil when the side is empty
func (b *OrderBook) Best(side Side) *PriceLevel {
	l, ok := b.tree(side).Min()
	if !ok {
		return nil
	}
	return l
}

func (b *OrderBook) BestBid() *PriceLevel {
	return b.Best(SideBuy)
}

func (b *OrderBook) BestAsk() *PriceLevel {
	return b.Best(SideSell)
}

// Level returns the level at an exact price, nil if none
func (b *OrderBook) Level(side Side, price decimal.Decimal) *PriceLevel {
	l, ok := b.tree(side).Get(&PriceLevel{Price: price})
	if !ok {
		return nil
	}
	return l
}

// InsertResting appends an open limit order to the back of its price level
func (b *OrderBook) InsertResting(o *Order) error {
	if _, ok := b.orders[o.ID]; ok {
		return fmt.Errorf("%w: id %d", ErrDuplicateOrder, o.ID)
	}
	if o.Kind != KindLimit || !o.Side.Valid() || !o.Price.IsPositive() || !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: id %d", ErrNotRestable, o.ID)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: id %d is %s", ErrNotRestable, o.ID, o.Status)
	}

	t := b.tree(o.Side)
	l, ok := t.Get(&PriceLevel{Price: o.Price})
	if !ok {
		l = newPriceLevel(o.Side, o.Price)
		t.ReplaceOrInsert(l)
	}
	l.pushBack(o)
	b.orders[o.ID] = o

	return nil
}

// Remove takes a resting order out of the book, dropping its level when it
// becomes empty. ok is false if the order is not resting, which is an
// expected outcome for already filled or cancelled orders.
func (b *OrderBook) Remove(id int64) (o *Order, ok bool) {
	o, ok = b.orders[id]
	if !ok {
		return nil, false
	}
	b.detach(o)
	return o, true
}

func (b *OrderBook) detach(o *Order) {
	l := o.level
	l.unlink(o)
	if l.Len() == 0 {
		b.tree(l.Side).Delete(l)
	}
	delete(b.orders, o.ID)
}

// Fill reduces a resting order by qty. A fully filled order leaves the book.
func (b *OrderBook) Fill(o *Order, qty decimal.Decimal) error {
	if cur, ok := b.orders[o.ID]; !ok || cur != o {
		return fmt.Errorf("%w: id %d", ErrNotResting, o.ID)
	}
	if !qty.IsPositive() || qty.GreaterThan(o.Quantity) {
		return fmt.Errorf("%w: id %d remaining %s fill %s", ErrOverfill, o.ID, o.Quantity, qty)
	}

	o.Quantity = o.Quantity.Sub(qty)
	o.level.total = o.level.total.Sub(qty)

	if o.Quantity.IsZero() {
		o.Status = StatusFilled
		b.detach(o)
	} else {
		o.Status = StatusPartiallyFilled
	}

	return nil
}

// Get returns a resting order by id
func (b *OrderBook) Get(id int64) (*Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Len number of resting orders
func (b *OrderBook) Len() int {
	return len(b.orders)
}

// Levels number of price levels on a side
func (b *OrderBook) Levels(side Side) int {
	return b.tree(side).Len()
}

// Crossed reports best bid >= best ask, which must never be observable at rest
func (b *OrderBook) Crossed() bool {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid == nil || ask == nil {
		return false
	}
	return bid.Price.GreaterThanOrEqual(ask.Price)
}

// RestingQuantity sums the remaining quantity of every resting order
func (b *OrderBook) RestingQuantity() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range []*btree.BTreeG[*PriceLevel]{b.bids, b.asks} {
		t.Ascend(func(l *PriceLevel) bool {
			sum = sum.Add(l.total)
			return true
		})
	}
	return sum
}

// AllLevels as maxLevels of Depth returns every level
const AllLevels = math.MaxInt32

// Depth returns up to maxLevels levels per side, best first
func (b *OrderBook) Depth(maxLevels int) Depth {
	return Depth{
		Bids: collect(b.bids, maxLevels),
		Asks: collect(b.asks, maxLevels),
	}
}

func collect(t *btree.BTreeG[*PriceLevel], maxLevels int) []PriceQty {
	n := t.Len()
	if maxLevels < n {
		n = maxLevels
	}
	if n < 0 {
		n = 0
	}
	res := make([]PriceQty, 0, n)
	t.Ascend(func(l *PriceLevel) bool {
		if len(res) >= n {
			return false
		}
		res = append(res, PriceQty{Price: l.Price, Quantity: l.total})
		return true
	})
	return res
}
