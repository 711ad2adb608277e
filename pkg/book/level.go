package book

import (
	"github.com/shopspring/decimal"
)

// PriceLevel holds every resting order at one price on one side, oldest first.
//
// Orders are linked intrusively so removal from the middle of the queue is O(1)
// once the order is found through the book's id index.
type PriceLevel struct {
	Price decimal.Decimal
	Side  Side

	head  *Order
	tail  *Order
	count int
	total decimal.Decimal
}

func newPriceLevel(side Side, price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price: price,
		Side:  side,
		total: decimal.Zero,
	}
}

// Front returns the order with the oldest admission sequence, nil if empty
func (l *PriceLevel) Front() *Order {
	return l.head
}

func (l *PriceLevel) Len() int {
	return l.count
}

// Total aggregate remaining quantity at this price
func (l *PriceLevel) Total() decimal.Decimal {
	return l.total
}

// Orders returns detached copies in queue order
func (l *PriceLevel) Orders() []Order {
	res := make([]Order, 0, l.count)
	for o := l.head; o != nil; o = o.next {
		res = append(res, o.Snapshot())
	}
	return res
}

func (l *PriceLevel) pushBack(o *Order) {
	o.level = l
	o.prev = l.tail
	o.next = nil
	if l.tail != nil {
		l.tail.next = o
	} else {
		l.head = o
	}
	l.tail = o
	l.count++
	l.total = l.total.Add(o.Quantity)
}

func (l *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		l.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		l.tail = o.prev
	}
	l.count--
	l.total = l.total.Sub(o.Quantity)
	o.level, o.prev, o.next = nil, nil, nil
}

// bidLess orders bids best (highest) first
func bidLess(a, b *PriceLevel) bool {
	return a.Price.GreaterThan(b.Price)
}

// askLess orders asks best (lowest) first
func askLess(a, b *PriceLevel) bool {
	return a.Price.LessThan(b.Price)
}
