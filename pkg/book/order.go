package book

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Side of an order. Values follow the persisted order table: 1 sell ask, 2 buy bid.
type Side int8

const (
	SideSell Side = 1
	SideBuy  Side = 2
)

// Kind of an order, 1 limit, 2 market
type Kind int8

const (
	KindLimit  Kind = 1
	KindMarket Kind = 2
)

// Status of an order
type Status int8

const (
	StatusOpen            Status = 1
	StatusPartiallyFilled Status = 2 // still open, resting with some quantity traded
	StatusFilled          Status = 3
	StatusCancelled       Status = 4
)

var (
	ErrInvalidSide = errors.New("invalid order side")
	ErrInvalidKind = errors.New("invalid order kind")
)

func (s Side) Valid() bool {
	return s == SideSell || s == SideBuy
}

// Opposite returns the side a taker of this side trades against
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseSide accepts BUY/BID and SELL/ASK in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "BUY", "BID":
		return SideBuy, nil
	case "SELL", "ASK":
		return SideSell, nil
	}
	return 0, ErrInvalidSide
}

func (k Kind) Valid() bool {
	return k == KindLimit || k == KindMarket
}

func (k Kind) String() string {
	switch k {
	case KindLimit:
		return "LIMIT"
	case KindMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(s) {
	case "LIMIT":
		return KindLimit, nil
	case "MARKET":
		return KindMarket, nil
	}
	return 0, ErrInvalidKind
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further fills or cancels can apply
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled
}

// Order is an admitted order. Identity fields never change after admission,
// Quantity (remaining) only decreases.
type Order struct {
	ID      int64
	Seq     int64 // admission sequence, the only time-priority key
	Owner   string
	Side    Side
	Kind    Kind
	Price   decimal.Decimal // zero for market orders
	OrigQty decimal.Decimal
	// Remaining quantity
	Quantity decimal.Decimal
	Status   Status
	Time     int64 // admission time in unix nanoseconds, informational

	level *PriceLevel
	prev  *Order
	next  *Order
}

// Filled returns the quantity traded so far
func (o *Order) Filled() decimal.Decimal {
	return o.OrigQty.Sub(o.Quantity)
}

// Resting reports whether the order currently sits in a price level
func (o *Order) Resting() bool {
	return o.level != nil
}

// Snapshot returns a detached copy that is safe to hand outside the book
func (o *Order) Snapshot() Order {
	c := *o
	c.level, c.prev, c.next = nil, nil, nil
	return c
}
