// Package event hands state changes of a matching engine to the outside world.
//
// The engine calls a Publisher synchronously at the end of every submit/cancel,
// in the order the state changes happened. What consumes the events (market
// data, dashboards, persistence) is unknown to the engine.
package event

import (
	"clob/pkg/book"
	"clob/pkg/ledger"

	"github.com/shopspring/decimal"
)

// Kind names an event, also used as the last token of transport subjects
type Kind string

const (
	KindOrderAccepted  Kind = "OrderAccepted"
	KindTrade          Kind = "Trade"
	KindOrderCancelled Kind = "OrderCancelled"
	KindDepthChanged   Kind = "DepthChanged"
)

// CancelReason why an order left the book without filling
type CancelReason string

const (
	CancelByOwner      CancelReason = "owner"
	CancelUnfilledRest CancelReason = "unfilled" // market order remainder with no liquidity left
)

// Publisher receives one-way notifications. Implementations must not call back
// into the engine that notifies them.
type Publisher interface {
	OnOrderAccepted(OrderAccepted)
	OnTrade(ledger.Trade)
	OnOrderCancelled(OrderCancelled)
	OnDepthChanged(DepthChanged)
}

type OrderAccepted struct {
	Symbol   string          `json:"symbol"`
	OrderID  int64           `json:"orderID"`
	Seq      int64           `json:"seq"`
	Owner    string          `json:"owner"`
	Side     book.Side       `json:"side"`
	Kind     book.Kind       `json:"kind"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Time     int64           `json:"time"`
}

type OrderCancelled struct {
	Symbol    string          `json:"symbol"`
	OrderID   int64           `json:"orderID"`
	Seq       int64           `json:"seq"`
	Owner     string          `json:"owner"`
	Side      book.Side       `json:"side"`
	Remaining decimal.Decimal `json:"remaining"`
	Reason    CancelReason    `json:"reason"`
	Time      int64           `json:"time"`
}

type DepthChanged struct {
	Symbol   string     `json:"symbol"`
	Seq      int64      `json:"seq"`      // latest admission sequence
	TradeSeq int64      `json:"tradeSeq"` // latest ledger sequence
	Depth    book.Depth `json:"depth"`
}

// Event is one notification in a form that can be queued or recorded
type Event struct {
	Kind      Kind
	Accepted  *OrderAccepted
	Trade     *ledger.Trade
	Cancelled *OrderCancelled
	Depth     *DepthChanged
}

// Deliver calls the Publisher method matching e.Kind
func (e Event) Deliver(p Publisher) {
	switch e.Kind {
	case KindOrderAccepted:
		p.OnOrderAccepted(*e.Accepted)
	case KindTrade:
		p.OnTrade(*e.Trade)
	case KindOrderCancelled:
		p.OnOrderCancelled(*e.Cancelled)
	case KindDepthChanged:
		p.OnDepthChanged(*e.Depth)
	}
}

// Payload returns the value carried by the event
func (e Event) Payload() interface{} {
	switch e.Kind {
	case KindOrderAccepted:
		return e.Accepted
	case KindTrade:
		return e.Trade
	case KindOrderCancelled:
		return e.Cancelled
	case KindDepthChanged:
		return e.Depth
	}
	return nil
}

func Accepted(v OrderAccepted) Event   { return Event{Kind: KindOrderAccepted, Accepted: &v} }
func Traded(v ledger.Trade) Event      { return Event{Kind: KindTrade, Trade: &v} }
func Cancelled(v OrderCancelled) Event { return Event{Kind: KindOrderCancelled, Cancelled: &v} }
func Depth(v DepthChanged) Event       { return Event{Kind: KindDepthChanged, Depth: &v} }

// Nop ignores everything
type Nop struct{}

func (Nop) OnOrderAccepted(OrderAccepted)   {}
func (Nop) OnTrade(ledger.Trade)            {}
func (Nop) OnOrderCancelled(OrderCancelled) {}
func (Nop) OnDepthChanged(DepthChanged)     {}

// Multi fans every event out to each publisher in order
type Multi []Publisher

func (m Multi) OnOrderAccepted(v OrderAccepted) {
	for _, p := range m {
		p.OnOrderAccepted(v)
	}
}

func (m Multi) OnTrade(v ledger.Trade) {
	for _, p := range m {
		p.OnTrade(v)
	}
}

func (m Multi) OnOrderCancelled(v OrderCancelled) {
	for _, p := range m {
		p.OnOrderCancelled(v)
	}
}

func (m Multi) OnDepthChanged(v DepthChanged) {
	for _, p := range m {
		p.OnDepthChanged(v)
	}
}
