// Package ledger is the append-only record of executed trades of one instrument.
package ledger

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"clob/pkg/book"
)

var ErrSequence = errors.New("trade sequence is not continuous")

// Trade is immutable once appended. Price is always the maker's price.
type Trade struct {
	ID           int64           `json:"id"`
	Seq          int64           `json:"seq"` // ledger append order, starts at 1
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	TakerOrderID int64           `json:"takerOrderID"`
	MakerOrderID int64           `json:"makerOrderID"`
	TakerOwner   string          `json:"takerOwner"`
	MakerOwner   string          `json:"makerOwner"`
	TakerSide    book.Side       `json:"takerSide"`
	Time         int64           `json:"time"` // unix nanoseconds, informational
}

// Amount quote value of the trade
func (t Trade) Amount() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// Ledger guards its slice with a RWMutex so subscribers may read with Since
// while the owning engine appends.
type Ledger struct {
	Symbol string

	mu     sync.RWMutex
	trades []Trade
	volume decimal.Decimal
}

func New(symbol string) *Ledger {
	return &Ledger{
		Symbol: symbol,
		volume: decimal.Zero,
	}
}

// Append assigns the next sequence (and id) to t and records it.
// A non-zero t.Seq must equal the next sequence.
func (l *Ledger) Append(t Trade) (Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := int64(len(l.trades)) + 1
	if t.Seq != 0 && t.Seq != next {
		return Trade{}, ErrSequence
	}
	t.Seq = next
	if t.ID == 0 {
		t.ID = next
	}
	if t.Symbol == "" {
		t.Symbol = l.Symbol
	}

	l.trades = append(l.trades, t)
	l.volume = l.volume.Add(t.Quantity)

	return t, nil
}

// Since returns every trade with Seq > seq in append order
func (l *Ledger) Since(seq int64) []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq < 0 {
		seq = 0
	}
	if seq >= int64(len(l.trades)) {
		return []Trade{}
	}

	res := make([]Trade, int64(len(l.trades))-seq)
	copy(res, l.trades[seq:])
	return res
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// LastSeq sequence of the latest trade, 0 when empty
func (l *Ledger) LastSeq() int64 {
	return int64(l.Len())
}

// Volume total traded quantity
func (l *Ledger) Volume() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.volume
}
