package ome

import (
	"fmt"
	"sync"
	"time"

	"clob/pkg/book"
	"clob/pkg/event"
	"clob/pkg/ledger"

	"github.com/shopspring/decimal"
)

// SubmitReq a new order as seen by the engine
type SubmitReq struct {
	Side     book.Side
	Kind     book.Kind
	Price    decimal.NullDecimal // required for limit orders, must be null for market orders
	Quantity decimal.Decimal
	Owner    string
	Time     int64 // admission time in unix nanoseconds, zero takes the engine clock
}

// Result outcome of a successful submit
type Result struct {
	OrderID   int64           `json:"orderID"`
	Seq       int64           `json:"seq"`
	Status    book.Status     `json:"status"`
	Trades    []ledger.Trade  `json:"trades"`
	Filled    decimal.Decimal `json:"filled"`
	Remaining decimal.Decimal `json:"remaining"`

	// Makers final state of every resting order traded against, in first-trade order
	Makers []book.Order `json:"makers,omitempty"`
}

type Option func(*Engine)

// WithPublisher sets the receiver of book events
func WithPublisher(p event.Publisher) Option {
	return func(e *Engine) {
		e.pub = p
	}
}

// WithDepthLevels bounds the levels per side carried by DepthChanged, 0 for all
func WithDepthLevels(n int) Option {
	return func(e *Engine) {
		if n <= 0 {
			n = book.AllLevels
		}
		e.depthLevels = n
	}
}

// WithDepthEvents turns DepthChanged events on or off
func WithDepthEvents(on bool) Option {
	return func(e *Engine) {
		e.depthEvents = on
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine is the matching engine of one instrument. It owns the order book and
// the trade ledger; Submit and Cancel are serialized by an internal lock and
// reads are served under the read lock, so no caller observes a transient
// crossed book.
type Engine struct {
	Symbol string

	mu     sync.RWMutex
	book   *book.OrderBook
	ledger *ledger.Ledger

	pub         event.Publisher
	pending     []event.Event
	depthLevels int
	depthEvents bool
	now         func() time.Time

	seq    int64 // admission sequence, also the order id
	halted error

	admitted  decimal.Decimal // original quantity of every admitted order
	cancelled decimal.Decimal // remaining quantity of every cancelled order
}

func NewEngine(symbol string, opts ...Option) *Engine {
	e := &Engine{
		Symbol:      symbol,
		book:        book.New(symbol),
		ledger:      ledger.New(symbol),
		pub:         event.Nop{},
		depthLevels: 20,
		depthEvents: true,
		now:         time.Now,
		admitted:    decimal.Zero,
		cancelled:   decimal.Zero,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validate(req SubmitReq) error {
	if !req.Side.Valid() {
		return Reject(ReasonInvalidSide)
	}
	if !req.Kind.Valid() {
		return Reject(ReasonInvalidKind)
	}
	if !req.Quantity.IsPositive() {
		return Reject(ReasonNonPositiveQuantity)
	}
	if req.Kind == book.KindMarket {
		if req.Price.Valid {
			return Reject(ReasonUnexpectedPrice)
		}
		return nil
	}
	if !req.Price.Valid {
		return Reject(ReasonMissingPrice)
	}
	if !req.Price.Decimal.IsPositive() {
		return Reject(ReasonNonPositivePrice)
	}
	return nil
}

// Submit admits a new order, crosses it against the opposite side and rests
// any limit remainder. A market remainder is cancelled. Invalid input returns
// a *RejectError and changes nothing.
func (e *Engine) Submit(req SubmitReq) (res Result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted != nil {
		return res, fmt.Errorf("%w: %s", ErrHalted, e.halted)
	}
	err = validate(req)
	if err != nil {
		return
	}

	ts := req.Time
	if ts == 0 {
		ts = e.now().UnixNano()
	}

	e.seq++
	o := &book.Order{
		ID:       e.seq,
		Seq:      e.seq,
		Owner:    req.Owner,
		Side:     req.Side,
		Kind:     req.Kind,
		Price:    decimal.Zero,
		OrigQty:  req.Quantity,
		Quantity: req.Quantity,
		Status:   book.StatusOpen,
		Time:     ts,
	}
	if req.Kind == book.KindLimit {
		o.Price = req.Price.Decimal
	}
	e.admitted = e.admitted.Add(o.OrigQty)

	e.emit(event.Accepted(event.OrderAccepted{
		Symbol:   e.Symbol,
		OrderID:  o.ID,
		Seq:      o.Seq,
		Owner:    o.Owner,
		Side:     o.Side,
		Kind:     o.Kind,
		Price:    o.Price,
		Quantity: o.OrigQty,
		Time:     o.Time,
	}))

	trades, makers, err := e.match(o)
	if err != nil {
		return res, e.halt("submit", err.Error())
	}

	switch {
	case o.Quantity.IsNegative():
		return res, e.halt("submit", fmt.Sprintf("order %d remaining %s", o.ID, o.Quantity))
	case o.Quantity.IsZero():
		o.Status = book.StatusFilled
	case o.Kind == book.KindMarket:
		o.Status = book.StatusCancelled
		e.cancelled = e.cancelled.Add(o.Quantity)
		e.emit(event.Cancelled(event.OrderCancelled{
			Symbol:    e.Symbol,
			OrderID:   o.ID,
			Seq:       o.Seq,
			Owner:     o.Owner,
			Side:      o.Side,
			Remaining: o.Quantity,
			Reason:    event.CancelUnfilledRest,
			Time:      ts,
		}))
	default:
		err = e.book.InsertResting(o)
		if err != nil {
			return res, e.halt("submit", err.Error())
		}
	}

	err = e.verify("submit")
	if err != nil {
		return
	}
	e.emitDepth()
	e.flush()

	res = Result{
		OrderID:   o.ID,
		Seq:       o.Seq,
		Status:    o.Status,
		Trades:    trades,
		Filled:    o.Filled(),
		Remaining: o.Quantity,
		Makers:    makers,
	}
	return
}

// match crosses o against the best opposite levels while prices allow
func (e *Engine) match(o *book.Order) (trades []ledger.Trade, makers []book.Order, err error) {
	trades = []ledger.Trade{}
	touched := map[int64]int{}

	for o.Quantity.IsPositive() {
		lvl := e.book.Best(o.Side.Opposite())
		if lvl == nil {
			break
		}
		if o.Kind == book.KindLimit && !crosses(o, lvl.Price) {
			break
		}

		maker := lvl.Front()
		qty := decimal.Min(o.Quantity, maker.Quantity)

		err = e.book.Fill(maker, qty)
		if err != nil {
			return
		}
		o.Quantity = o.Quantity.Sub(qty)
		o.Status = book.StatusPartiallyFilled

		var t ledger.Trade
		t, err = e.ledger.Append(ledger.Trade{
			Symbol:       e.Symbol,
			Price:        maker.Price,
			Quantity:     qty,
			TakerOrderID: o.ID,
			MakerOrderID: maker.ID,
			TakerOwner:   o.Owner,
			MakerOwner:   maker.Owner,
			TakerSide:    o.Side,
			Time:         o.Time,
		})
		if err != nil {
			return
		}
		trades = append(trades, t)
		e.emit(event.Traded(t))

		if i, ok := touched[maker.ID]; ok {
			makers[i] = maker.Snapshot()
		} else {
			touched[maker.ID] = len(makers)
			makers = append(makers, maker.Snapshot())
		}
	}

	return
}

func crosses(o *book.Order, price decimal.Decimal) bool {
	if o.Side == book.SideBuy {
		return o.Price.GreaterThanOrEqual(price)
	}
	return o.Price.LessThanOrEqual(price)
}

// Cancel removes a resting order. found is false when the order is not
// resting (unknown, filled or already cancelled), which changes nothing.
func (e *Engine) Cancel(id int64) (found bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted != nil {
		return false, fmt.Errorf("%w: %s", ErrHalted, e.halted)
	}

	o, ok := e.book.Remove(id)
	if !ok {
		return false, nil
	}
	o.Status = book.StatusCancelled
	e.cancelled = e.cancelled.Add(o.Quantity)

	e.emit(event.Cancelled(event.OrderCancelled{
		Symbol:    e.Symbol,
		OrderID:   o.ID,
		Seq:       o.Seq,
		Owner:     o.Owner,
		Side:      o.Side,
		Remaining: o.Quantity,
		Reason:    event.CancelByOwner,
		Time:      e.now().UnixNano(),
	}))

	err = e.verify("cancel")
	if err != nil {
		return
	}
	e.emitDepth()
	e.flush()

	return true, nil
}

func (e *Engine) verify(op string) error {
	if e.book.Crossed() {
		bid, ask := e.book.BestBid(), e.book.BestAsk()
		return e.halt(op, fmt.Sprintf("crossed book bid %s >= ask %s", bid.Price, ask.Price))
	}
	return nil
}

// halt stops every further mutation. Events of the failing call are dropped.
func (e *Engine) halt(op, detail string) error {
	err := &InvariantError{Symbol: e.Symbol, Op: op, Detail: detail}
	e.halted = err
	e.pending = e.pending[:0]
	logger.Errorf("%s halted with err:%s", e.Symbol, err)
	return err
}

func (e *Engine) emit(ev event.Event) {
	e.pending = append(e.pending, ev)
}

func (e *Engine) emitDepth() {
	if !e.depthEvents {
		return
	}
	e.emit(event.Depth(event.DepthChanged{
		Symbol:   e.Symbol,
		Seq:      e.seq,
		TradeSeq: e.ledger.LastSeq(),
		Depth:    e.book.Depth(e.depthLevels),
	}))
}

// flush delivers the events of the current call in order, still under the
// write lock so consecutive calls never interleave their events
func (e *Engine) flush() {
	for _, ev := range e.pending {
		ev.Deliver(e.pub)
	}
	e.pending = e.pending[:0]
}

// Depth returns up to maxLevels aggregated levels per side, book.AllLevels for all
func (e *Engine) Depth(maxLevels int) book.Depth {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Depth(maxLevels)
}

// DepthSnapshot depth of both sides with the sequences it reflects
type DepthSnapshot struct {
	Symbol   string     `json:"symbol"`
	Seq      int64      `json:"seq"`      // latest admission sequence
	TradeSeq int64      `json:"tradeSeq"` // latest ledger sequence
	Depth    book.Depth `json:"depth"`
}

// Snapshot returns the depth and the sequences it reflects, read atomically
func (e *Engine) Snapshot(maxLevels int) DepthSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return DepthSnapshot{
		Symbol:   e.Symbol,
		Seq:      e.seq,
		TradeSeq: e.ledger.LastSeq(),
		Depth:    e.book.Depth(maxLevels),
	}
}

// TradesSince returns trades with ledger sequence > seq
func (e *Engine) TradesSince(seq int64) []ledger.Trade {
	return e.ledger.Since(seq)
}

func (e *Engine) BestBid() (book.PriceQty, bool) {
	return e.best(book.SideBuy)
}

func (e *Engine) BestAsk() (book.PriceQty, bool) {
	return e.best(book.SideSell)
}

func (e *Engine) best(side book.Side) (book.PriceQty, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	l := e.book.Best(side)
	if l == nil {
		return book.PriceQty{}, false
	}
	return book.PriceQty{Price: l.Price, Quantity: l.Total()}, true
}

// Order returns a copy of a resting order
func (e *Engine) Order(id int64) (book.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.book.Get(id)
	if !ok {
		return book.Order{}, false
	}
	return o.Snapshot(), true
}

// Levels number of price levels on a side
func (e *Engine) Levels(side book.Side) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Levels(side)
}

// LastSeq latest admission sequence
func (e *Engine) LastSeq() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

// Halted returns the violation that stopped the engine, nil while running
func (e *Engine) Halted() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.halted
}

// Audit walks the whole book and checks no-cross and quantity conservation:
// admitted == 2*traded + resting + cancelled
func (e *Engine) Audit() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.book.Crossed() {
		return &InvariantError{Symbol: e.Symbol, Op: "audit", Detail: "crossed book"}
	}

	traded := e.ledger.Volume()
	resting := e.book.RestingQuantity()
	sum := traded.Add(traded).Add(resting).Add(e.cancelled)
	if !sum.Equal(e.admitted) {
		return &InvariantError{Symbol: e.Symbol, Op: "audit", Detail: fmt.Sprintf(
			"admitted %s != 2*traded %s + resting %s + cancelled %s", e.admitted, traded, resting, e.cancelled)}
	}
	return nil
}
