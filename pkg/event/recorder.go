package event

import (
	"sync"

	"clob/pkg/ledger"
)

// Recorder keeps every event it receives, useful for tests and audits
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) OnOrderAccepted(v OrderAccepted)   { r.add(Accepted(v)) }
func (r *Recorder) OnTrade(v ledger.Trade)            { r.add(Traded(v)) }
func (r *Recorder) OnOrderCancelled(v OrderCancelled) { r.add(Cancelled(v)) }
func (r *Recorder) OnDepthChanged(v DepthChanged)     { r.add(Depth(v)) }

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Event, len(r.events))
	copy(res, r.events)
	return res
}

// Kinds returns the kinds of the recorded events in order
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Kind, 0, len(r.events))
	for _, e := range r.events {
		res = append(res, e.Kind)
	}
	return res
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Log writes every event at debug level
type Log struct{}

func (Log) OnOrderAccepted(v OrderAccepted) {
	logger.Debugf("%s accepted order:%d seq:%d side:%s kind:%s price:%s qty:%s",
		v.Symbol, v.OrderID, v.Seq, v.Side, v.Kind, v.Price, v.Quantity)
}

func (Log) OnTrade(v ledger.Trade) {
	logger.Debugf("%s trade:%d taker:%d maker:%d price:%s qty:%s",
		v.Symbol, v.Seq, v.TakerOrderID, v.MakerOrderID, v.Price, v.Quantity)
}

func (Log) OnOrderCancelled(v OrderCancelled) {
	logger.Debugf("%s cancelled order:%d remaining:%s reason:%s", v.Symbol, v.OrderID, v.Remaining, v.Reason)
}

func (Log) OnDepthChanged(v DepthChanged) {
	logger.Tracef("%s depth seq:%d bids:%d asks:%d", v.Symbol, v.Seq, len(v.Depth.Bids), len(v.Depth.Asks))
}
