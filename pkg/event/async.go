package event

import (
	"sync"

	"clob/pkg/ledger"
	"clob/pkg/xlog"
)

var logger = xlog.GetLogger()

// Async queues events and forwards them to the wrapped publisher from a single
// goroutine, so slow network publishers never hold the engine. Order is kept;
// when the queue is full the caller waits.
type Async struct {
	next Publisher
	ch   chan Event

	once sync.Once
	done chan struct{}
}

func NewAsync(next Publisher, size int) *Async {
	if size <= 0 {
		size = 1024
	}
	a := &Async{
		next: next,
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.ch {
		e.Deliver(a.next)
	}
}

func (a *Async) push(e Event) {
	if len(a.ch) == cap(a.ch) {
		logger.Warningf("event queue full (%d), waiting for %s delivery", cap(a.ch), e.Kind)
	}
	a.ch <- e
}

// Close stops accepting events and waits until queued ones are delivered
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.ch)
	})
	<-a.done
}

func (a *Async) OnOrderAccepted(v OrderAccepted)   { a.push(Accepted(v)) }
func (a *Async) OnTrade(v ledger.Trade)            { a.push(Traded(v)) }
func (a *Async) OnOrderCancelled(v OrderCancelled) { a.push(Cancelled(v)) }
func (a *Async) OnDepthChanged(v DepthChanged)     { a.push(Depth(v)) }
