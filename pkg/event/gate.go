package event

import (
	"sync/atomic"

	"clob/pkg/ledger"
)

// Gate forwards events to Next only while open. The zero value is closed.
// Workers keep it closed while they replay their journal.
type Gate struct {
	Next Publisher
	open atomic.Bool
}

func (g *Gate) Open()        { g.open.Store(true) }
func (g *Gate) Close()       { g.open.Store(false) }
func (g *Gate) IsOpen() bool { return g.open.Load() }

func (g *Gate) OnOrderAccepted(v OrderAccepted) {
	if g.open.Load() {
		g.Next.OnOrderAccepted(v)
	}
}

func (g *Gate) OnTrade(v ledger.Trade) {
	if g.open.Load() {
		g.Next.OnTrade(v)
	}
}

func (g *Gate) OnOrderCancelled(v OrderCancelled) {
	if g.open.Load() {
		g.Next.OnOrderCancelled(v)
	}
}

func (g *Gate) OnDepthChanged(v DepthChanged) {
	if g.open.Load() {
		g.Next.OnDepthChanged(v)
	}
}
