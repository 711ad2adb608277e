package event

import (
	"encoding/json"

	"clob/pkg/ledger"
	"clob/pkg/xnats"

	"github.com/nats-io/nats.go"
)

// AsyncPublisher is the part of nats.JetStreamContext used to publish events
type AsyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Nats publishes every event as an xnats.Envelope to OME.<SYMBOL>.Evt.<Kind>
type Nats struct {
	JS       AsyncPublisher
	Instance string
}

func (n *Nats) publish(e Event, symbol string) {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		logger.Errorf("nats publish %s marshal failed with err:%s", e.Kind, err)
		return
	}
	env, err := json.Marshal(xnats.Envelope{
		Kind:     string(e.Kind),
		Symbol:   symbol,
		Instance: n.Instance,
		Data:     data,
	})
	if err != nil {
		logger.Errorf("nats publish %s marshal failed with err:%s", e.Kind, err)
		return
	}

	_, err = n.JS.PublishAsync(xnats.EvtSubject(symbol, string(e.Kind)), env)
	if err != nil {
		logger.Errorf("nats publish %s failed with err:%s", e.Kind, err)
	}
}

func (n *Nats) OnOrderAccepted(v OrderAccepted)   { n.publish(Accepted(v), v.Symbol) }
func (n *Nats) OnTrade(v ledger.Trade)            { n.publish(Traded(v), v.Symbol) }
func (n *Nats) OnOrderCancelled(v OrderCancelled) { n.publish(Cancelled(v), v.Symbol) }
func (n *Nats) OnDepthChanged(v DepthChanged)     { n.publish(Depth(v), v.Symbol) }
