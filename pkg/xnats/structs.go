// Package xnats defines the messages exchanged with the matching engine over NATS.
package xnats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

const (
	// CmdStream holds order commands, consumed by one ome worker per symbol
	CmdStream = "OME"
	// EvtStream holds the events published by ome workers
	EvtStream = "OME_EVT"

	CmdTypeSubmit = "Submit"
	CmdTypeCancel = "Cancel"
)

// SubmitReq new order request, sent from ingress (or any client) to ome
type SubmitReq struct {
	Side     string              `json:"side"`            // BUY or SELL
	Kind     string              `json:"kind"`            // LIMIT or MARKET
	Price    decimal.NullDecimal `json:"price"`           // null for market orders
	Quantity decimal.Decimal     `json:"quantity"`        // base quantity
	Owner    string              `json:"owner,omitempty"` // opaque submitter reference
}

// CancelReq cancel request for a resting order
type CancelReq struct {
	OrderID int64 `json:"orderID"`
}

// Command is the message body on OME.<SYMBOL>.Cmd
type Command struct {
	Type   string     `json:"type"`
	ID     string     `json:"id,omitempty"` // client generated, used as nats MsgId for de-duplication
	Time   int64      `json:"time"`         // creation time, in nanoseconds
	Submit *SubmitReq `json:"submit,omitempty"`
	Cancel *CancelReq `json:"cancel,omitempty"`
}

// Envelope is the message body on OME.<SYMBOL>.Evt.<Kind>
type Envelope struct {
	Kind     string          `json:"kind"`
	Symbol   string          `json:"symbol"`
	Instance string          `json:"instance,omitempty"`
	Data     json.RawMessage `json:"data"`
}

func CmdSubject(symbol string) string {
	return fmt.Sprintf("%s.%s.Cmd", CmdStream, strings.ToUpper(symbol))
}

func EvtSubject(symbol, kind string) string {
	return fmt.Sprintf("%s.%s.Evt.%s", CmdStream, strings.ToUpper(symbol), kind)
}

// Connect opens a connection and a JetStream context
func Connect(url string) (nc *nats.Conn, js nats.JetStreamContext, err error) {
	nc, err = nats.Connect(url, nats.Name("ome"), nats.MaxReconnects(-1))
	if err != nil {
		return
	}

	js, err = nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	return
}

// EnsureStreams creates the command and event streams when missing
func EnsureStreams(js nats.JetStreamContext) (err error) {
	streams := []*nats.StreamConfig{
		{Name: CmdStream, Subjects: []string{CmdStream + ".*.Cmd"}},
		{Name: EvtStream, Subjects: []string{CmdStream + ".*.Evt.*"}, MaxMsgs: 1_000_000},
	}

	for _, sc := range streams {
		_, err = js.StreamInfo(sc.Name)
		if err == nil {
			continue
		}
		if err != nats.ErrStreamNotFound {
			return
		}
		_, err = js.AddStream(sc)
		if err != nil {
			return
		}
	}

	return nil
}
