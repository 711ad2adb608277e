// Package ingress generates synthetic order flow and sends it to the matching
// engines through NATS JetStream. It drives load tests and benchmarks.
package ingress

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"clob/pkg/xlog"
	"clob/pkg/xnats"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

var logger = xlog.GetLogger()

// Publisher is the part of nats.JetStreamContext used by ingress
type Publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Flow shape of the generated orders
type Flow struct {
	MidPrice    int64   // prices are drawn from MidPrice +- Spread
	Spread      int64
	MaxQty      int64   // quantities are drawn from 1..MaxQty
	MarketRatio float64 // share of market orders
	CancelRatio float64 // share of cancels of a previously sent order
}

func DefaultFlow() Flow {
	return Flow{MidPrice: 60, Spread: 50, MaxQty: 10, MarketRatio: 0.05, CancelRatio: 0.1}
}

type Worker struct {
	JS     Publisher
	Symbol string
	Flow   Flow

	mu   sync.Mutex
	rnd  *rand.Rand
	sent int64 // submits generated so far, engine order ids run 1..sent
}

func New(js Publisher, symbol string, flow Flow, seed int64) *Worker {
	return &Worker{
		JS:     js,
		Symbol: symbol,
		Flow:   flow,
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// Next generates one command
func (w *Worker) Next() xnats.Command {
	w.mu.Lock()
	defer w.mu.Unlock()

	cmd := xnats.Command{
		ID:   uuid.New().String(),
		Time: time.Now().UnixNano(),
	}

	f := w.Flow
	if w.sent > 0 && w.rnd.Float64() < f.CancelRatio {
		cmd.Type = xnats.CmdTypeCancel
		cmd.Cancel = &xnats.CancelReq{OrderID: 1 + w.rnd.Int63n(w.sent)}
		return cmd
	}

	w.sent++
	req := &xnats.SubmitReq{
		Side:     "BUY",
		Kind:     "LIMIT",
		Quantity: decimal.NewFromInt(1 + w.rnd.Int63n(f.MaxQty)),
		Owner:    "u" + strconv.FormatInt(1+w.rnd.Int63n(1000), 10),
	}
	if w.rnd.Intn(2) == 0 {
		req.Side = "SELL"
	}
	if w.rnd.Float64() < f.MarketRatio {
		req.Kind = "MARKET"
	} else {
		price := f.MidPrice - f.Spread + w.rnd.Int63n(2*f.Spread+1)
		if price < 1 {
			price = 1
		}
		req.Price = decimal.NewNullDecimal(decimal.NewFromInt(price))
	}

	cmd.Type = xnats.CmdTypeSubmit
	cmd.Submit = req
	return cmd
}

// Send publishes cmd to the command subject of the symbol, the command id is
// the nats MsgId so that retried publishes are de-duplicated by the stream
func (w *Worker) Send(cmd xnats.Command) (err error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return
	}
	_, err = w.JS.Publish(xnats.CmdSubject(w.Symbol), data, nats.MsgId(cmd.ID))
	return
}

// Stats of a Run
type Stats struct {
	Sent    int64
	Failed  int64
	Elapsed time.Duration
}

func (s Stats) Rate() int64 {
	if s.Elapsed < time.Second {
		return s.Sent
	}
	return s.Sent / int64(s.Elapsed.Seconds())
}

// Run generates and sends total commands with concurrency senders, or until ctx is done
func (w *Worker) Run(ctx context.Context, total int64, concurrency int) (st Stats) {
	if concurrency <= 0 {
		concurrency = 1
	}

	ch := make(chan xnats.Command, 1024)
	var (
		wg     sync.WaitGroup
		sent   atomic.Int64
		failed atomic.Int64
	)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			for cmd := range ch {
				err := w.Send(cmd)
				if err != nil {
					failed.Add(1)
					logger.Errorf("ingress sender:%d Send failed with err:%s", j, err)
					continue
				}
				sent.Add(1)
			}
		}(i)
	}

	start := time.Now()
loop:
	for i := int64(0); i < total; i++ {
		select {
		case <-ctx.Done():
			break loop
		case ch <- w.Next():
		}
	}
	close(ch)
	wg.Wait()

	st = Stats{Sent: sent.Load(), Failed: failed.Load(), Elapsed: time.Since(start)}
	logger.Infof("ingress %s sent %d commands (%d failed) in %s with rate %d/sec",
		w.Symbol, st.Sent, st.Failed, st.Elapsed, st.Rate())
	return
}
