// Package ome is the matching engine. Engine matches the orders of one
// instrument; Worker runs one Engine as a service:
//
//  1. every command is written to the journal (filedb) before it is applied
//  2. a single goroutine applies commands in journal order
//  3. on start the journal is replayed to rebuild the book and the ledger
//  4. optional: commands are pulled from NATS JetStream, results are written to mysql
package ome

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"clob/pkg/book"
	"clob/pkg/event"
	"clob/pkg/filedb"
	"clob/pkg/ledger"
	"clob/pkg/metrics"
	"clob/pkg/xlog"
	"clob/pkg/xnats"

	"github.com/nats-io/nats.go"
	"gorm.io/gorm"
)

var logger = xlog.GetLogger()

// Worker matching engine worker of one symbol
type Worker struct {
	Engine *Engine

	Name        string
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	TablePrefix string
	JournalPath string

	JS nats.JetStreamContext // command intake, nil to disable
	DB *gorm.DB              // result persistence, nil to disable

	LogID      int64         // latest journal line, owned by the matching goroutine
	SavedLogID int64         // latest journal line written to mysql, owned by the writer
	natsSeq    atomic.Uint64 // latest nats stream sequence applied

	fdb   *filedb.Filedb
	gate  *event.Gate
	ch    chan *job
	state atomic.Value

	stopOnce sync.Once
	stopped  chan struct{}
}

type job struct {
	cmd    xnats.Command
	msgSeq uint64
	done   chan outcome // nil when nobody waits
}

// Options of a worker
type Options struct {
	DataDir   string
	QueueSize int
	Publisher event.Publisher // receives the events of live commands, never replayed ones
	Engine    []Option
}

// ParseSymbol checks a BASE_QUOTE symbol
func ParseSymbol(symbol string) (s, base, quote string, err error) {
	s = strings.ToUpper(strings.TrimSpace(symbol))
	ss := strings.Split(s, "_")
	if len(ss) != 2 || ss[0] == "" || ss[1] == "" {
		err = errors.New("invalid symbol")
		return
	}
	return s, ss[0], ss[1], nil
}

// New returns a Worker instance with its journal opened
func New(symbol string, opts Options) (w *Worker, err error) {
	symbol, base, quote, err := ParseSymbol(symbol)
	if err != nil {
		return
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}

	var pub event.Publisher = metrics.Publisher{}
	if opts.Publisher != nil {
		pub = event.Multi{metrics.Publisher{}, opts.Publisher}
	}
	gate := &event.Gate{Next: pub}

	w = &Worker{
		Name:        "OME_" + symbol,
		Symbol:      symbol,
		BaseAsset:   base,
		QuoteAsset:  quote,
		TablePrefix: strings.ToLower(symbol),

		gate:    gate,
		ch:      make(chan *job, opts.QueueSize),
		stopped: make(chan struct{}),
	}
	w.JournalPath = path.Join(opts.DataDir, "filedb", strings.ToLower(w.Name)+".log")
	w.Engine = NewEngine(symbol, append([]Option{WithPublisher(gate)}, opts.Engine...)...)
	w.setState("Init")

	w.fdb, err = filedb.New(w.JournalPath)
	if err != nil {
		return nil, err
	}

	logger.Infof("ome worker %s created with journal %s", w.Name, w.JournalPath)

	return
}

func (w *Worker) setState(s string) {
	w.state.Store(s)
}

// State Init, Replaying, Matching, Halted or Stopped
func (w *Worker) State() string {
	s, _ := w.state.Load().(string)
	return s
}

// NatsSeq latest nats stream sequence applied
func (w *Worker) NatsSeq() uint64 {
	return w.natsSeq.Load()
}

// Run starts the ome process and blocks until ctx is done
//
//	a. replay the journal, events are not published while replaying
//	b. writer thread: tail the journal into mysql (if DB is set)
//	c. nats thread: pull commands after the last applied stream sequence (if JS is set)
//	d. main thread: apply commands one by one
func (w *Worker) Run(ctx context.Context) (err error) {
	defer w.Close()

	w.setState("Replaying")
	err = w.Restore()
	if err != nil {
		w.setState("Halted")
		metrics.SetHalted(w.Symbol, true)
		return
	}
	metrics.SetHalted(w.Symbol, false)

	if w.DB != nil {
		go w.StartWriter(ctx)
	}
	if w.JS != nil {
		go w.StartNats(ctx)
	}

	w.setState("Matching")
	err = w.StartMatching(ctx)
	return
}

// Restore rebuilds the engine from the journal
func (w *Worker) Restore() (err error) {
	logger.Infof("%s Restore started", w.Name)
	start := time.Now()
	w.gate.Close()

	// a crash in the middle of an append leaves a line that was never applied
	_, err = w.fdb.TruncatePartial()
	if err != nil {
		logger.Errorf("%s Restore failed with err:%s", w.Name, err)
		return
	}

	st, err := ReplayInto(w.Engine, w.fdb)
	defer func() {
		if err != nil {
			logger.Errorf("%s Restore failed with err:%s", w.Name, err)
		} else {
			logger.Infof("%s Restore done with commands:%d, logID:%d, natsSeq:%d, orderSeq:%d, trades:%d in %s",
				w.Name, st.Commands, w.LogID, st.LastSeq, w.Engine.LastSeq(), w.Engine.ledger.LastSeq(), time.Since(start))
		}
	}()
	if err != nil {
		return
	}

	w.LogID = st.LastLogID
	w.natsSeq.Store(st.LastSeq)

	// the journal ended between a command and its result
	if st.Pending != nil {
		w.LogID++
		err = w.writeLog(&OmeLog{LogID: w.LogID, Ts: time.Now().UnixNano(), Result: st.PendingResult})
		if err != nil {
			return
		}
	}

	err = w.Engine.Audit()
	if err != nil {
		return
	}

	w.setBookLevels()
	w.gate.Open()
	return
}

// StartMatching main task: apply commands in order
func (w *Worker) StartMatching(ctx context.Context) (err error) {
	logger.Infof("%s StartMatching started", w.Name)
	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("%s StartMatching failed with err:%s", w.Name, err)
		} else {
			logger.Infof("%s StartMatching finished", w.Name)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-w.ch:
			w.handle(j)
		}
	}
}

// handle journals one command, applies it and journals the result
func (w *Worker) handle(j *job) {
	start := time.Now()

	// queued again by a later nats round
	if j.msgSeq > 0 && j.msgSeq <= w.natsSeq.Load() {
		logger.Debugf("%s skip nats msg seq:%d, applied up to %d", w.Name, j.msgSeq, w.natsSeq.Load())
		j.reply(outcome{})
		return
	}

	w.LogID++
	cmdLog := &OmeLog{LogID: w.LogID, Ts: start.UnixNano(), MsgSeq: j.msgSeq, Cmd: &j.cmd}
	err := w.writeLog(cmdLog)
	if err != nil {
		// not journaled, so not applied
		w.LogID--
		j.reply(outcome{err: err})
		return
	}

	out, r := execute(w.Engine, &j.cmd, cmdLog.Ts, cmdLog.LogID)
	if j.msgSeq > 0 {
		w.natsSeq.Store(j.msgSeq)
	}
	w.setBookLevels()

	w.LogID++
	err = w.writeLog(&OmeLog{LogID: w.LogID, Ts: time.Now().UnixNano(), Result: r})
	if err != nil {
		// the replay derives the result again, only the writer misses it until restart
		logger.Errorf("%s write result of logID:%d failed with err:%s", w.Name, cmdLog.LogID, err)
	}

	metrics.ObserveSubmit(w.Symbol, time.Since(start))
	if reason, ok := RejectReason(out.err); ok {
		metrics.IncRejected(w.Symbol, string(reason))
		logger.Debugf("%s logID:%d rejected with reason:%s", w.Name, cmdLog.LogID, reason)
	} else if errors.Is(out.err, ErrInvariant) {
		w.setState("Halted")
		metrics.SetHalted(w.Symbol, true)
		logger.Errorf("%s halted at logID:%d with err:%s", w.Name, cmdLog.LogID, out.err)
	}

	j.reply(out)
}

func (w *Worker) setBookLevels() {
	metrics.SetBookLevels(w.Symbol, w.Engine.Levels(book.SideBuy), w.Engine.Levels(book.SideSell))
}

func (j *job) reply(out outcome) {
	if j.done != nil {
		j.done <- out
	}
}

func (w *Worker) writeLog(l *OmeLog) error {
	b, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return w.fdb.WriteLine(string(b))
}

// enqueue hands a command to the matching goroutine
func (w *Worker) enqueue(ctx context.Context, j *job) error {
	select {
	case <-w.stopped:
		return ErrStopped
	default:
	}

	select {
	case w.ch <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopped:
		return ErrStopped
	}
}

// do enqueues a command and waits for its outcome. Once enqueued a command is
// applied even if ctx ends before the outcome arrives.
func (w *Worker) do(ctx context.Context, cmd xnats.Command) (out outcome) {
	j := &job{cmd: cmd, done: make(chan outcome, 1)}
	err := w.enqueue(ctx, j)
	if err != nil {
		return outcome{err: err}
	}

	select {
	case out = <-j.done:
		return
	case <-ctx.Done():
		return outcome{err: ctx.Err()}
	case <-w.stopped:
		return outcome{err: ErrStopped}
	}
}

// Submit journals and applies a new order
func (w *Worker) Submit(ctx context.Context, req xnats.SubmitReq) (Result, error) {
	out := w.do(ctx, xnats.Command{
		Type:   xnats.CmdTypeSubmit,
		Time:   time.Now().UnixNano(),
		Submit: &req,
	})
	return out.res, out.err
}

// Cancel journals and applies a cancel, found is false when the order is not resting
func (w *Worker) Cancel(ctx context.Context, orderID int64) (found bool, err error) {
	out := w.do(ctx, xnats.Command{
		Type:   xnats.CmdTypeCancel,
		Time:   time.Now().UnixNano(),
		Cancel: &xnats.CancelReq{OrderID: orderID},
	})
	return out.found, out.err
}

func (w *Worker) Depth(maxLevels int) DepthSnapshot {
	return w.Engine.Snapshot(maxLevels)
}

func (w *Worker) TradesSince(seq int64) []ledger.Trade {
	return w.Engine.TradesSince(seq)
}

// Close stops accepting commands and closes the journal
func (w *Worker) Close() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.setState("Stopped")
		w.fdb.Close()
	})
}

// StartNats pulls commands from nats, retrying forever until ctx is done
func (w *Worker) StartNats(ctx context.Context) (err error) {
	round := 0
	for ctx.Err() == nil {
		round++
		logger.Infof("%s StartNats round:%d started", w.Name, round)
		err = w.SubNats(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Errorf("%s StartNats round:%d failed with err:%s", w.Name, round, err)
		} else {
			logger.Infof("%s StartNats round:%d done", w.Name, round)
		}
		sleep(ctx, time.Second)
	}
	return ctx.Err()
}

// SubNats subscribes to OME.<SYMBOL>.Cmd from the message after the last applied one
func (w *Worker) SubNats(ctx context.Context) (err error) {
	last := w.natsSeq.Load()

	ch := make(chan *nats.Msg, 256)
	sub, err := w.JS.ChanSubscribe(xnats.CmdSubject(w.Symbol), ch,
		nats.StartSequence(last+1), nats.AckNone())
	if err != nil {
		return
	}
	defer sub.Unsubscribe()

	for {
		var m *nats.Msg
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m = <-ch:
		}

		meta, err := m.Metadata()
		if err != nil {
			return err
		}
		seq := meta.Sequence.Stream
		if seq <= last {
			// redelivered after a reconnect
			continue
		}
		last = seq

		var cmd xnats.Command
		err = json.Unmarshal(m.Data, &cmd)
		if err != nil {
			logger.Warningf("%s skip nats msg seq:%d with err:%s", w.Name, seq, err)
			continue
		}

		err = w.enqueue(ctx, &job{cmd: cmd, msgSeq: seq})
		if err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
