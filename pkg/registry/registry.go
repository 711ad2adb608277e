// Package registry maps instrument symbols to their matching engine workers.
// Each worker owns its book and ledger; the registry only routes.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"clob/pkg/ledger"
	"clob/pkg/ome"
	"clob/pkg/xlog"
	"clob/pkg/xnats"
)

var logger = xlog.GetLogger()

type Registry struct {
	mu      sync.RWMutex
	workers map[string]*ome.Worker
}

func New() *Registry {
	return &Registry{workers: make(map[string]*ome.Worker)}
}

// Open creates one worker per symbol with the same options
func Open(symbols []string, opts ome.Options) (r *Registry, err error) {
	r = New()
	for _, s := range symbols {
		var w *ome.Worker
		w, err = ome.New(s, opts)
		if err != nil {
			r.Close()
			return nil, err
		}
		err = r.Add(w)
		if err != nil {
			w.Close()
			r.Close()
			return nil, err
		}
	}
	return
}

// Add registers w under its symbol
func (r *Registry) Add(w *ome.Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[w.Symbol]; ok {
		return errors.New("duplicate symbol " + w.Symbol)
	}
	r.workers[w.Symbol] = w
	return nil
}

// Get returns the worker of symbol, an unknown symbol is rejected input
func (r *Registry) Get(symbol string) (*ome.Worker, error) {
	s, _, _, err := ome.ParseSymbol(symbol)
	if err != nil {
		return nil, ome.Reject(ome.ReasonUnknownInstrument)
	}

	r.mu.RLock()
	w, ok := r.workers[s]
	r.mu.RUnlock()
	if !ok {
		return nil, ome.Reject(ome.ReasonUnknownInstrument)
	}
	return w, nil
}

// Symbols returns the registered symbols in order
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ss := make([]string, 0, len(r.workers))
	for s := range r.workers {
		ss = append(ss, s)
	}
	sort.Strings(ss)
	return ss
}

// Run runs every worker until ctx is done. A worker that stops with an error
// does not stop the others; the first such error is returned.
func (r *Registry) Run(ctx context.Context) (err error) {
	r.mu.RLock()
	workers := make([]*ome.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.RUnlock()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
	)
	for _, w := range workers {
		wg.Add(1)
		go func(w *ome.Worker) {
			defer wg.Done()
			werr := w.Run(ctx)
			if werr == nil || errors.Is(werr, context.Canceled) {
				return
			}
			logger.Errorf("registry %s stopped with err:%s", w.Name, werr)
			errMu.Lock()
			if err == nil {
				err = werr
			}
			errMu.Unlock()
		}(w)
	}
	wg.Wait()

	return
}

func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.workers {
		w.Close()
	}
}

func (r *Registry) Submit(ctx context.Context, symbol string, req xnats.SubmitReq) (res ome.Result, err error) {
	w, err := r.Get(symbol)
	if err != nil {
		return
	}
	return w.Submit(ctx, req)
}

func (r *Registry) Cancel(ctx context.Context, symbol string, orderID int64) (found bool, err error) {
	w, err := r.Get(symbol)
	if err != nil {
		return
	}
	return w.Cancel(ctx, orderID)
}

func (r *Registry) Depth(symbol string, maxLevels int) (snap ome.DepthSnapshot, err error) {
	w, err := r.Get(symbol)
	if err != nil {
		return
	}
	return w.Depth(maxLevels), nil
}

func (r *Registry) TradesSince(symbol string, seq int64) (trades []ledger.Trade, err error) {
	w, err := r.Get(symbol)
	if err != nil {
		return
	}
	return w.TradesSince(seq), nil
}
