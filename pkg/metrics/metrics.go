// Package metrics exposes prometheus metrics of the matching engines.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"clob/pkg/book"
	"clob/pkg/event"
	"clob/pkg/ledger"
	"clob/pkg/xlog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	once     sync.Once
	logger   = xlog.GetLogger()

	ordersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ome_orders_submitted_total",
		Help: "Orders admitted by the engine.",
	}, []string{"symbol", "kind"})
	ordersRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ome_orders_rejected_total",
		Help: "Orders rejected before admission.",
	}, []string{"symbol", "reason"})
	ordersCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ome_orders_cancelled_total",
		Help: "Orders cancelled by owners or for lack of liquidity.",
	}, []string{"symbol"})
	trades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ome_trades_total",
		Help: "Trades executed.",
	}, []string{"symbol"})
	tradedQuantity = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ome_traded_quantity_total",
		Help: "Base quantity traded.",
	}, []string{"symbol"})
	bookLevels = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ome_book_levels",
		Help: "Price levels resting on each side of the book.",
	}, []string{"symbol", "side"})
	submitLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ome_submit_latency_seconds",
		Help:    "Time to journal and execute one command.",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"symbol"})
	halted = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ome_halted",
		Help: "1 when the engine stopped on an invariant violation.",
	}, []string{"symbol"})
)

// Init registers metrics with the registry once
func Init() {
	once.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			ordersSubmitted,
			ordersRejected,
			ordersCancelled,
			trades,
			tradedQuantity,
			bookLevels,
			submitLatency,
			halted,
		)
	})
}

// Registry returns the registry holding every ome metric
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// Handler exposes the prometheus metrics endpoint handler
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Serve blocks serving /metrics on addr
func Serve(addr string) (err error) {
	logger.Infof("metrics listening on %s", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	err = srv.ListenAndServe()
	if err != nil {
		logger.Errorf("metrics server on %s failed with err:%s", addr, err)
	}
	return
}

func ObserveSubmit(symbol string, d time.Duration) {
	Init()
	submitLatency.WithLabelValues(symbol).Observe(d.Seconds())
}

func IncRejected(symbol, reason string) {
	Init()
	ordersRejected.WithLabelValues(symbol, reason).Inc()
}

// SetBookLevels sets the number of price levels resting on each side
func SetBookLevels(symbol string, bids, asks int) {
	Init()
	bookLevels.WithLabelValues(symbol, book.SideBuy.String()).Set(float64(bids))
	bookLevels.WithLabelValues(symbol, book.SideSell.String()).Set(float64(asks))
}

func SetHalted(symbol string, on bool) {
	Init()
	v := 0.0
	if on {
		v = 1
	}
	halted.WithLabelValues(symbol).Set(v)
}

// Publisher turns book events into metrics
type Publisher struct{}

func (Publisher) OnOrderAccepted(v event.OrderAccepted) {
	Init()
	ordersSubmitted.WithLabelValues(v.Symbol, v.Kind.String()).Inc()
}

func (Publisher) OnTrade(v ledger.Trade) {
	Init()
	trades.WithLabelValues(v.Symbol).Inc()
	tradedQuantity.WithLabelValues(v.Symbol).Add(v.Quantity.InexactFloat64())
}

func (Publisher) OnOrderCancelled(v event.OrderCancelled) {
	Init()
	ordersCancelled.WithLabelValues(v.Symbol).Inc()
}

// OnDepthChanged depth events are capped, the worker sets book levels itself
func (Publisher) OnDepthChanged(event.DepthChanged) {}
