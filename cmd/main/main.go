package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"clob/pkg/book"
	"clob/pkg/config"
	"clob/pkg/event"
	"clob/pkg/filedb"
	"clob/pkg/info"
	"clob/pkg/ingress"
	"clob/pkg/metrics"
	"clob/pkg/model"
	"clob/pkg/ome"
	"clob/pkg/registry"
	"clob/pkg/xetcd"
	"clob/pkg/xgrpc"
	"clob/pkg/xlog"
	"clob/pkg/xnats"

	"github.com/nats-io/nats.go"
)

var logger = xlog.GetLogger()

var (
	fApp     string
	fSymbol  string
	fLogDir  string
	fLogFile string
	fTotal   int64
	fConc    int
)

var (
	apps = map[string]bool{"ingress": true, "ome": true, "replay": true, "bm": true, "fm": true}
)

func init() {
	flag.StringVar(&fApp, "app", "", "")
	flag.StringVar(&fSymbol, "symbol", "", "")
	flag.StringVar(&fLogDir, "logdir", "", "")
	flag.StringVar(&fLogFile, "logfile", "", "")
	flag.Int64Var(&fTotal, "n", 1_000_000, "commands sent by ingress")
	flag.IntVar(&fConc, "c", 16, "concurrent senders of ingress")
}

func main() {
	var err error
	flag.Parse()

	if !apps[fApp] {
		validApps := make([]string, 0, len(apps))
		for k := range apps {
			validApps = append(validApps, k)
		}
		sort.Strings(validApps)
		panic("invalid app, only (" + strings.Join(validApps, ", ") + ") avaliable")
	}

	// Initialize the Shared config
	config.EasyInit()
	cfg := config.Shared

	// Initialize the logger
	if fLogDir == "" {
		fLogDir = filepath.Join(cfg.DataDir, "logs")
	}
	if fLogFile == "" {
		fLogFile = fApp + ".log"
	}
	logPath := filepath.Join(fLogDir, fLogFile)
	xlog.Init(xlog.Options{Name: fApp, LogPath: logPath, Color: cfg.Env.XlogColor, Debug: cfg.IsDebug})
	logger.Info(fApp + " started " + info.String())
	logger.Infof("xlog in %s", logPath)

	// Handle signals
	go handleSignals()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the etcd instance
	if cfg.Etcd.Main.Enabled {
		err = xetcd.InitShared([]string{cfg.Etcd.Main.Url})
		if err != nil {
			logger.Errorf("xetcd.InitShared failed with err:%s", err)
			panic(err)
		}
	}

	// Initialize the database instances(mysql, redis)
	err = model.DBInit()
	if err != nil {
		logger.Errorf("model.DBInit failed with err:%s", err)
		panic(err)
	}

	// Start the app
	switch fApp {
	case "ingress":
		err = startIngress(ctx)
	case "ome":
		err = startOme(ctx)
	case "replay":
		err = startReplay()
	case "bm":
		err = PrepareForBenchmark(ctx)
	case "fm":
		err = startFiledbMonitor(ctx)
	default:
		return
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err)
		panic(err)
	}
}

// handleSignals handles linux signals
//
//	Function 1: Change log level via SIGUSR1 signal
//		docker exec <container_id> sh -c 'export XLOG_LVL=TRACE && kill -SIGUSR1 1'
func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)

	for sig := range sigChan {
		if sig != syscall.SIGUSR1 {
			continue
		}
		// Read log level from environment variable
		level := os.Getenv("XLOG_LVL")
		if level != "" {
			logger.SetLevel(level)
			logger.Infof("Log level set to %s via signal", level)
		}
	}
}

// symbols of this process, -symbol overrides engine.symbols
func symbols() []string {
	if fSymbol != "" {
		return []string{strings.ToUpper(fSymbol)}
	}
	return config.Shared.Engine.Symbols
}

// connectNats connects to nats.main, or to the address registered in etcd when no url is configured
func connectNats() (nc *nats.Conn, js nats.JetStreamContext, err error) {
	url := config.Shared.Nats.Main.Url
	if url == "" && xetcd.Shared != nil {
		url, err = xetcd.Get(xetcd.KeyNatsService())
		if err != nil {
			return
		}
	}
	if url == "" {
		err = errors.New("empty nats url")
		return
	}

	for i := 0; i < 100; i++ {
		nc, js, err = xnats.Connect(url)
		if err == nil {
			break
		}
		logger.Errorf("nats connect %s failed with err:%s", url, err)
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		return
	}

	err = xnats.EnsureStreams(js)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return
}

// startOme starts the matching engines of this process
//
//	a. one worker per symbol, registered by symbol
//	b. events fan out to the log, nats and redis (each optional)
//	c. grpc server for submit/cancel/depth/trades, registered in etcd
//	d. prometheus metrics
func startOme(ctx context.Context) (err error) {
	cfg := config.Shared
	syms := symbols()

	metrics.Init()
	if cfg.Metrics.Addr != "" {
		go metrics.Serve(cfg.Metrics.Addr)
	}

	var (
		nc *nats.Conn
		js nats.JetStreamContext
	)
	pubs := event.Multi{event.Log{}}
	asyncs := []*event.Async{}
	defer func() {
		closeEvents(asyncs, func() {
			if nc != nil {
				nc.Close()
			}
		})
	}()

	if cfg.Nats.Main.Enabled {
		nc, js, err = connectNats()
		if err != nil {
			return
		}
		a := event.NewAsync(&event.Nats{JS: js, Instance: info.InstanceID}, cfg.Engine.EventQueue)
		asyncs = append(asyncs, a)
		pubs = append(pubs, a)
	}
	if cfg.Redis.Main.Enabled {
		a := event.NewAsync(&event.Redis{Rds: model.GetRedis(), Timeout: cfg.RedisTimeout()}, cfg.Engine.EventQueue)
		asyncs = append(asyncs, a)
		pubs = append(pubs, a)
	}

	reg, err := registry.Open(syms, ome.Options{
		DataDir:   cfg.DataDir,
		QueueSize: cfg.Engine.QueueSize,
		Publisher: pubs,
		Engine: []ome.Option{
			ome.WithDepthLevels(cfg.Engine.DepthLevels),
			ome.WithDepthEvents(cfg.Engine.PublishDepth),
		},
	})
	if err != nil {
		return
	}

	persist := cfg.Engine.Persist && cfg.MySQL.Main.Enabled
	if persist {
		err = model.Migrate(model.GetMySQLSlience(), syms...)
		if err != nil {
			return
		}
	}
	for _, s := range reg.Symbols() {
		w, _ := reg.Get(s)
		w.JS = js
		if persist {
			w.DB = model.GetMySQLSlience()
		}
	}

	if cfg.Grpc.Addr != "" {
		go xgrpc.Serve(ctx, cfg.Grpc.Addr, reg)

		if xetcd.Shared != nil {
			si := xetcd.ServiceInfo{Addr: cfg.Grpc.Advertise, Instance: info.InstanceID, Version: info.Version}
			for _, s := range reg.Symbols() {
				go xetcd.Shared.StartRegister(ctx, xetcd.KeyOmeService(s), si, cfg.Etcd.Main.TTL)
			}
		}
	}

	return reg.Run(ctx)
}

// closeEvents delivers the queued events, then closes the connections they go to
func closeEvents(asyncs []*event.Async, conns ...func()) {
	for _, a := range asyncs {
		a.Close()
	}
	for _, c := range conns {
		c()
	}
}

// startIngress starts the ingress app
//
//	Function 1: Generate orders and send to Nats
//	Function 2: Benchmark the ingress app
func startIngress(ctx context.Context) (err error) {
	nc, js, err := connectNats()
	if err != nil {
		return
	}
	defer nc.Close()

	symbol := "BTC_USDT"
	if ss := symbols(); len(ss) > 0 {
		symbol = ss[0]
	}

	ing := ingress.New(js, symbol, ingress.DefaultFlow(), time.Now().UnixNano())
	st := ing.Run(ctx, fTotal, fConc)

	// Benchmark result
	fmt.Printf(
		"Benchmark: Ingress sent %d commands to NATS in %s at %s with rate %d/sec\n",
		st.Sent, st.Elapsed, time.Now().Format(time.RFC3339), st.Rate(),
	)

	return
}

// startReplay rebuilds a symbol from its journal and prints the result
func startReplay() (err error) {
	if fSymbol == "" {
		return errors.New("empty symbol")
	}
	symbol, _, _, err := ome.ParseSymbol(fSymbol)
	if err != nil {
		return
	}

	p := path.Join(config.Shared.DataDir, "filedb", "ome_"+strings.ToLower(symbol)+".log")
	start := time.Now()
	e, st, err := ome.Replay(symbol, p)
	if err != nil {
		return
	}

	levels := config.Shared.Engine.DepthLevels
	if levels <= 0 {
		levels = book.AllLevels
	}
	b, err := json.MarshalIndent(e.Snapshot(levels), "", "  ")
	if err != nil {
		return
	}
	fmt.Printf("Replay: %s commands:%d results:%d logID:%d natsSeq:%d trades:%d in %s\n%s\n",
		p, st.Commands, st.Results, st.LastLogID, st.LastSeq, len(e.TradesSince(0)), time.Since(start), b)

	return e.Audit()
}

// startFiledbMonitor starts the filedb monitor app
//
//	Function 1: Monitor the filedb log files and print the benchmark result every 30 seconds
func startFiledbMonitor(ctx context.Context) (err error) {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Second):
		}
		err = runFiledbMonitorOne()
		if err != nil {
			logger.Errorf("runFiledbMonitorOne failed with err:%s", err)
		}
	}
}

// runFiledbMonitorOne runs the filedb monitor one time
//
//	Function 1: Traverse all files ending with .log,
//		read the first and last line of each file,
//		each line should be a json object,
//		parse out {ts: nanosec, logID: int64} values,
//		calculate the time difference and logID difference, and output
func runFiledbMonitorOne() (err error) {
	filedbLogDir := path.Join(config.Shared.DataDir, "filedb")

	return filepath.Walk(filedbLogDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ".log") {
			return nil
		}

		fdb, err := filedb.New(path)
		if err != nil {
			return err
		}
		defer fdb.Close()

		firstLine, err := fdb.ReadFirstLine()
		if err != nil {
			return err
		}
		lastLine, err := fdb.ReadLastLine()
		if err != nil {
			return err
		}

		var firstLog, lastLog ome.OmeLog
		if err := json.Unmarshal([]byte(firstLine), &firstLog); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(lastLine), &lastLog); err != nil {
			return err
		}

		logIDDiff := lastLog.LogID - firstLog.LogID
		duration := time.Duration(lastLog.Ts - firstLog.Ts)
		lastLogTime := time.Unix(0, lastLog.Ts)

		rate := int64(0)
		if int64(duration.Seconds()) > 0 {
			rate = logIDDiff / int64(duration.Seconds())
		}
		fmt.Printf(
			"Benchmark: %s saved %d logs to filedb in %s at %s with rate %d/sec\n",
			path, logIDDiff, duration, lastLogTime.Format(time.RFC3339), rate,
		)
		return nil
	})
}
