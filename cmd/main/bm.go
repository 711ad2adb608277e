package main

import (
	"context"
	"os"
	"strings"

	"clob/pkg/config"
	"clob/pkg/model"
	"clob/pkg/xetcd"
)

// PrepareForBenchmark prepare mysql, nats, etcd for benchmark with docker compose
func PrepareForBenchmark(ctx context.Context) (err error) {
	cfg := config.Shared
	syms := symbols()

	defer func() {
		if err != nil {
			logger.Errorf("bm prepare failed with err:%s", err)
		}
	}()

	// 0. Check if prepared

	filePath := "/tmp/clob_bm_prepared_flag"

	_, err = os.Stat(filePath)
	if err == nil || !os.IsNotExist(err) {
		// already prepared, just wait
		<-ctx.Done()
		return nil
	}

	// 1. Prepare database

	if cfg.MySQL.Main.Enabled {
		db := model.GetMySQL()

		tables := []interface{}{"lastkvs"}
		for _, s := range syms {
			tables = append(tables, strings.ToLower(s+"_orders"), strings.ToLower(s+"_trades"))
		}
		err = db.Migrator().DropTable(tables...)
		if err != nil {
			return
		}

		err = model.Migrate(db, syms...)
		if err != nil {
			return
		}
		logger.Infof("bm mysql tables created for %s", strings.Join(syms, ","))
	}

	// 2. Prepare nats

	if cfg.Nats.Main.Enabled {
		nc, _, err := connectNats()
		if err != nil {
			return err
		}
		nc.Close()
		logger.Infof("bm nats streams ready")

		// 3. Prepare etcd

		if xetcd.Shared != nil {
			err = xetcd.Put(xetcd.KeyNatsService(), cfg.Nats.Main.Url)
			if err != nil {
				return err
			}
		}
	}

	// 4. Create flag file -- set prepared

	f, err := os.Create(filePath)
	if err != nil {
		return
	}
	f.Close()

	logger.Infof("bm prepared")
	<-ctx.Done()
	return nil
}
