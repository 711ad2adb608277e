package model

import (
	"context"
	"fmt"
	"time"

	"clob/pkg/config"
	"clob/pkg/model/xgorm"
	"clob/pkg/xlog"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var (
	db     *gorm.DB
	rds    *redis.Client
	logger = xlog.GetLogger()

	dbSlience *gorm.DB
)

// DBInit opens the enabled databases of config.Shared
func DBInit() (err error) {
	if config.Shared.MySQL.Main.Enabled {
		db, err = OpenMySQLRaw("main", config.Shared.MySQL.Main, config.Shared.IsDebug)
		if err != nil {
			return
		}
		dbSlience, err = OpenMySQLRaw("slience", config.Shared.MySQL.Main, false)
		if err != nil {
			return
		}
	}
	if config.Shared.Redis.Main.Enabled {
		rds, err = OpenRedis("main", config.Shared.Redis.Main)
		if err != nil {
			return
		}
	}
	return
}

// GormConfig the gorm config shared by every connection, sql logs go through xlog
func GormConfig(debug bool) *gorm.Config {
	logMode := gormLogger.Info
	if !debug {
		logMode = gormLogger.Silent
	}
	return &gorm.Config{
		AllowGlobalUpdate:      true,
		SkipDefaultTransaction: false,
		Logger: xgorm.New(xgorm.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logMode,     // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
		}),
	}
}

func OpenMySQLRaw(name string, cfg config.MySQLServer, debug bool) (db *gorm.DB, err error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("empty db host for %s", name)
	}

	logger.Infof("mysql(%s) connecting tcp(%s:%d)/%s",
		name, cfg.Host, cfg.Port, cfg.DB,
	)

	url := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.DB,
	)

	db, err = gorm.Open(mysql.Open(url), GormConfig(debug))
	if err != nil {
		logger.Errorf("connect mysql(%s) failed #1, err:%s", name, err)
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Errorf("connect mysql(%s) failed #2, err:%s", name, err)
		return
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(10 * time.Hour)
	sqlDB.SetMaxIdleConns(20)

	logger.Infof("mysql(%s) connected tcp(%s:%d)/%s",
		name, cfg.Host, cfg.Port, cfg.DB,
	)

	return
}

func OpenRedis(name string, cfg config.RedisServer) (rc *redis.Client, err error) {
	logger.Infof("redis(%s) connecting %s[%d]", name, cfg.Addr, cfg.DB)

	opts := redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Pass,
		DB:       cfg.DB,
	}

	rc = redis.NewClient(&opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = rc.Ping(ctx).Err()
	if err != nil {
		logger.Errorf("redis(%s) connect failed, err:%s", name, err)
		rc.Close()
		return nil, err
	}

	logger.Infof("redis(%s) connected %s[%d]", name, cfg.Addr, cfg.DB)

	return
}

func GetRedis() *redis.Client {
	return rds
}

func GetMySQL() *gorm.DB {
	return db
}

// GetMySQLSlience this instance reduces sql statement output
func GetMySQLSlience() *gorm.DB {
	return dbSlience
}
