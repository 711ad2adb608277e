// Package xgorm is a gorm logger that writes through xlog.
package xgorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clob/pkg/xlog"

	gl "gorm.io/gorm/logger"
)

var ErrRecordNotFound = gl.ErrRecordNotFound

const (
	Silent = gl.Silent
	Error  = gl.Error
	Warn   = gl.Warn
	Info   = gl.Info
)

type LogLevel = gl.LogLevel

type Config = gl.Config

// Interface logger interface
type Interface = gl.Interface

var (
	Discard = New(Config{LogLevel: Silent})
	Default = New(Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  Warn,
		IgnoreRecordNotFoundError: false,
	})

	zapLogger = xlog.GetLogger()
)

func New(config Config) Interface {
	return &logger{Config: config}
}

type logger struct {
	Config
}

// LogMode log mode
func (l *logger) LogMode(level LogLevel) Interface {
	newlogger := *l
	newlogger.LogLevel = level
	return &newlogger
}

// Info print info
func (l logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		zapLogger.Infof("[gorm] "+msg, data...)
	}
}

// Warn print warn messages
func (l logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		zapLogger.Warningf("[gorm] "+msg, data...)
	}
}

// Error print error messages
func (l logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		zapLogger.Errorf("[gorm] "+msg, data...)
	}
}

// Trace print sql message
func (l logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= Silent {
		return
	}

	elapsed := time.Since(begin)
	ms := float64(elapsed.Nanoseconds()) / 1e6
	switch {
	case err != nil && l.LogLevel >= Error && (!errors.Is(err, ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		sql, rows := fc()
		zapLogger.Errorf("[gorm] %s [%.3fms] [rows:%s] %s", err, ms, rowsString(rows), sql)
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= Warn:
		sql, rows := fc()
		zapLogger.Warningf("[gorm] SLOW SQL >= %v [%.3fms] [rows:%s] %s", l.SlowThreshold, ms, rowsString(rows), sql)
	case l.LogLevel == Info:
		sql, rows := fc()
		zapLogger.Debugf("[gorm] [%.3fms] [rows:%s] %s", ms, rowsString(rows), sql)
	}
}

func rowsString(rows int64) string {
	if rows == -1 {
		return "-"
	}
	return fmt.Sprint(rows)
}
