// Package xlog is a leveled printf-style logger on top of zap.
//
// Every package keeps its own `var logger = xlog.GetLogger()`. The level is read
// from XLOG_LVL and may be changed at runtime with SetLevel.
package xlog

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

const (
	TRACE = iota
	DEBUG
	INFO
	WARNING
	ERROR
	FATAL
)

var levelNames = []string{"TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "FATAL"}

type Logger struct {
	level atomic.Int32
}

var _logger = newLogger()

func newLogger() *Logger {
	lvl := strings.ToUpper(os.Getenv("XLOG_LVL"))
	l := &Logger{}
	l.level.Store(int32(ParseLevel(lvl, INFO)))
	return l
}

// GetLogger returns the process wide logger
func GetLogger() *Logger {
	return _logger
}

// ParseLevel accepts full names and the 1/3 letter short forms, def otherwise
func ParseLevel(s string, def int) int {
	switch strings.ToUpper(s) {
	case "T", "TRC", "TRACE":
		return TRACE
	case "D", "DBG", "DEBUG":
		return DEBUG
	case "I", "INF", "INFO":
		return INFO
	case "W", "WRN", "WARN", "WARNING":
		return WARNING
	case "E", "ERR", "ERROR":
		return ERROR
	case "F", "FTL", "FATAL":
		return FATAL
	}
	return def
}

func (s *Logger) SetLevel(level string) {
	n := ParseLevel(level, -1)
	if n < 0 {
		s.Warningf("set xlog level to %s failed", level)
		return
	}
	s.level.Store(int32(n))
	s.Infof("set xlog level to %s", levelNames[n])
}

func (s *Logger) GetLevel() int {
	return int(s.level.Load())
}

func (s *Logger) enabled(level int) bool {
	return level >= s.GetLevel()
}

func (s *Logger) Trace(args ...interface{}) {
	if s.enabled(TRACE) {
		Zap.Debug("[TRC] "+fmt.Sprint(args...), FileField())
	}
}

func (s *Logger) Tracef(format string, args ...interface{}) {
	if s.enabled(TRACE) {
		Zap.Debug("[TRC] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Debug(args ...interface{}) {
	if s.enabled(DEBUG) {
		Zap.Debug("[DBG] "+fmt.Sprint(args...), FileField())
	}
}

func (s *Logger) Debugf(format string, args ...interface{}) {
	if s.enabled(DEBUG) {
		Zap.Debug("[DBG] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Info(args ...interface{}) {
	if s.enabled(INFO) {
		Zap.Info("[INF] "+fmt.Sprint(args...), FileField())
	}
}

func (s *Logger) Infof(format string, args ...interface{}) {
	if s.enabled(INFO) {
		Zap.Info("[INF] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Warning(args ...interface{}) {
	if s.enabled(WARNING) {
		Zap.Warn("[WRN] "+fmt.Sprint(args...), FileField())
	}
}

func (s *Logger) Warningf(format string, args ...interface{}) {
	if s.enabled(WARNING) {
		Zap.Warn("[WRN] "+fmt.Sprintf(format, args...), FileField())
	}
}

func (s *Logger) Error(args ...interface{}) {
	if s.enabled(ERROR) {
		Zap.Error("[ERR] "+fmt.Sprint(args...), FileField())
	}
}

func (s *Logger) Errorf(format string, args ...interface{}) {
	if s.enabled(ERROR) {
		Zap.Error("[ERR] "+fmt.Sprintf(format, args...), FileField())
	}
}

// Fatal logs and exits the process
func (s *Logger) Fatal(args ...interface{}) {
	Zap.Error("[FTL] "+fmt.Sprint(args...), FileField())
	_ = Zap.Sync()
	os.Exit(1)
}

func (s *Logger) Fatalf(format string, args ...interface{}) {
	Zap.Error("[FTL] "+fmt.Sprintf(format, args...), FileField())
	_ = Zap.Sync()
	os.Exit(1)
}

// Write lets the logger back a standard library *log.Logger
func (s *Logger) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.enabled(INFO) {
		Zap.Info(strings.TrimRight(string(p), "\n"), FileField())
	}
	return len(p), nil
}
