package xlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	colorReset   = "\033[0m"
	colorTrace   = "\033[0;36m"
	colorWarning = "\033[1;33m"
	colorError   = "\033[1;31m"
)

func levelColor(level string) (string, string) {
	switch level {
	case "debug":
		return colorTrace, colorReset
	case "warn":
		return colorWarning, colorReset
	case "error", "dpanic", "panic", "fatal":
		return colorError, colorReset
	default:
		return "", ""
	}
}

// consoleWriter turns zap JSON entries back into one readable line each
type consoleWriter struct {
	out   io.Writer
	color bool
}

func newConsoleWriter(color bool) *consoleWriter {
	return &consoleWriter{out: os.Stdout, color: color}
}

func (c *consoleWriter) Write(p []byte) (n int, err error) {
	entry := map[string]interface{}{}
	if err = json.Unmarshal(p, &entry); err != nil {
		return c.out.Write(p)
	}

	level, _ := entry["level"].(string)
	pre, sub := "", ""
	if c.color {
		pre, sub = levelColor(level)
	}

	ts, _ := entry["time"].(string)
	if t, err := time.Parse(timeLayout, ts); err == nil {
		ts = t.Format("2006/01/02 15:04:05")
	}

	file, _ := entry["file"].(string)
	if len(file) < 24 {
		file += strings.Repeat(" ", 24-len(file))
	} else if len(file) > 24 {
		file = file[len(file)-24:]
	}

	_, err = fmt.Fprintf(c.out, "%s[%s] %s %s: %s%s\n", pre, entry["app"], ts, file, entry["msg"], sub)
	return len(p), err
}
