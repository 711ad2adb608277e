package xlog

import (
	"fmt"
	"path"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Zap is replaced by Init, the example logger serves tests and early startup
var Zap = zap.NewExample()

// Options of the process logger
type Options struct {
	Name    string // app name, added to every entry
	LogPath string // rotated json log file
	Color   bool   // colorize console output
	Debug   bool   // allow debug entries through zap
	Quiet   bool   // no console output
}

// Init builds the process logger: json lines into a rotated file plus a console copy
func Init(opts Options) {
	if opts.Name == "" {
		opts.Name = "x"
	}
	if opts.LogPath == "" {
		opts.LogPath = path.Join("logs", opts.Name+".log")
	}

	Zap = NewZap(opts)
	Zap.Info("zap init succeed", FileField())
}

func NewZap(opts Options) *zap.Logger {
	rotate := &lumberjack.Logger{
		Filename:   opts.LogPath,
		MaxSize:    128, // MB
		MaxAge:     30,  // days
		MaxBackups: 30,
		Compress:   false,
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	writes := []zapcore.WriteSyncer{zapcore.AddSync(rotate)}
	if !opts.Quiet {
		writes = append(writes, zapcore.AddSync(newConsoleWriter(opts.Color)))
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Debug {
		level.SetLevel(zap.DebugLevel)
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(writes...),
		level,
	)

	return zap.New(core, zap.Fields(zap.String("app", opts.Name)))
}

func FileField() zap.Field {
	return zap.String("file", FileWithLineNum())
}

var skipFiles = []string{
	"/pkg/xlog/",
	"/pkg/model/xgorm/",
	"gorm.io/gorm",
}

// FileWithLineNum returns dir/file.go:line of the first caller outside the logging code
func FileWithLineNum() string {
	var (
		file string
		line int
	)

	for i := 1; i < 15; i++ {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		skip := false
		for _, s := range skipFiles {
			if strings.Contains(f, s) {
				skip = true
				break
			}
		}
		if !skip {
			file, line = f, l
			break
		}
	}

	ss := strings.Split(file, "/")
	if len(ss) >= 2 {
		return fmt.Sprintf("%s/%s:%d", ss[len(ss)-2], ss[len(ss)-1], line)
	}
	return fmt.Sprintf("%s:%d", file, line)
}
