// Package logger builds the process logger: a zap SugaredLogger writing JSON
// to a lumberjack-rotated file when a log directory is configured, teed with a
// console core on stdout.
package logger

import (
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a *zap.SugaredLogger and installs it as the zap global.
// An empty logDir disables the file sink.
func New(logDir string, production bool) (*zap.SugaredLogger, error) {
	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	level := zap.DebugLevel
	if production {
		level = zap.InfoLevel
	}

	var cores []zapcore.Core
	var errOut zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, err
		}
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, "portal.log"),
			MaxSize:    50, // MB
			MaxBackups: 7,
			MaxAge:     14, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileSink, level))
		errOut = fileSink
	}

	consoleEnc := zapcore.NewConsoleEncoder(encCfg)
	if production {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	}
	cores = append(cores, zapcore.NewCore(consoleEnc, zapcore.AddSync(os.Stdout), level))

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(errOut),
	).Sugar()

	zap.ReplaceGlobals(z.Desugar())
	return z, nil
}
