// Package log builds the *zap.Logger used across this module, the way the
// teacher library threads a *zap.Logger through its Server/Session types,
// generalised into a constructor so callers can point it at a rotating log
// file instead of only the console.
package log

import (
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileConfig configures rotation when logging to a file. Its fields mirror
// natefinch/lumberjack.Logger directly.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a development-style console logger, or, when file is non-nil,
// a logger that writes JSON lines through a rotating lumberjack.Logger.
func New(file *FileConfig) (*zap.Logger, error) {
	if file == nil {
		return zap.NewDevelopment()
	}

	rotator := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    orDefault(file.MaxSizeMB, 100),
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   file.Compress,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(rotator),
		zap.InfoLevel,
	)
	return zap.New(core), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
