// Package logging builds the process-wide zap logger.
package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB  = 50
	maxFileBackups = 5
	maxFileAgeDays = 14
)

// New returns a logger at level. With an empty file it logs to stderr,
// using zap's development config for debug and the production config otherwise.
// With a file it writes JSON lines rotated by size. closeFn flushes and releases the file.
func New(level, file string) (logger *zap.Logger, closeFn func() error, err error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse log level")
	}

	if file == "" {
		if lvl == zapcore.DebugLevel {
			logger, err = zap.NewDevelopment()
		} else {
			zc := zap.NewProductionConfig()
			zc.Level = zap.NewAtomicLevelAt(lvl)
			logger, err = zc.Build()
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "build logger")
		}
		return logger, func() error { _ = logger.Sync(); return nil }, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxFileBackups,
		MaxAge:     maxFileAgeDays,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotator),
		lvl,
	)
	logger = zap.New(core, zap.AddCaller())
	return logger, func() error {
		_ = logger.Sync()
		return rotator.Close()
	}, nil
}
