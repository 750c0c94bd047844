// Package logging собирает zap-логгер по уровню из конфигурации.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New создаёт production-логгер с указанным уровнем (debug, info, warn, error).
// Для уровня debug используется человекочитаемый development-формат.
// Дополнительные ядра (например, экспорт в OTLP) получают те же записи с тем же уровнем.
func New(level string, sinks ...zapcore.Core) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	cores := make([]zapcore.Core, 0, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		// Ядро, которое само отсекает часть уровней, подключается как есть.
		if leveled, err := zapcore.NewIncreaseLevelCore(sink, lvl); err == nil {
			sink = leveled
		}
		cores = append(cores, sink)
	}
	if len(cores) == 0 {
		return logger, nil
	}

	return logger.WithOptions(zap.WrapCore(func(local zapcore.Core) zapcore.Core {
		return zapcore.NewTee(append([]zapcore.Core{local}, cores...)...)
	})), nil
}
