package infra

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger собирает zap: json - продовый конфиг, console - отладочный.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	var zc zap.Config
	switch cfg.Format {
	case "", "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("logger.format: unsupported value %q", cfg.Format)
	}

	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logger.level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}
