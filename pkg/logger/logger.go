package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool
}

// NewLogger builds the zap logger shared by every component. Debug switches to
// the human readable development encoder at debug level.
func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	mergedOptions := append([]zap.Option{zap.WithCaller(true)}, options...)

	var c zap.Config
	if cfg != nil && cfg.Debug {
		c = zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		c = zap.NewProductionConfig()
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return c.Build(mergedOptions...)
}
