// Package zaplogger adapts a *zap.Logger to eventcore.Logger, as an
// alternate backend for the pluggable Logger interface.
package zaplogger

import "go.uber.org/zap"

// ZapLogger implements eventcore.Logger on top of go.uber.org/zap.
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// New wraps an existing *zap.Logger. A nil logger falls back to
// zap.NewNop().
func New(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Sugar()}
}

func (z *ZapLogger) Info(msg string, args ...any)  { z.logger.Infow(msg, args...) }
func (z *ZapLogger) Error(msg string, args ...any) { z.logger.Errorw(msg, args...) }
func (z *ZapLogger) Warn(msg string, args ...any)  { z.logger.Warnw(msg, args...) }
func (z *ZapLogger) Debug(msg string, args ...any) { z.logger.Debugw(msg, args...) }
