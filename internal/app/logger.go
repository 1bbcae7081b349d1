package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
)

// NewLogger builds the service logger from cfg.Log.
func NewLogger(cfg *config.Config) (logx.Logger, error) {
	return newLoggerTo(cfg, os.Stdout)
}

func newLoggerTo(cfg *config.Config, out io.Writer) (logx.Logger, error) {
	level, err := logx.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	switch cfg.Log.Backend {
	case config.LogBackendZap:
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "time"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(out), level.Zap())
		return logx.NewZapAdapter(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))), nil
	case config.LogBackendSlog, "":
		base := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level.Slog()}))
		return logx.NewSlogAdapter(base), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Log.Backend)
	}
}
