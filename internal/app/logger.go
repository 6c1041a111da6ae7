package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always emits JSON so the
// log shipper can parse it; development defaults to text with source
// locations unless LOG_FORMAT forces JSON.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg.IsProduction() || (cfg != nil && cfg.LogFormat == "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	return slog.New(handler).With(slog.String("service", "fims"))
}
