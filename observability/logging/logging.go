// Package logging configures structured JSON logging for the engine's
// process entrypoint, adapted from the teacher's observability/logging
// package (nhbchain): one slog.Logger per process, attributes for service
// name and deployment environment, with the standard library logger bridged
// through so packages still using log.Printf keep working. On top of the
// process-level logger it adds the scoped-attribute helpers the engine's
// components actually call at their log sites — per-component, per-account,
// and per-transaction loggers — generalizing the one-off
// logger.With(slog.String("component", ...)) call the teacher makes inline
// at cmd/p2pd/main.go into something every engine component reuses.
package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup configures the standard library logger to emit structured JSON and
// returns the underlying slog.Logger for richer logging within the engine.
// All log lines include the service name and environment when provided.
func Setup(service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				level := strings.ToUpper(attr.Value.String())
				return slog.String("severity", level)
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

// WithComponent scopes a logger to one of the engine's internal components
// (driver, reconciler, gateway adapter), the way cmd/p2pd scopes its relay
// logger before handing it to network.WithRelayLogger.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithAccount scopes a logger to a submitter account, one of the attributes
// promised for the engine's log lines alongside the transaction id.
func WithAccount(logger *slog.Logger, address string) *slog.Logger {
	return logger.With(slog.String("account", address))
}

// WithTx scopes a logger to a single transaction id, so every log line
// about one submission — rejected, confirmed, failed on-chain, retried —
// carries the same attribute without each call site building it by hand.
func WithTx(logger *slog.Logger, txID string) *slog.Logger {
	return logger.With(slog.String("tx_id", txID))
}
