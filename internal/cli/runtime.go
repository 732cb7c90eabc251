package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// LogLevel is mutated at runtime by the SCOPETEST_LOG environment variable,
// per spec.md §6. Held at package scope so every subcommand's logger, not
// just the one built at startup, honors the same level.
var LogLevel = new(slog.LevelVar)

// Logger is the process-wide diagnostic logger, built once in
// App.Initialize and shared by every command and by pkg/watch.
var Logger *slog.Logger

// RootContext is cancelled on SIGINT/SIGTERM so a command mid-scan can
// finish its current stage (cache write included) instead of leaving a
// half-written cache file behind.
var RootContext context.Context

// rootCancel stops the signal notification set up in Initialize.
var rootCancel context.CancelFunc

// initLogging parses SCOPETEST_LOG into LogLevel and builds Logger on
// stderr, matching the gorefactor LSP server's slog.NewTextHandler use.
func initLogging() {
	if err := LogLevel.UnmarshalText([]byte(os.Getenv("SCOPETEST_LOG"))); err != nil {
		LogLevel.Set(slog.LevelInfo)
	}
	Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: LogLevel}))
}

// initSignals wires SIGINT/SIGTERM into RootContext's cancellation.
func initSignals() {
	RootContext, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Shutdown releases the signal notification. Deferred from main.
func Shutdown() {
	if rootCancel != nil {
		rootCancel()
	}
}
