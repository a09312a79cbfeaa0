package discordrpc

import (
	"io"
	"log/slog"
)

// Logger receives the client's structured logs. *slog.Logger satisfies it.
//
// Transports log connect and close at Info with a "transport" key (ipc or
// websocket) and the close code and reason. Skipped IPC paths, failed
// WebSocket attempts, ignored opcodes and dispatches nobody subscribed to
// go to Debug. Failures the client swallows go to Warn, such as REST
// endpoint discovery, a connect timeout or a malformed READY.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// defaultLogger is slog.Default with component=discordrpc on every record.
func defaultLogger() Logger {
	return slog.Default().With("component", "discordrpc")
}

// DiscardLogger returns a Logger that drops everything. Tests and the
// rpctest servers use it to keep output quiet.
func DiscardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
