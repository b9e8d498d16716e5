package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

const shutdownTimeout = 5 * time.Second

type httpTransport interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// Serve runs srv on the named transport until ctx is cancelled or the
// transport fails.
func Serve(ctx context.Context, srv *server.MCPServer, transport, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var t httpTransport
	switch transport {
	case TransportStdio:
		stdio := server.NewStdioServer(srv)
		stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
		logger.Info("serving MCP on stdio")
		err := stdio.Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil
	case TransportSSE:
		t = server.NewSSEServer(srv, server.WithBaseURL("http://"+addr))
	case TransportHTTP:
		t = server.NewStreamableHTTPServer(srv, server.WithHeartbeatInterval(30*time.Second))
	default:
		return fmt.Errorf("unknown transport %q", transport)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- t.Start(addr)
	}()
	logger.Info("serving MCP", "transport", transport, "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s transport: %w", transport, err)
	case <-ctx.Done():
	}

	logger.Info("shutdown requested, closing MCP transport", "transport", transport)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := t.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down %s transport: %w", transport, err)
	}
	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s transport: %w", transport, err)
		}
	case <-shutdownCtx.Done():
	}
	return nil
}
