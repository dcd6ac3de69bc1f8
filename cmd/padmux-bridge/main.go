// Package main runs the host-side microphone bridge daemon. It captures
// the default microphone and streams frames over a websocket to padmux
// clients, typically across a WSL2 boundary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"padmux/internal/bridge"
	"padmux/internal/version"
)

func main() {
	listen := flag.String("listen", fmt.Sprintf(":%d", bridge.DefaultPort), "listen address")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The server drives the capture device by client demand, and the
	// capture device feeds frames back through the server's fan-out.
	var capture *bridge.Capture
	server := bridge.NewServer(logger,
		func() error { return capture.Start() },
		func() { capture.Stop() },
	)
	capture = bridge.NewCapture(logger, server.Broadcast)
	defer capture.Close()

	httpServer := &http.Server{Addr: *listen, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("bridge listening", "addr", *listen, "version", version.Version)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("bridge server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bridge stopped")
}
