package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"memorywall/internal/common"
	"memorywall/internal/wire"
)

func main() {
	app, cleanup, err := wire.InitializeMediaServer()
	if err != nil {
		log.Fatalf("Failed to initialize media server: %v", err)
	}
	defer cleanup()
	logger := app.Logger

	server := &http.Server{
		Addr:              ":" + app.Config.Server.MediaServerPort,
		Handler:           common.RequestLogger(logger)(app.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("🚀 media server starting",
			zap.String("addr", server.Addr),
			zap.String("base_url", app.Config.Server.MediaBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("media server forced to shutdown", zap.Error(err))
	}
	logger.Info("media server stopped")
}
