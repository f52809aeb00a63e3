package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polls-analytics/internal/bootstrap"
)

func main() {
	logger := bootstrap.SetupLogger()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := bootstrap.NewApp(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}

	// HTTP 服务器在单独的 goroutine 中运行，主 goroutine 等待退出信号
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		logger.Infof("Received signal %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.Shutdown(ctx)
}
