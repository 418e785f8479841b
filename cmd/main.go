package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"linguachat/client/internal/api/handler"
	"linguachat/client/internal/app"
	"linguachat/client/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run serves the local bridge until SIGINT or SIGTERM.
func run() error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Closing client failed", "error", err)
		}
	}()

	sessionErrs := a.Start(ctx)

	feed := handler.NewFeed(log)
	go feed.Run(ctx, a.Session.Updates())

	if cfg.LogLevel == "DEBUG" || cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	h := handler.NewHandler(a.Session, a.Backend, a.Labels, feed, log)
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.BridgeAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting bridge", "address", cfg.BridgeAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("bridge server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	case err := <-sessionErrs:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("bridge shutdown: %w", err)
	}
	log.Info("Bridge stopped cleanly")
	return nil
}
