package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/mockup-compositor-go/internal/config"
	"github.com/anime-shed/mockup-compositor-go/internal/container"
	"github.com/anime-shed/mockup-compositor-go/internal/factory"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/internal/psdparse"
)

func main() {
	// Isolated layer parsing re-executes this binary.
	if len(os.Args) > 1 && os.Args[1] == psdparse.WorkerCommand {
		os.Exit(runWorker(os.Args[2:]))
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to read .env: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address":         cfg.ServerAddress(),
			"timeout":         cfg.RequestTimeout,
			"parse_isolation": cfg.ParseIsolation,
			"parse_timeout":   cfg.ParseTimeout,
			"max_in_flight":   cfg.MaxInFlight,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := c.Close(); err != nil {
		logger.WithError(err).Warn("Failed to release resources")
	}

	logger.Info("Server exited")
}

// runWorker serves one parse request on stdin/stdout. stdout carries the
// result, so logs go to stderr.
func runWorker(args []string) int {
	logger.SetOutput(os.Stderr)

	w := psdparse.NewWorker(factory.NewRecognizer)
	if err := w.Run(args, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
