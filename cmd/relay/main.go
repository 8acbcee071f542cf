package main

import (
	"chat-relay/codec"
	grpcserver "chat-relay/infrastructure/grpc/server"
	httpserver "chat-relay/infrastructure/http/server"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	nameCodec, err := codec.NewNameCodec(config.NameKey)
	if err != nil {
		return exitConfig, err
	}
	if config.NameKey == "" {
		logger.Warn("NAME_KEY is empty, tokens will not survive a restart")
	}

	// 2. Moderation
	dictionary, err := moderation.DefaultDictionary()
	if err != nil {
		return exitRuntime, fmt.Errorf("moderation dictionary: %w", err)
	}
	moderator, err := moderation.NewModerator(dictionary.Words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderation automaton: %w", err)
	}
	logger.Info("Moderation ready", "words", len(dictionary.Words), "languages", dictionary.Languages)

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Broker
	monitoring := observability.NewMonitoring(logger)
	broker := runtime.NewBroker(logger,
		workers.NewSupervisor(logger, config.RestartInterval),
		runtime.NewRegistry(logger),
		runtime.NewDeliveryQueue(),
		monitoring,
		runtime.Options{
			StrictRecipient: config.StrictRecipient,
			SendTimeout:     config.SendTimeout,
			ReportInterval:  config.MetricInterval,
			Language:        moderation.DetectLanguage,
		},
	)
	broker.Start(ctx)
	defer broker.Stop()

	chatService := services.NewChatService(logger, broker, moderator, config.MaxNameLength, config.MaxMessageLength)

	errChan := make(chan error, 2)

	// 5. gRPC health
	grpcListener, err := net.Listen("tcp", config.GrpcAddress())
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.GrpcAddress(), err)
	}
	healthServer := grpcserver.NewHealthServer(logger)
	go func() {
		if err := healthServer.Serve(grpcListener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go healthServer.Track(ctx, broker.Done())

	// 6. HTTP & websockets
	handler := httpserver.NewHandler(ctx, logger, chatService, nameCodec, httpserver.Options{
		MaxNameLength:     config.MaxNameLength,
		MessagesPerSecond: config.MessagesPerSecond,
		MessageBurst:      config.MessageBurst,
		PingInterval:      config.PingInterval,
	})
	httpServer := &http.Server{
		Addr:              config.HTTPAddress(),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		logger.Error("Server failed", "error", runErr)
	}

	// 8. Graceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	healthServer.GracefulStop()

	if runErr != nil {
		return exitRuntime, runErr
	}
	logger.Info("Relay stopped")
	return exitOK, nil
}
