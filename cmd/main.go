package main

import (
	"chat-room/contract"
	"chat-room/errors"
	"chat-room/infrastructure/rest"
	"chat-room/infrastructure/search"
	"chat-room/infrastructure/storage"
	"chat-room/internal"
	"chat-room/moderation"
	"chat-room/observability"
	"chat-room/repositories"
	"chat-room/runtime/workers"
	"chat-room/services"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 5 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat room terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a signal arrives, and releases
// resources in reverse order through defers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Document store
	store, db, err := openStore(ctx, config, logger)
	if stderrors.Is(err, errors.ErrUnknownStoreDriver) {
		return exitConfig, err
	}
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = store.Close()
		if db != nil {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}
	}()

	participantsColl, err := store.Collection(storage.ParticipantsCollection)
	if err != nil {
		return exitRuntime, err
	}
	messagesColl, err := store.Collection(storage.MessagesCollection)
	if err != nil {
		return exitRuntime, err
	}

	// 3. Search index
	index, err := search.OpenMessageIndex(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge index: %w", err)
	}
	defer func() { _ = index.Close() }()

	// 4. Moderation, only when a word list is configured
	var censor *moderation.Moderator
	if words := config.Words(); len(words) > 0 {
		if censor, err = moderation.NewModerator(words, charReplacement, logger); err != nil {
			return exitConfig, err
		}
	}

	// 5. Repositories & services
	monitoring := observability.NewMonitoring(logger)
	participantRepository := repositories.NewParticipantRepository(participantsColl, logger)
	messageRepository := repositories.NewMessageRepository(messagesColl, index, logger)
	indexed, err := messageRepository.Reindex(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to rebuild search index: %w", err)
	}
	logger.Info("Search index ready", "messages", indexed)

	presenceService := services.NewPresenceService(logger, participantRepository, messageRepository, time.Now)
	messageService := services.NewMessageService(logger, participantRepository, messageRepository, toCensor(censor), time.Now)
	evictionService := services.NewEvictionService(logger, participantRepository, messageRepository,
		config.InactivityThreshold, time.Now)

	// 6. Health
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(workers.PresenceHealthService, healthpb.HealthCheckResponse_SERVING)

	// 7. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewEvictionWorker(logger, evictionService, config.SweepInterval, healthServer, monitoring),
		workers.NewTelemetryWorker(logger, config.MetricInterval, monitoring),
	)
	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervisorDone)
	}()

	// 8. Debug inspector
	if db != nil && logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		debugServer := internal.StartDebugServer(logger, db, config.DebugPort, endpoint, internal.DocumentMapper, monitoring.Snapshot)
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		defer func() { _ = debugServer.Close() }()
	}

	errChan := make(chan error, 2)

	// 9. gRPC health server
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(logger)))
	healthpb.RegisterHealthServer(s, healthServer)
	go func() {
		logger.Info("Starting gRPC health server", "address", grpcAddress)
		if err := s.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 10. HTTP server
	app := rest.NewApp(logger, presenceService, messageService, monitoring)
	httpAddress := fmt.Sprintf("%s:%d", config.Host, config.Port)
	go func() {
		logger.Info("Starting HTTP server", "address", httpAddress, "at", time.Now().UTC())
		if err := app.Listen(httpAddress); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 11. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err = <-errChan:
		code = exitRuntime
	}

	// 12. Final Cleanup
	logger.Info("Shutting down gracefully...")
	healthServer.Shutdown()
	if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		logger.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	s.GracefulStop()
	sup.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return code, err
}

// openStore returns the configured store. db is only set for Badger, the
// inspector reads it directly.
func openStore(ctx context.Context, config internal.Config, logger *slog.Logger) (storage.Store, *badger.DB, error) {
	switch config.StoreDriver {
	case internal.BadgerDriver:
		db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		return storage.NewBadgerStore(db, logger), db, nil
	case internal.SQLiteDriver:
		store, err := storage.OpenSQLiteStore(config.SQLiteFilepath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errors.ErrUnknownStoreDriver, config.StoreDriver)
	}
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// toCensor keeps a nil *Moderator from becoming a non-nil interface.
func toCensor(m *moderation.Moderator) contract.ICensor {
	if m == nil {
		return nil
	}
	return m
}
