package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"shogi_backend/internal/adapters"
	"shogi_backend/internal/bootstrap"
	matchDelivery "shogi_backend/internal/delivery/match"
	puzzleDelivery "shogi_backend/internal/delivery/puzzle"
	ownMiddleware "shogi_backend/internal/middleware"
	"shogi_backend/internal/repository"
	"shogi_backend/internal/usecase/bot"
	matchUseCase "shogi_backend/internal/usecase/match"
	puzzleUseCase "shogi_backend/internal/usecase/puzzle"
	"shogi_backend/microservices/botrpc"
)

type mainDeliveryHandler struct {
	match  *matchDelivery.MatchHandler
	puzzle *puzzleDelivery.PuzzleHandler
}

type dataBaseAdapters struct {
	redisAdapter *adapters.AdapterRedis
	mongoAdapter *adapters.AdapterMongo
}

func main() {
	logger := NewLogger()
	defer logger.Sync()

	cfg, err := bootstrap.Setup(".env")
	if err != nil {
		logger.Error("Failed to setup configuration", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	databaseAdapters := initDatabaseAdapters(ctx, logger, cfg)
	defer databaseAdapters.mongoAdapter.Close(context.Background())
	defer databaseAdapters.redisAdapter.Close(context.Background())

	mover, closeMover := initBotMover(cfg, logger)
	defer closeMover()

	r := chi.NewRouter()
	handlers := initializeDeliveryHandlers(cfg, logger, databaseAdapters, mover)
	handlers.Router(r, cfg.IsLocalCors)

	server := &http.Server{Addr: ":" + cfg.ServerPort, Handler: r}
	go handleShutdown(ctx, cancel, server, logger)

	logger.Infof("Server is running on port %s", cfg.ServerPort)
	if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func (h *mainDeliveryHandler) Router(r *chi.Mux, isLocalCors bool) {
	if isLocalCors {
		r.Use(ownMiddleware.CORS)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h.match.Routes(r)
	h.puzzle.Routes(r)
}

func initDatabaseAdapters(ctx context.Context, log *zap.SugaredLogger, cfg *bootstrap.Config) *dataBaseAdapters {
	mongoAdapter := adapters.NewAdapterMongo(cfg, log)
	if err := mongoAdapter.Init(ctx); err != nil {
		log.Fatal("Failed to initialize MongoDB", zap.Error(err))
	}

	redisAdapter := adapters.NewAdapterRedis(cfg, log)
	if err := redisAdapter.Init(ctx); err != nil {
		log.Fatal("Failed to initialize Redis", zap.Error(err))
	}

	log.Info("Database adapters initialized")
	return &dataBaseAdapters{
		redisAdapter: redisAdapter,
		mongoAdapter: mongoAdapter,
	}
}

// initBotMover talks to the bot microservice when BOT_SERVICE_ADDR is set and
// searches in process otherwise.
func initBotMover(cfg *bootstrap.Config, log *zap.SugaredLogger) (matchUseCase.BotMover, func()) {
	if cfg.BotServiceAddr == "" {
		log.Info("BOT_SERVICE_ADDR is empty, bot moves are searched in process")
		return bot.NewLocalMover(log), func() {}
	}

	conn, err := grpc.NewClient(cfg.BotServiceAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal("Failed to dial bot service", zap.Error(err))
	}
	log.Infof("bot moves are served by %s", cfg.BotServiceAddr)
	return bot.NewRemoteMover(botrpc.NewBotServiceClient(conn), log), func() { _ = conn.Close() }
}

func initializeDeliveryHandlers(
	cfg *bootstrap.Config,
	log *zap.SugaredLogger,
	databaseAdapters *dataBaseAdapters,
	mover matchUseCase.BotMover,
) *mainDeliveryHandler {
	matchRepo := repository.NewMatchRepository(cfg, log, databaseAdapters.redisAdapter.GetClient(), databaseAdapters.mongoAdapter.Database)
	matchUC := matchUseCase.NewMatchUseCase(cfg, log, matchRepo, mover)

	puzzleRepo := repository.NewPuzzleStorage(log, databaseAdapters.mongoAdapter.Database)
	puzzleUC := puzzleUseCase.NewPuzzleUseCase(log, puzzleRepo, cfg.PageLimitPuzzles)

	return &mainDeliveryHandler{
		match:  matchDelivery.NewMatchHandler(log, matchUC),
		puzzle: puzzleDelivery.NewPuzzleHandler(log, puzzleUC),
	}
}

func handleShutdown(ctx context.Context, cancelFunc context.CancelFunc, server *http.Server, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
		log.Info("Received shutdown signal")
	case <-ctx.Done():
		return
	}
	cancelFunc()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
}
