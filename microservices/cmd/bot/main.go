package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"shogi_backend/internal/bootstrap"
	"shogi_backend/internal/usecase/bot"
	"shogi_backend/microservices/botrpc"
	"shogi_backend/microservices/usecase"
)

func main() {
	logger := NewLogger()
	defer logger.Sync()

	cfg, err := bootstrap.Setup(".env")
	if err != nil {
		logger.Error("Failed to setup configuration", zap.Error(err))
		return
	}

	lis, err := net.Listen("tcp", ":"+cfg.BotServicePort)
	if err != nil {
		logger.Fatalf("cant listen port %s: %v", cfg.BotServicePort, err)
	}

	server := grpc.NewServer()
	botrpc.RegisterBotServiceServer(server, usecase.NewBotUseCase(usecase.MoveGeneratorFunc(bot.Search), cfg.BotMaxParallel, logger))

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		logger.Info("Received shutdown signal")
		server.GracefulStop()
	}()

	logger.Infof("bot service listening on :%s (max %d parallel searches)", cfg.BotServicePort, cfg.BotMaxParallel)
	if err = server.Serve(lis); err != nil {
		logger.Fatal("bot service stopped", zap.Error(err))
	}
}

func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	return logger.Sugar()
}
