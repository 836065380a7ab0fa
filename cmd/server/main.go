package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abezemskiy/ambient/internal/server/handlers"
	"github.com/abezemskiy/ambient/internal/server/logger"
	"github.com/abezemskiy/ambient/internal/server/storage"
	"github.com/abezemskiy/ambient/internal/server/storage/inmemory"
	"github.com/abezemskiy/ambient/internal/server/storage/sqlite"

	"go.uber.org/zap"
)

const shutdownWaitPeriod = 20 * time.Second // для установки в контекст для реализации graceful shutdown

func main() {
	err := parseVariables()
	if err != nil {
		log.Fatalf("failed to set global variables, %v", err)
	}

	ctx := context.Background()
	ch := storage.Channel{
		ID:       uint32(channelID),
		WriteKey: writeKey,
		ReadKey:  readKey,
		UserKey:  userKey,
		DevKey:   devKey,
	}

	// без файла базы данные хранятся только в памяти
	if database == "" {
		run(ctx, inmemory.NewStore(ch))
		return
	}

	conn, err := sqlite.Open(ctx, database)
	if err != nil {
		log.Fatalf("failed to open database, %v", err)
	}
	defer conn.Close()

	stor := sqlite.NewStore(conn)
	if err := stor.Bootstrap(ctx); err != nil {
		log.Fatalf("failed to prepare database, %v", err)
	}
	if err := stor.AddChannel(ctx, ch); err != nil {
		log.Fatalf("failed to save channel, %v", err)
	}
	run(ctx, stor)
}

// run - инициализирует зависимости песочницы и запускает её до получения сигнала остановки.
func run(ctx context.Context, stor storage.IChannelStorage) {
	if err := logger.Initialize(logLevel); err != nil {
		log.Fatalf("Error starting sandbox: %v", err)
	}

	logger.ServerLog.Info("Running ambient sandbox",
		zap.String("address", netAddr),
		zap.Bool("tls", certFile != ""),
		zap.Uint("channel", channelID),
		zap.String("write key", writeKey),
		zap.String("read key", readKey),
		zap.String("user key", userKey),
		zap.String("device key", devKey),
		zap.String("database", database),
	)

	srv := &http.Server{
		Addr:              netAddr,
		Handler:           handlers.Router(stor),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err error
		if certFile != "" {
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting sandbox: %v", err)
		}
	}()

	// Блокирование до тех пор, пока не поступит сигнал о прерывании
	<-quit
	logger.ServerLog.Info("Shutting down sandbox...", zap.String("address", netAddr))

	ctx, cancel := context.WithTimeout(ctx, shutdownWaitPeriod)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Stopping sandbox error: %v", err)
	}
	logger.ServerLog.Info("Shutdown the sandbox gracefully", zap.String("address", netAddr))
}
