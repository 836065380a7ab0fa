package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abezemskiy/ambient/internal/client/ambient"
	"github.com/abezemskiy/ambient/internal/client/logger"

	"go.uber.org/zap"
)

func main() {
	err := parseVariables()
	if err != nil {
		log.Fatalf("failed to set global variables, %v", err)
	}

	if err := logger.Initialize(logLevel, logFile); err != nil {
		log.Fatalf("Error starting client: %v", err)
	}
	defer logger.ClientLog.Sync()

	var caCert []byte
	if caFile != "" {
		caCert, err = os.ReadFile(caFile)
		if err != nil {
			log.Fatalf("failed to read root certificate, %v", err)
		}
	}

	client := ambient.New(
		ambient.WithBaseURL(netAddr),
		ambient.WithLogger(logger.ClientLog),
		ambient.WithTimeout(time.Duration(timeout)*time.Second),
	)
	if err := client.Begin(uint32(channelID), writeKey, readKey, string(caCert)); err != nil {
		log.Fatalf("failed to initialize channel, %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &commander{
		client:  client,
		userKey: userKey,
		devKey:  devKey,
		in:      os.Stdin,
		out:     os.Stdout,
	}
	if err := cmd.execute(ctx, flag.Args()); err != nil {
		logger.ClientLog.Error("command failed", zap.Strings("args", flag.Args()), zap.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
