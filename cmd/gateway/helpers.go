package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"code.equilab.io/gateway/logging"
)

func defaultRootDir() string {
	return os.ExpandEnv("$HOME/.equilab-gateway")
}

// waitSig will wait for a sigterm or sigint interrupt.
func waitSig(ctx context.Context, log *logging.Logger) {
	gracefulStop := make(chan os.Signal, 1)
	signal.Notify(gracefulStop, syscall.SIGTERM)
	signal.Notify(gracefulStop, syscall.SIGINT)

	select {
	case sig := <-gracefulStop:
		log.Info("caught signal", logging.String("name", fmt.Sprintf("%+v", sig)))
	case <-ctx.Done():
		// nothing to do
	}
}
