package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chatstream/pkg/logger"
)

// SetupSignalHandler returns a context canceled on SIGINT or SIGTERM. A
// second signal exits immediately.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-c
		logger.Info("shutdown_signal", "signal", sig.String())
		cancel()
		<-c
		logger.Warn("forced_exit")
		os.Exit(1)
	}()
	return ctx
}
