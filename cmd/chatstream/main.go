package main

import (
	"fmt"
	"os"

	"chatstream/internal/app"
	"chatstream/pkg/shutdown"
)

func main() {
	ctx := shutdown.SetupSignalHandler()
	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "chatstream: %v\n", err)
		os.Exit(1)
	}
}
