package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"obogportal/internal/app"
)

// @title        OBOG Portal API
// @version      1.0
// @description  Passwordless email sign-in for the alumni portal.
// @BasePath     /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
