// Package main implements the casesmith CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/l3aro/casesmith/cmd/casesmith/commands"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`casesmith version {{.Version}}
`)

	if err := commands.RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
