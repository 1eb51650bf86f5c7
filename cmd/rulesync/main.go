package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/macropower/rulesync/internal/cli"
	"github.com/macropower/rulesync/pkg/version"
)

func main() {
	err := fang.Execute(context.Background(), cli.NewRootCmd(),
		fang.WithVersion(version.GetVersion()),
		fang.WithCommit(version.Revision),
		fang.WithErrorHandler(cli.ErrorHandler),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
	if err != nil {
		os.Exit(1)
	}
}
