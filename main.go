package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harrisonrobin/taskslot/pkg/cmd"
	"github.com/harrisonrobin/taskslot/pkg/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch {
		case errs.IsConfig(err):
			os.Exit(2)
		case errs.IsAuth(err):
			fmt.Fprintln(os.Stderr, "Run 'taskslot auth' to sign in again.")
			os.Exit(3)
		}
		os.Exit(1)
	}
}
