package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rayhunter-dev/installer/internal/cmd"
	"github.com/rayhunter-dev/installer/internal/errors"
)

// exitUnverified distinguishes "deployed but not yet reachable" from a
// failed installation.
const exitUnverified = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		var verifyErr *errors.VerifyError
		if errors.As(err, &verifyErr) {
			os.Exit(exitUnverified)
		}
		os.Exit(1)
	}
}
