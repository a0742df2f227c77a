// File: cmd/crosscheck/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/crosscheck/cmd"
	"github.com/xkilldash9x/crosscheck/internal/observability"
)

const panicLogFile = "panic.log"

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUnitsFailed = 2
	exitInterrupted = 130
)

// Function variables replaced in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := exitCode(cmd.Execute(ctx))
	stop()
	osExit(code)
}

// exitCode separates failing units from failures to run at all, so CI can
// tell a regression from a broken setup.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cmd.ErrUnitsFailed):
		return exitUnitsFailed
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitError
	}
}

// handlePanic records a crash outside any unit to panic.log before exiting.
// Panics inside units are recovered by the runner and never reach here.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
	} else {
		fmt.Fprintf(os.Stderr, "crosscheck crashed. Details logged to %s\n", panicLogFile)
	}
	osExit(exitError)
}
