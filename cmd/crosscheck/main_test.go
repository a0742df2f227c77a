// File: cmd/crosscheck/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/crosscheck/cmd"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitUnitsFailed, exitCode(fmt.Errorf("run: %w", cmd.ErrUnitsFailed)))
	assert.Equal(t, exitInterrupted, exitCode(context.Canceled))
	assert.Equal(t, exitError, exitCode(errors.New("invalid configuration")))
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	var written string
	var code = -1
	osWriteFile = func(name string, data []byte, _ os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		written = string(data)
		return nil
	}
	osExit = func(c int) { code = c }

	func() {
		defer handlePanic()
		panic("factory exploded")
	}()

	assert.Equal(t, exitError, code)
	assert.Contains(t, written, "panic: factory exploded")
	assert.Contains(t, written, "goroutine")
}

func TestHandlePanic_WriteFailure(t *testing.T) {
	defer resetMocks()

	code := -1
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
	osExit = func(c int) { code = c }

	require.NotPanics(t, func() {
		defer handlePanic()
		panic("boom")
	})
	assert.Equal(t, exitError, code)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	defer resetMocks()

	osExit = func(int) { t.Fatal("exit must not be called without a panic") }
	func() {
		defer handlePanic()
	}()
}
