// File: cmd/vidpilot/main_test.go
package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlePanic(t *testing.T) {
	origWrite, origExit := osWriteFile, osExit
	t.Cleanup(func() { osWriteFile, osExit = origWrite, origExit })

	var (
		written  string
		exitCode = -1
	)
	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		written = string(data)
		return nil
	}
	osExit = func(code int) { exitCode = code }

	func() {
		defer handlePanic()
		panic("seek planner blew up")
	}()

	assert.Equal(t, 2, exitCode)
	assert.Contains(t, written, "panic: seek planner blew up")
	assert.Contains(t, written, "goroutine")
}

func TestHandlePanic_NoPanic(t *testing.T) {
	origExit := osExit
	t.Cleanup(func() { osExit = origExit })
	called := false
	osExit = func(int) { called = true }

	func() {
		defer handlePanic()
	}()
	assert.False(t, called)
}
