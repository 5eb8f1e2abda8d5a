package main

import (
	"os"

	"github.com/loykin/latter/internal/common"
)

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler implements ExitHandler for production use
type DefaultExitHandler struct{}

// Exit terminates the program with the given exit code
func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError logs through the current default logger, which commands
// replace once the config is loaded, and exits with status 1. Credentials
// in the error text are masked.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	allKeyvals := append([]any{"error", common.MaskSensitiveData(err.Error())}, keyvals...)
	common.GetLogger().WithComponent("main").Error(msg, allKeyvals...)
	h.Exit(1)
}

// Global exit handler (can be replaced for testing)
var exitHandler ExitHandler = &DefaultExitHandler{}
