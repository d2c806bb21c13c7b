package utils

import (
	"go.uber.org/zap"
)

// IgnoreError simple helper that just logs the error and ignores it
func IgnoreError(logger *zap.Logger, err error) {
	if err != nil { // unlikely
		logger.Warn("ERROR IGNORED", zap.Error(err))
	}
}

// IgnoreErrorOn simple helper that is aimed to use with `defer`
func IgnoreErrorOn(logger *zap.Logger, f func() error) {
	IgnoreError(logger, f())
}

// FatalOnError simple helper that just logs the error and calls os.Exit(1)
func FatalOnError(logger *zap.Logger, err error) {
	if err != nil { // unlikely
		logger.Fatal("ERROR", zap.Error(err)) // os.Exit(1)
	}
}

// FatalOnPanic does simple panic recover that is aimed to use with `defer`
// On panic it logs the error message and calls os.Exit(1)
func FatalOnPanic(logger *zap.Logger) {
	if err := recover(); err != nil {
		logger.Fatal("UNHANDLED PANIC", zap.Any("panic", err)) // os.Exit(1)
	}
}
