package safego

import (
	"go.uber.org/zap"
)

// Go launches a goroutine with panic recovery.
// If the goroutine panics, the panic value is logged and the goroutine exits
// cleanly instead of crashing the process. The PTY and capture executors'
// output-scanning goroutines, the dashboard HTTP server, and the WebSocket
// hub all run under this so a single panicking reader can't take the whole
// orchestrator down.
//
// Usage:
//
//	safego.Go(logger, "pty-reader", func() {
//	    // work that might panic
//	})
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Goroutine panicked",
					zap.String("goroutine", name),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
			}
		}()
		fn()
	}()
}
