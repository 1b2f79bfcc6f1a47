package signalhandler

import (
	"context"
	"os/signal"
	"syscall"
)

// Context returns a context cancelled on SIGINT or SIGTERM. The scoring loop
// checks it between images so cgo calls are never interrupted midway.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
