// Package notify pushes loop lifecycle events to an operator channel.
// It is gated entirely on config: without a bot token, NullNotifier is
// wired in and every call is a no-op.
package notify

import (
	"context"

	"github.com/hatloop/hatloop/internal/looprun"
)

// Notifier is told when a loop reaches a terminal state.
type Notifier interface {
	NotifyTerminal(ctx context.Context, loopID string, state looprun.State, reason string) error
}

// NullNotifier discards every notification; it's the default when no
// Telegram credentials are configured.
type NullNotifier struct{}

func (NullNotifier) NotifyTerminal(context.Context, string, looprun.State, string) error {
	return nil
}
