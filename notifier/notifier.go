// Package notifier tells chat clients about message status changes.
package notifier

import (
	"context"
	"errors"
)

// Relay delivers status notifications and free-text replies to a chat thread.
type Relay interface {
	Notify(ctx context.Context, chatID, threadID int64, status string) error
	Reply(ctx context.Context, chatID, threadID int64, text string) error
}

// Multi fans out to every relay and joins their errors.
type Multi []Relay

func (m Multi) Notify(ctx context.Context, chatID, threadID int64, status string) error {
	var errs []error
	for _, r := range m {
		if err := r.Notify(ctx, chatID, threadID, status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Reply(ctx context.Context, chatID, threadID int64, text string) error {
	var errs []error
	for _, r := range m {
		if err := r.Reply(ctx, chatID, threadID, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(ctx context.Context, chatID, threadID int64, status string) error { return nil }
func (Nop) Reply(ctx context.Context, chatID, threadID int64, text string) error    { return nil }
