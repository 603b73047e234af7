package service

import (
	"context"

	"github.com/aussiebroadwan/triage/pkg/slogx"
)

// Notifier delivers single-use tokens to a user's mailbox.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendVerification(ctx context.Context, email, token string) error
}

// LogNotifier stands in for a mail transport. It records that a message was
// due without writing the token anywhere.
type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(ctx context.Context, email, _ string) error {
	slogx.FromContext(ctx).Info("password reset message queued", "email", email)
	return nil
}

func (LogNotifier) SendVerification(ctx context.Context, email, _ string) error {
	slogx.FromContext(ctx).Info("verification message queued", "email", email)
	return nil
}
