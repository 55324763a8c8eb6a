// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package notify defines the best-effort notification hook fired when new raw
// data invalidates a previously processed dataset. Delivery is an external
// collaborator; callers never block on it and never propagate its failures.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers a short message to a set of recipients
type Notifier interface {
	// Notify sends message and url to recipients with additional metadata
	Notify(ctx context.Context, recipients []string, message, url string, meta map[string]string) error
}

// LogNotifier records notifications in the log instead of delivering them,
// the default when no external dispatcher is wired in
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a notifier writing to log
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

var _ Notifier = (*LogNotifier)(nil)

// Notify implements Notifier
func (n *LogNotifier) Notify(ctx context.Context, recipients []string, message, url string, meta map[string]string) error {
	n.log.Info("notification",
		zap.Strings("recipients", recipients),
		zap.String("message", message),
		zap.String("url", url),
		zap.Any("meta", meta))
	return nil
}
