package ingress

import (
	"context"
	"log/slog"
)

// Publisher hands a verified, non-duplicate delivery to the downstream
// normalizer. The normalizer itself lives outside this service; the port
// keeps that boundary explicit.
type Publisher interface {
	Publish(ctx context.Context, provider string, rawBody []byte) error
}

// LogPublisher is the development default: it records the hand-off and does
// nothing else.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, provider string, rawBody []byte) error {
	p.Logger.InfoContext(ctx, "verified webhook handed off",
		"provider", provider,
		"bytes", len(rawBody),
	)
	return nil
}
