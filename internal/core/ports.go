package core

import (
	"context"
	"errors"
	"time"
)

// ErrDigestNotFound is returned by a DigestStore on a miss or an expired entry
var ErrDigestNotFound = errors.New("digest not found")

// MessageSource supplies messages received within [start, end)
type MessageSource interface {
	Messages(ctx context.Context, start, end time.Time) ([]Message, error)
}

// EventSource supplies calendar events starting within [start, end)
type EventSource interface {
	Events(ctx context.Context, start, end time.Time) ([]Event, error)
}

// DigestStore caches the latest digest per mailbox
type DigestStore interface {
	// Get retrieves the latest unexpired digest for a mailbox
	Get(ctx context.Context, mailbox string) (*Digest, error)

	// Set stores a digest, replacing any previous one for the mailbox
	Set(ctx context.Context, digest *Digest) error

	// Delete removes the digest for a mailbox
	Delete(ctx context.Context, mailbox string) error

	// Cleanup removes expired digests
	Cleanup(ctx context.Context) error
}

// Summarizer writes a short narrative for a briefing
type Summarizer interface {
	Summarize(ctx context.Context, briefing *Briefing) (string, error)
}
