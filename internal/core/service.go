package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/workday"
)

// WindowFunc returns the [start, end) window of messages to consider at now
type WindowFunc func(now time.Time) (time.Time, time.Time)

// ServiceOptions holds the optional collaborators and settings of a PriorityService
type ServiceOptions struct {
	Rules        []SenderRule
	CacheEnabled bool
	CacheTTL     time.Duration
	Window       WindowFunc
	Events       EventSource
	Summarizer   Summarizer

	// SourceName identifies the message source in cached digest fingerprints
	SourceName string
}

// DigestRequest describes a single top-priorities request
type DigestRequest struct {
	Mailbox string
	Now     time.Time
	Limit   int
	Refresh bool
}

// PriorityService is the core service producing priority digests
type PriorityService struct {
	scorer     *Scorer
	source     MessageSource
	store      DigestStore
	logger     *zap.Logger
	rules      []SenderRule
	cacheOn    bool
	cacheTTL   time.Duration
	window     WindowFunc
	events     EventSource
	summarizer Summarizer

	fingerprint string
}

// NewPriorityService creates a new priority service
func NewPriorityService(
	scorer *Scorer,
	source MessageSource,
	store DigestStore,
	logger *zap.Logger,
	opts ServiceOptions,
) *PriorityService {
	window := opts.Window
	if window == nil {
		window = workday.PreviousRange
	}
	return &PriorityService{
		scorer:     scorer,
		source:     source,
		store:      store,
		logger:     logger,
		rules:      opts.Rules,
		cacheOn:    opts.CacheEnabled && store != nil,
		cacheTTL:   opts.CacheTTL,
		window:     window,
		events:     opts.Events,
		summarizer: opts.Summarizer,

		fingerprint: Fingerprint(opts.SourceName, opts.Rules, scorer.Weights()),
	}
}

// Rules returns the sender rules the service scores with
func (s *PriorityService) Rules() []SenderRule {
	return s.rules
}

// TopPriorities returns the highest priority messages of the current window
func (s *PriorityService) TopPriorities(ctx context.Context, req DigestRequest) (*Digest, error) {
	digest, _, _, err := s.digest(ctx, req)
	return digest, err
}

// digest answers req from the cache when it can. Otherwise it scores the
// window and also returns the fetched messages.
func (s *PriorityService) digest(ctx context.Context, req DigestRequest) (*Digest, []Message, bool, error) {
	if req.Limit < 1 {
		req.Limit = 1
	}
	start, end := s.window(req.Now)

	if s.cacheOn && !req.Refresh {
		digest, err := s.store.Get(ctx, req.Mailbox)
		switch {
		case err == nil && s.fresh(digest, req, start):
			s.logger.Debug("Cache hit for mailbox", zap.String("mailbox", req.Mailbox))
			return digest, nil, true, nil
		case err != nil && !errors.Is(err, ErrDigestNotFound):
			s.logger.Warn("Failed to read cached digest", zap.String("mailbox", req.Mailbox), zap.Error(err))
		}
	}

	messages, err := s.fetch(ctx, start, end)
	if err != nil {
		return nil, nil, false, err
	}

	items, err := s.scorer.Score(messages, s.rules, req.Now, req.Limit)
	if err != nil {
		return nil, nil, false, err
	}

	digest := &Digest{
		ID:          uuid.New(),
		Mailbox:     req.Mailbox,
		GeneratedAt: req.Now,
		WindowStart: start,
		WindowEnd:   end,
		Limit:       req.Limit,
		Items:       items,
		ExpiresAt:   req.Now.Add(s.cacheTTL),
		Fingerprint: s.fingerprint,
	}

	s.logger.Info("Built priority digest",
		zap.String("mailbox", req.Mailbox),
		zap.Time("window_start", start),
		zap.Int("fetched", len(messages)),
		zap.Int("top", len(items)))

	if s.cacheOn {
		if err := s.store.Set(ctx, digest); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return digest, messages, false, nil
}

func (s *PriorityService) fetch(ctx context.Context, start, end time.Time) ([]Message, error) {
	if s.source == nil {
		return nil, errors.New("no message source configured")
	}
	messages, err := s.source.Messages(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return messages, nil
}

// fresh reports whether a cached digest answers req
func (s *PriorityService) fresh(d *Digest, req DigestRequest, start time.Time) bool {
	return d.Limit == req.Limit &&
		d.WindowStart.Equal(start) &&
		d.Fingerprint == s.fingerprint &&
		req.Now.Before(d.ExpiresAt)
}

// Briefing combines the digest with every message and the calendar of the
// same window and, if a summarizer is configured, a narrative summary
func (s *PriorityService) Briefing(ctx context.Context, req DigestRequest) (*Briefing, error) {
	digest, messages, cached, err := s.digest(ctx, req)
	if err != nil {
		return nil, err
	}
	// The cache only holds the top items; the highlights need the whole window
	if cached {
		if messages, err = s.fetch(ctx, digest.WindowStart, digest.WindowEnd); err != nil {
			return nil, err
		}
	}

	briefing := &Briefing{Digest: digest, Messages: newestFirst(messages)}
	if s.events != nil {
		events, err := s.events.Events(ctx, digest.WindowStart, digest.WindowEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch events: %w", err)
		}
		briefing.Events = events
	}

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, briefing)
		if err != nil {
			// The digest is still useful without the narrative
			s.logger.Error("Failed to summarize briefing", zap.Error(err))
		} else {
			briefing.Summary = summary
		}
	}

	return briefing, nil
}

// ScoreOne scores a single message with the configured rules
func (s *PriorityService) ScoreOne(msg Message, now time.Time) (ScoredMessage, error) {
	return s.scorer.ScoreOne(msg, s.rules, now)
}

func newestFirst(messages []Message) []Message {
	sorted := make([]Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReceivedAt.After(sorted[j].ReceivedAt)
	})
	return sorted
}
