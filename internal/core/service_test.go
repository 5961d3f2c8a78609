package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	messages []Message
	calls    int
	start    time.Time
	end      time.Time
	err      error
}

func (f *fakeSource) Messages(_ context.Context, start, end time.Time) ([]Message, error) {
	f.calls++
	f.start, f.end = start, end
	return f.messages, f.err
}

type fakeEvents struct {
	events []Event
}

func (f *fakeEvents) Events(context.Context, time.Time, time.Time) ([]Event, error) {
	return f.events, nil
}

type mapStore struct {
	digests map[string]*Digest
	sets    int
}

func (m *mapStore) Get(_ context.Context, mailbox string) (*Digest, error) {
	d, ok := m.digests[mailbox]
	if !ok {
		return nil, ErrDigestNotFound
	}
	return d, nil
}

func (m *mapStore) Set(_ context.Context, d *Digest) error {
	m.sets++
	m.digests[d.Mailbox] = d
	return nil
}

func (m *mapStore) Delete(_ context.Context, mailbox string) error {
	delete(m.digests, mailbox)
	return nil
}

func (m *mapStore) Cleanup(context.Context) error { return nil }

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(context.Context, *Briefing) (string, error) {
	return f.summary, f.err
}

func serviceFixture(t *testing.T, opts ServiceOptions) (*PriorityService, *fakeSource, *mapStore) {
	t.Helper()
	high := msg("high", "x@example.com", 10*time.Hour)
	high.Importance = ImportanceHigh
	ruled := msg("ruled", "ceo@example.com", 12*time.Hour)
	source := &fakeSource{messages: []Message{msg("plain", "y@example.com", 11*time.Hour), high, ruled}}
	store := &mapStore{digests: map[string]*Digest{}}
	if opts.Rules == nil {
		opts.Rules = []SenderRule{{Matcher: "ceo@example.com", Weight: 5}}
	}
	svc := NewPriorityService(newTestScorer(t), source, store, zap.NewNop(), opts)
	return svc, source, store
}

func TestPriorityService_TopPriorities(t *testing.T) {
	svc, source, store := serviceFixture(t, ServiceOptions{})

	digest, err := svc.TopPriorities(context.Background(), DigestRequest{Mailbox: "me", Now: refNow, Limit: 5})
	require.NoError(t, err)

	// refNow is a Wednesday, so the window is Tuesday
	assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), source.start)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), source.end)
	require.Len(t, digest.Items, 2)
	assert.Equal(t, "ruled", digest.Items[0].Message.ID)
	assert.Equal(t, "high", digest.Items[1].Message.ID)
	assert.Equal(t, 5, digest.Limit)
	assert.Equal(t, 0, store.sets, "cache disabled")
}

func TestPriorityService_CachesDigests(t *testing.T) {
	svc, source, store := serviceFixture(t, ServiceOptions{CacheEnabled: true, CacheTTL: time.Hour})
	ctx := context.Background()

	first, err := svc.TopPriorities(ctx, DigestRequest{Mailbox: "me", Now: refNow, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, store.sets)

	second, err := svc.TopPriorities(ctx, DigestRequest{Mailbox: "me", Now: refNow.Add(time.Minute), Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, source.calls)

	// A different limit, an explicit refresh or an expired entry all rebuild
	_, err = svc.TopPriorities(ctx, DigestRequest{Mailbox: "me", Now: refNow, Limit: 3})
	require.NoError(t, err)
	_, err = svc.TopPriorities(ctx, DigestRequest{Mailbox: "me", Now: refNow, Limit: 3, Refresh: true})
	require.NoError(t, err)
	_, err = svc.TopPriorities(ctx, DigestRequest{Mailbox: "me", Now: refNow.Add(2 * time.Hour), Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, source.calls)
}

func TestPriorityService_CacheKeyedOnScoringInputs(t *testing.T) {
	ctx := context.Background()
	req := DigestRequest{Mailbox: "me", Now: refNow, Limit: 5}

	svcA, sourceA, store := serviceFixture(t, ServiceOptions{CacheEnabled: true, CacheTTL: time.Hour})
	first, err := svcA.TopPriorities(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, first.Fingerprint)
	assert.Equal(t, 5.0, first.Items[0].Score)

	source := &fakeSource{messages: sourceA.messages}
	svcB := NewPriorityService(newTestScorer(t), source, store, zap.NewNop(), ServiceOptions{
		Rules:        []SenderRule{{Matcher: "ceo@example.com", Weight: 1}},
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	})
	second, err := svcB.TopPriorities(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "a digest built with other rules is not reused")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "high", second.Items[0].Message.ID)
	assert.Equal(t, 1.0, second.Items[1].Score)

	// Same rules through another source, or other weights, also rebuild
	svcC := NewPriorityService(newTestScorer(t), source, store, zap.NewNop(), ServiceOptions{
		Rules:        []SenderRule{{Matcher: "ceo@example.com", Weight: 1}},
		CacheEnabled: true,
		CacheTTL:     time.Hour,
		SourceName:   "files:/var/mail",
	})
	_, err = svcC.TopPriorities(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)

	svcD := NewPriorityService(newTestScorer(t, func(w *Weights) { w.HighImportanceBonus = 4 }), source, store, zap.NewNop(), ServiceOptions{
		Rules:        []SenderRule{{Matcher: "ceo@example.com", Weight: 1}},
		CacheEnabled: true,
		CacheTTL:     time.Hour,
		SourceName:   "files:/var/mail",
	})
	_, err = svcD.TopPriorities(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)

	// An identical configuration hits the cache
	_, err = svcD.TopPriorities(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)
}

func TestFingerprint(t *testing.T) {
	w := DefaultWeights()
	a := Fingerprint("graph", []SenderRule{{Matcher: "a@example.com", Weight: 2}, {Matcher: "@example.org", Weight: 3}}, w)
	b := Fingerprint("graph", []SenderRule{{Matcher: "@example.org", Weight: 3}, {Matcher: "A@Example.com", Weight: 2}}, w)
	assert.Equal(t, a, b, "rule order and case do not matter")

	assert.NotEqual(t, a, Fingerprint("graph", []SenderRule{{Matcher: "a@example.com", Weight: 2}}, w))
	assert.NotEqual(t, a, Fingerprint("files", []SenderRule{{Matcher: "a@example.com", Weight: 2}, {Matcher: "@example.org", Weight: 3}}, w))

	w.RecentWindow = 2 * time.Hour
	assert.NotEqual(t, a, Fingerprint("graph", []SenderRule{{Matcher: "a@example.com", Weight: 2}, {Matcher: "@example.org", Weight: 3}}, w))
}

func TestPriorityService_PropagatesErrors(t *testing.T) {
	svc, source, _ := serviceFixture(t, ServiceOptions{})
	source.err = errors.New("graph down")

	_, err := svc.TopPriorities(context.Background(), DigestRequest{Mailbox: "me", Now: refNow, Limit: 5})
	assert.ErrorContains(t, err, "graph down")

	svc, _, _ = serviceFixture(t, ServiceOptions{Rules: []SenderRule{{Matcher: "nonsense", Weight: 3}}})
	_, err = svc.TopPriorities(context.Background(), DigestRequest{Mailbox: "me", Now: refNow, Limit: 5})
	assert.ErrorIs(t, err, ErrInvalidRuleKind)
}

func TestPriorityService_Briefing(t *testing.T) {
	events := &fakeEvents{events: []Event{{Subject: "Standup"}}}
	svc, _, _ := serviceFixture(t, ServiceOptions{
		Events:     events,
		Summarizer: &fakeSummarizer{summary: "Busy day."},
	})

	briefing, err := svc.Briefing(context.Background(), DigestRequest{Mailbox: "me", Now: refNow, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, briefing.Digest.Items, 2)
	assert.Equal(t, events.events, briefing.Events)
	assert.Equal(t, "Busy day.", briefing.Summary)
}

func messageIDs(messages []Message) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestPriorityService_BriefingListsEveryMessage(t *testing.T) {
	svc, source, _ := serviceFixture(t, ServiceOptions{})

	briefing, err := svc.Briefing(context.Background(), DigestRequest{Mailbox: "me", Now: refNow, Limit: 1})
	require.NoError(t, err)
	require.Len(t, briefing.Digest.Items, 1)
	assert.Equal(t, []string{"high", "plain", "ruled"}, messageIDs(briefing.Messages))
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, "plain", source.messages[0].ID, "source order is left alone")
}

func TestPriorityService_BriefingRefetchesOnCacheHit(t *testing.T) {
	svc, source, store := serviceFixture(t, ServiceOptions{CacheEnabled: true, CacheTTL: time.Hour})
	ctx := context.Background()
	req := DigestRequest{Mailbox: "me", Now: refNow, Limit: 5}

	_, err := svc.TopPriorities(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	briefing, err := svc.Briefing(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, 1, store.sets, "briefing served the cached digest")
	assert.Len(t, briefing.Messages, 3)
	assert.Equal(t, source.start, briefing.Digest.WindowStart)

	source.err = errors.New("graph down")
	_, err = svc.Briefing(ctx, req)
	assert.ErrorContains(t, err, "graph down")
}

func TestPriorityService_BriefingSurvivesSummarizerFailure(t *testing.T) {
	svc, _, _ := serviceFixture(t, ServiceOptions{Summarizer: &fakeSummarizer{err: errors.New("quota")}})

	briefing, err := svc.Briefing(context.Background(), DigestRequest{Mailbox: "me", Now: refNow, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, briefing.Summary)
	assert.NotNil(t, briefing.Digest)
}
