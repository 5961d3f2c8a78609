package factory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/filter"
	"github.com/mikey/mail-priority/internal/adapters/graph"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

const ceoMessage = "From: Pat CEO <CEO@example.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Board deck\r\n" +
	"Date: Tue, 14 May 2024 10:00:00 +0000\r\n" +
	"Message-ID: <deck@example.com>\r\n" +
	"Importance: high\r\n" +
	"\r\n" +
	"Please review.\r\n"

const newsletter = "From: news@lists.example.org\r\n" +
	"Subject: Weekly digest\r\n" +
	"Date: Tue, 14 May 2024 11:00:00 +0000\r\n" +
	"\r\n" +
	"Nothing urgent.\r\n"

func newConfig(t *testing.T, settings map[string]interface{}) *config.Config {
	t.Helper()
	v := config.NewEmptyViper()
	for k, val := range settings {
		v.Set(k, val)
	}
	return config.NewFromViper(v)
}

func writeMailDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.eml"), []byte(ceoMessage), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.eml"), []byte(newsletter), 0o600))
	return dir
}

func TestStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := NewStoreFactory(newConfig(t, nil), zap.NewNop()).CreateDigestStore(ctx)
		require.NoError(t, err)
		require.NotNil(t, s)
		s.Stop()
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "digests.db")
		cfg := newConfig(t, map[string]interface{}{
			"cache.type":        "sqlite",
			"cache.sqlite_path": path,
		})
		s, err := NewStoreFactory(cfg, zap.NewNop()).CreateDigestStore(ctx)
		require.NoError(t, err)
		defer s.Stop()

		_, err = s.Get(ctx, "me")
		assert.ErrorIs(t, err, core.ErrDigestNotFound)
		assert.FileExists(t, path)
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := newConfig(t, map[string]interface{}{"cache.type": "etcd"})
		s, err := NewStoreFactory(cfg, zap.NewNop()).CreateDigestStore(ctx)
		assert.ErrorContains(t, err, "unsupported cache type")
		assert.Nil(t, s)
	})

	t.Run("invalid ttl", func(t *testing.T) {
		cfg := newConfig(t, map[string]interface{}{"cache.ttl": "forever"})
		_, err := NewStoreFactory(cfg, zap.NewNop()).CreateDigestStore(ctx)
		assert.Error(t, err)
	})
}

func TestSourceFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("files", func(t *testing.T) {
		cfg := newConfig(t, map[string]interface{}{
			"source.type": "files",
			"source.path": writeMailDir(t),
		})
		sources, err := NewSourceFactory(cfg, zap.NewNop()).CreateSources(ctx)
		require.NoError(t, err)
		assert.NotNil(t, sources.Messages)
		assert.Nil(t, sources.Events)
	})

	t.Run("graph without credentials", func(t *testing.T) {
		_, err := NewSourceFactory(newConfig(t, nil), zap.NewNop()).CreateSources(ctx)
		assert.True(t, errors.Is(err, graph.ErrMissingCredentials))
	})

	t.Run("graph", func(t *testing.T) {
		cfg := newConfig(t, map[string]interface{}{
			"graph.tenant_id":     "tenant",
			"graph.client_id":     "client",
			"graph.client_secret": "secret",
		})
		sources, err := NewSourceFactory(cfg, zap.NewNop()).CreateSources(ctx)
		require.NoError(t, err)
		assert.NotNil(t, sources.Messages)
		assert.NotNil(t, sources.Events)
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := newConfig(t, map[string]interface{}{"source.type": "imap"})
		_, err := NewSourceFactory(cfg, zap.NewNop()).CreateSources(ctx)
		assert.ErrorContains(t, err, "unsupported source type")
	})
}

func TestSummarizerFactory(t *testing.T) {
	ctx := context.Background()
	tp := utils.NewTextProcessor(zap.NewNop())

	s, err := NewSummarizerFactory(newConfig(t, nil), zap.NewNop(), tp).CreateSummarizer(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	cfg := newConfig(t, map[string]interface{}{"llm.provider": "openai"})
	_, err = NewSummarizerFactory(cfg, zap.NewNop(), tp).CreateSummarizer(ctx)
	assert.ErrorContains(t, err, "API key")

	cfg = newConfig(t, map[string]interface{}{
		"llm.provider":   "openai",
		"openai.api_key": "sk-test",
	})
	s, err = NewSummarizerFactory(cfg, zap.NewNop(), tp).CreateSummarizer(ctx)
	require.NoError(t, err)
	assert.NotNil(t, s)

	cfg = newConfig(t, map[string]interface{}{"llm.provider": "gemini"})
	s, err = NewSummarizerFactory(cfg, zap.NewNop(), tp).CreateSummarizer(ctx)
	assert.Error(t, err)
	assert.Nil(t, s)

	cfg = newConfig(t, map[string]interface{}{"llm.provider": "llama"})
	_, err = NewSummarizerFactory(cfg, zap.NewNop(), tp).CreateSummarizer(ctx)
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestServiceFactory_TopPrioritiesFromFiles(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t, map[string]interface{}{
		"source.type":         "files",
		"source.path":         writeMailDir(t),
		config.KeySenderRules: "ceo@example.com:5",
	})
	logger := zap.NewNop()

	sources, err := NewSourceFactory(cfg, logger).CreateSources(ctx)
	require.NoError(t, err)

	f := NewServiceFactory(cfg, logger)
	scorer, err := f.CreateScorer()
	require.NoError(t, err)

	service, err := f.CreateService(scorer, sources, nil, nil)
	require.NoError(t, err)
	require.Len(t, service.Rules(), 1)

	// Wednesday; the previous work day is Tuesday 14 May
	now := time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	digest, err := service.TopPriorities(ctx, core.DigestRequest{Mailbox: "me", Now: now, Limit: 5})
	require.NoError(t, err)

	require.Len(t, digest.Items, 1)
	item := digest.Items[0]
	assert.Equal(t, "ceo@example.com", item.Message.SenderAddress)
	assert.Equal(t, 8.0, item.Score)
	assert.Equal(t, []string{
		"Marked as high importance",
		"Sender matches address priority rule (+5)",
	}, item.Reasons)
}

func TestServiceFactory_InvalidRules(t *testing.T) {
	cfg := newConfig(t, map[string]interface{}{config.KeySenderRules: "not-an-address-or-domain:3"})
	f := NewServiceFactory(cfg, zap.NewNop())

	scorer, err := f.CreateScorer()
	require.NoError(t, err)

	_, err = f.CreateService(scorer, Sources{}, nil, nil)
	assert.ErrorIs(t, err, core.ErrInvalidRuleKind)
}

func TestFilterFactory(t *testing.T) {
	cfg := newConfig(t, nil)
	logger := zap.NewNop()
	f := NewServiceFactory(cfg, logger)
	scorer, err := f.CreateScorer()
	require.NoError(t, err)
	service, err := f.CreateService(scorer, Sources{}, nil, nil)
	require.NoError(t, err)
	tp := utils.NewTextProcessor(logger)

	pf, err := NewFilterFactory(cfg, logger, service, tp).CreatePriorityFilter()
	require.NoError(t, err)
	assert.IsType(t, &filter.PostfixFilter{}, pf)

	cfg = newConfig(t, map[string]interface{}{"server.filter_type": "cli"})
	pf, err = NewFilterFactory(cfg, logger, service, tp).CreatePriorityFilter()
	require.NoError(t, err)
	assert.IsType(t, &filter.CliFilter{}, pf)

	cfg = newConfig(t, map[string]interface{}{"server.filter_type": "milter"})
	_, err = NewFilterFactory(cfg, logger, service, tp).CreatePriorityFilter()
	assert.ErrorContains(t, err, "unsupported filter type")
}
