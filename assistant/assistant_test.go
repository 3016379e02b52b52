package assistant

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/secondbrain/ai"
	"github.com/poiesic/secondbrain/ai/mock"
	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/ingestion"
	"github.com/poiesic/secondbrain/search"
	"github.com/poiesic/secondbrain/storage/badger"
	"github.com/poiesic/secondbrain/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	assistant *Assistant
	responder *mock.MockResponder
	history   *sqlite.HistoryStore
	pipeline  *ingestion.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 128
	gen, err := ai.NewGenerator(embedder, ai.NewConfig(ai.WithDimensions(128), ai.WithQueryCacheSize(0)))
	require.NoError(t, err)
	t.Cleanup(gen.Close)

	pipeline, err := ingestion.NewPipeline(repos.Documents, repos.Chunks, repos.Tags, gen, ingestion.WithPoolSize(1))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	searcher, err := search.NewSearcher(repos.Chunks, gen)
	require.NoError(t, err)

	history, err := sqlite.OpenHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	responder := mock.NewMockResponder()
	assistant, err := New(searcher, responder, WithHistory(history))
	require.NoError(t, err)

	return &fixture{assistant: assistant, responder: responder, history: history, pipeline: pipeline}
}

func (f *fixture) ingest(t *testing.T, title, content string) *core.Document {
	t.Helper()
	doc, err := f.pipeline.IngestSync(context.Background(), &ingestion.Request{
		SourceType: core.SourceTypeText,
		Title:      title,
		Content:    content,
	})
	require.NoError(t, err)
	return doc
}

func TestNew(t *testing.T) {
	responder := mock.NewMockResponder()

	_, err := New(nil, responder)
	assert.Equal(t, ErrSearcherRequired, err)

	_, err = New(&stubSearcher{}, nil)
	assert.Equal(t, ErrResponderRequired, err)

	a, err := New(&stubSearcher{}, responder, WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestAsk(t *testing.T) {
	f := newFixture(t)
	doc := f.ingest(t, "Machine Learning Fundamentals",
		"Supervised learning trains a model on labeled examples so it can predict labels for new inputs.")
	ctx := context.Background()

	answer, err := f.assistant.Ask(ctx, &Request{Query: "what is supervised learning"})
	require.NoError(t, err)

	assert.Contains(t, answer.Response, "Machine Learning Fundamentals")
	assert.NotEmpty(t, answer.ConversationID)
	assert.NotEmpty(t, answer.ExchangeID)
	assert.Nil(t, answer.Degraded)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, doc.Id, answer.Sources[0].DocumentId)
	assert.Equal(t, "Machine Learning Fundamentals", answer.Sources[0].Title)
	assert.Contains(t, answer.Sources[0].Excerpt, "Supervised learning")

	prompt := f.responder.LastPrompt
	require.NotNil(t, prompt)
	assert.Equal(t, "what is supervised learning", prompt.Query)
	assert.NotEmpty(t, prompt.Passages)
	assert.Empty(t, prompt.History)

	exchanges, err := f.history.RecentExchanges(ctx, answer.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.Equal(t, answer.ExchangeID, exchanges[0].Id)
	assert.Equal(t, answer.Response, exchanges[0].Response)
	assert.Equal(t, answer.Sources[0].ChunkId, exchanges[0].ContextChunks[0])
}

func TestAsk_NoContext(t *testing.T) {
	f := newFixture(t)

	answer, err := f.assistant.Ask(context.Background(), &Request{Query: "what is supervised learning"})
	require.NoError(t, err)
	assert.Contains(t, answer.Response, "could not find anything")
	assert.Empty(t, answer.Sources)
}

func TestAsk_ConversationHistory(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "Notes", "Raft consensus elects a leader among replicas.")
	ctx := context.Background()

	first, err := f.assistant.Ask(ctx, &Request{Query: "raft consensus"})
	require.NoError(t, err)

	conv := first.ConversationID
	for i := 0; i < 6; i++ {
		answer, err := f.assistant.Ask(ctx, &Request{Query: fmt.Sprintf("follow up %d", i), ConversationID: conv})
		require.NoError(t, err)
		assert.Equal(t, conv, answer.ConversationID)
	}

	history := f.responder.LastPrompt.History
	require.Len(t, history, 2*HistoryExchanges)
	assert.Equal(t, ai.RoleUser, history[0].Role)
	assert.Equal(t, "follow up 0", history[0].Content)
	assert.Equal(t, ai.RoleAssistant, history[1].Role)
	assert.Equal(t, "follow up 4", history[len(history)-2].Content)

	// A different conversation starts fresh.
	other, err := f.assistant.Ask(ctx, &Request{Query: "raft consensus"})
	require.NoError(t, err)
	assert.NotEqual(t, conv, other.ConversationID)
	assert.Empty(t, f.responder.LastPrompt.History)
}

func TestAskStream(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "Notes", "Raft consensus elects a leader among replicas.")

	var pieces []string
	answer, err := f.assistant.AskStream(context.Background(), &Request{Query: "raft consensus"}, func(chunk string) error {
		pieces = append(pieces, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, len(pieces), 1)
	assert.Equal(t, answer.Response, strings.Join(pieces, ""))
	assert.NotEmpty(t, answer.ExchangeID)
}

func TestAskStream_AbortedByCallback(t *testing.T) {
	f := newFixture(t)
	errStop := errors.New("client went away")

	_, err := f.assistant.AskStream(context.Background(), &Request{Query: "raft consensus"}, func(string) error {
		return errStop
	})
	assert.ErrorIs(t, err, errStop)

	exchanges, err := f.history.ListExchanges(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, exchanges)
}

func TestAsk_EmptyQuery(t *testing.T) {
	f := newFixture(t)
	for _, req := range []*Request{nil, {Query: ""}, {Query: "  "}} {
		_, err := f.assistant.Ask(context.Background(), req)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
	assert.Zero(t, f.responder.CallCount())
}

type stubSearcher struct {
	resp *search.Response
	err  error
}

func (s *stubSearcher) Search(ctx context.Context, query string, filters *core.Filters, limit int) (*search.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.resp == nil {
		return &search.Response{Results: []*core.SearchResult{}}, nil
	}
	return s.resp, nil
}

func TestAsk_SearchFailures(t *testing.T) {
	t.Run("all signals failed answers without context", func(t *testing.T) {
		responder := mock.NewMockResponder()
		a, err := New(&stubSearcher{err: fmt.Errorf("%w: boom", search.ErrAllSignalsFailed)}, responder)
		require.NoError(t, err)

		answer, err := a.Ask(context.Background(), &Request{Query: "raft"})
		require.NoError(t, err)
		assert.Empty(t, answer.Sources)
		assert.Empty(t, answer.ExchangeID, "no history configured")
		assert.Equal(t, 1, responder.CallCount())
	})

	t.Run("invalid input is returned", func(t *testing.T) {
		a, err := New(&stubSearcher{err: core.ErrInvalidFilters}, mock.NewMockResponder())
		require.NoError(t, err)

		_, err = a.Ask(context.Background(), &Request{Query: "raft"})
		assert.ErrorIs(t, err, core.ErrInvalidFilters)
	})

	t.Run("degradation is reported", func(t *testing.T) {
		degraded := &search.Degradation{Signal: search.SignalSemantic, Reason: "embedding backend down"}
		a, err := New(&stubSearcher{resp: &search.Response{Results: []*core.SearchResult{}, Degraded: degraded}}, mock.NewMockResponder())
		require.NoError(t, err)

		answer, err := a.Ask(context.Background(), &Request{Query: "raft"})
		require.NoError(t, err)
		assert.Equal(t, degraded, answer.Degraded)
	})
}

func TestAsk_ResponderFailure(t *testing.T) {
	f := newFixture(t)
	f.responder.RespondFunc = func(ctx context.Context, prompt *ai.Prompt) (string, error) {
		return "", errors.New("model overloaded")
	}

	_, err := f.assistant.Ask(context.Background(), &Request{Query: "raft consensus"})
	assert.ErrorContains(t, err, "model overloaded")
}

func TestSources(t *testing.T) {
	created := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	passages := make([]*core.SearchResult, 7)
	for i := range passages {
		passages[i] = &core.SearchResult{
			ChunkId:    core.ID(i + 1),
			DocumentId: core.ID(100 + i),
			Title:      fmt.Sprintf("doc %d", i),
			Content:    "  " + strings.Repeat("x", 250) + "  ",
			CreatedAt:  created,
			Score:      1 / float64(i+1),
		}
	}

	got := sources(passages)
	require.Len(t, got, MaxSources)
	assert.Equal(t, core.ID(1), got[0].ChunkId)
	assert.Equal(t, strings.Repeat("x", ExcerptChars)+"...", got[0].Excerpt)
	assert.Equal(t, created, got[4].CreatedAt)
	assert.Empty(t, sources(nil))
}
