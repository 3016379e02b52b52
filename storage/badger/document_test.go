package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/secondbrain/core"
	"github.com/poiesic/secondbrain/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepository_AddAndGet(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 9, 14, 0, 0, 0, time.UTC)
	added, err := repos.Documents.AddDocuments(ctx, &core.Document{
		SourceType: core.SourceTypeText,
		Title:      "Notes",
		Content:    "hello world",
		CreatedAt:  created,
		Metadata:   map[string]string{"origin": "test"},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)

	doc := added[0]
	assert.NotZero(t, doc.Id)
	assert.Equal(t, core.StatusPending, doc.Status)
	assert.Equal(t, int64(len("hello world")), doc.Size)
	assert.False(t, doc.IngestedAt.IsZero())

	got, err := repos.Documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, "Notes", got.Title)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, "test", got.Metadata["origin"])

	_, err = repos.Documents.GetDocument(ctx, doc.Id+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_AddValidation(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	_, err := repos.Documents.AddDocuments(ctx, &core.Document{SourceType: 99})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)

	_, err = repos.Documents.AddDocuments(ctx, &core.Document{
		SourceType: core.SourceTypeText,
		CreatedAt:  time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, core.ErrInvalidTimestamp)
}

func TestDocumentRepository_StatusTransitions(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	added, err := repos.Documents.AddDocuments(ctx, &core.Document{SourceType: core.SourceTypeText, Content: "x"})
	require.NoError(t, err)
	doc := added[0]

	doc.Status = core.StatusCompleted
	_, err = repos.Documents.UpdateDocuments(ctx, doc)
	assert.ErrorIs(t, err, core.ErrInvalidStatusTransition)

	doc.Status = core.StatusProcessing
	_, err = repos.Documents.UpdateDocuments(ctx, doc)
	require.NoError(t, err)

	doc.Status = core.StatusFailed
	doc.Metadata = map[string]string{core.MetadataError: "boom"}
	_, err = repos.Documents.UpdateDocuments(ctx, doc)
	require.NoError(t, err)

	doc.Status = core.StatusProcessing
	_, err = repos.Documents.UpdateDocuments(ctx, doc)
	assert.ErrorIs(t, err, core.ErrInvalidStatusTransition)

	got, err := repos.Documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Metadata[core.MetadataError])
}

func TestDocumentRepository_UpdateKeepsCreatedAt(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	created := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	added, err := repos.Documents.AddDocuments(ctx, &core.Document{SourceType: core.SourceTypeText, CreatedAt: created})
	require.NoError(t, err)

	doc := added[0]
	doc.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	doc.Title = "renamed"
	_, err = repos.Documents.UpdateDocuments(ctx, doc)
	require.NoError(t, err)

	got, err := repos.Documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = repos.Documents.UpdateDocuments(ctx, &core.Document{Id: 9999, SourceType: core.SourceTypeText})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_DeleteCascades(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	doc := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText, Content: "a b"}, "first", "second")

	count, err := repos.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repos.Documents.DeleteDocuments(ctx, doc.Id))

	_, err = repos.Documents.GetDocument(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err = repos.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	chunks, err := repos.Chunks.GetChunksByDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.ErrorIs(t, repos.Documents.DeleteDocuments(ctx, doc.Id), storage.ErrNotFound)
}

func TestDocumentRepository_ListDocuments(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := repos.Documents.AddDocuments(ctx, &core.Document{
			SourceType: core.SourceTypeText,
			Title:      string(rune('a' + i)),
			CreatedAt:  base.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}

	page, err := repos.Documents.ListDocuments(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "e", page[0].Title)
	assert.Equal(t, "d", page[1].Title)

	page, err = repos.Documents.ListDocuments(ctx, 4, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].Title)

	_, err = repos.Documents.ListDocuments(ctx, -1, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	_, err = repos.Documents.ListDocuments(ctx, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestDocumentRepository_GetDocumentsByDateRange(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	days := []time.Time{
		time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 9, 23, 59, 59, 999999000, time.UTC),
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range days {
		_, err := repos.Documents.AddDocuments(ctx, &core.Document{SourceType: core.SourceTypeText, CreatedAt: d})
		require.NoError(t, err)
	}

	docs, err := repos.Documents.GetDocumentsByDateRange(ctx,
		time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 9, 23, 59, 59, 999999000, time.UTC))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, days[1].Equal(docs[0].CreatedAt))
	assert.True(t, days[2].Equal(docs[1].CreatedAt))
}

func TestDocumentRepository_FindDocuments(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	ml := core.TagID("ML")
	cooking := core.TagID("cooking")

	textJan := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText, CreatedAt: jan, Tags: []core.ID{ml}})
	pdfFeb := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypePDF, CreatedAt: feb, Tags: []core.ID{ml, cooking}})
	webJan := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeWeb, CreatedAt: jan})
	_, err := repos.Documents.AddDocuments(ctx, &core.Document{SourceType: core.SourceTypeText, CreatedAt: jan, Tags: []core.ID{ml}})
	require.NoError(t, err)

	ids := func(docs []*core.Document) []core.ID {
		out := make([]core.ID, len(docs))
		for i, d := range docs {
			out[i] = d.Id
		}
		return out
	}

	tests := []struct {
		name     string
		filters  *core.Filters
		expected []core.ID
	}{
		{name: "no filters returns completed only", filters: nil, expected: []core.ID{textJan.Id, pdfFeb.Id, webJan.Id}},
		{name: "source type union", filters: &core.Filters{SourceTypes: []core.SourceType{core.SourceTypePDF, core.SourceTypeWeb}}, expected: []core.ID{pdfFeb.Id, webJan.Id}},
		{name: "tag case-insensitive", filters: &core.Filters{Tags: []string{"ml"}}, expected: []core.ID{textJan.Id, pdfFeb.Id}},
		{name: "tag union", filters: &core.Filters{Tags: []string{"cooking", "unknown"}}, expected: []core.ID{pdfFeb.Id}},
		{
			name:     "date range",
			filters:  &core.Filters{DateRange: &core.DateRange{Start: jan.AddDate(0, 0, -1), End: jan.AddDate(0, 0, 1)}},
			expected: []core.ID{textJan.Id, webJan.Id},
		},
		{
			name: "dimensions intersect",
			filters: &core.Filters{
				Tags:      []string{"ML"},
				DateRange: &core.DateRange{Start: jan.AddDate(0, 0, -1), End: jan.AddDate(0, 0, 1)},
			},
			expected: []core.ID{textJan.Id},
		},
		{name: "no match", filters: &core.Filters{SourceTypes: []core.SourceType{core.SourceTypeAudio}}, expected: []core.ID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := repos.Documents.FindDocuments(ctx, tt.filters)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, ids(docs))
		})
	}

	t.Run("invalid filters", func(t *testing.T) {
		_, err := repos.Documents.FindDocuments(ctx, &core.Filters{SourceTypes: []core.SourceType{42}})
		assert.ErrorIs(t, err, core.ErrInvalidFilters)
	})
}

func TestDocumentRepository_TagIndexFollowsUpdates(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	doc := addCompletedDocument(t, repos, &core.Document{SourceType: core.SourceTypeText, Tags: []core.ID{core.TagID("old")}})

	doc.Tags = []core.ID{core.TagID("new")}
	_, err := repos.Documents.UpdateDocuments(ctx, doc)
	require.NoError(t, err)

	found, err := repos.Documents.FindDocuments(ctx, &core.Filters{Tags: []string{"old"}})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = repos.Documents.FindDocuments(ctx, &core.Filters{Tags: []string{"new"}})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestDocumentRepository_CountDocuments(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	count, size, err := repos.Documents.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, size)

	_, err = repos.Documents.AddDocuments(ctx,
		&core.Document{SourceType: core.SourceTypeText, Content: "abc"},
		&core.Document{SourceType: core.SourceTypeText, Content: "defgh"},
	)
	require.NoError(t, err)

	count, size, err = repos.Documents.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(8), size)
}
