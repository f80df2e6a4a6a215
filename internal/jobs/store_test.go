package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
	"github.com/scrapegoat/scrapegoat/internal/extract"
)

func TestStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	store := NewStore()
	job := crawler.Job{ID: "j1", URL: "https://example.com", Status: crawler.JobStatusPending}
	require.NoError(t, store.Create(job))

	got, err := store.Get("j1")
	require.NoError(t, err)
	require.Equal(t, job, got)

	require.ErrorIs(t, store.Create(job), ErrAlreadyExists)

	_, err = store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListSubmissionOrder(t *testing.T) {
	t.Parallel()

	store := NewStore()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Create(crawler.Job{ID: id, Status: crawler.JobStatusPending}))
	}

	var ids []string
	for _, job := range store.List() {
		ids = append(ids, job.ID)
	}
	require.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestStoreUpdate(t *testing.T) {
	t.Parallel()

	store := NewStore()
	require.NoError(t, store.Create(crawler.Job{ID: "j1", Status: crawler.JobStatusPending}))

	updated, err := store.Update("j1", func(job *crawler.Job) {
		job.Status = crawler.JobStatusProcessing
	})
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusProcessing, updated.Status)

	got, err := store.Get("j1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusProcessing, got.Status)

	_, err = store.Update("missing", func(*crawler.Job) {})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreTerminalIsImmutable(t *testing.T) {
	t.Parallel()

	store := NewStore()
	require.NoError(t, store.Create(crawler.Job{ID: "j1", Status: crawler.JobStatusCompleted}))

	_, err := store.Update("j1", func(job *crawler.Job) {
		job.Status = crawler.JobStatusPending
	})
	require.ErrorIs(t, err, ErrTerminal)

	got, err := store.Get("j1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusCompleted, got.Status)
}

func TestStoreGetReturnsSnapshot(t *testing.T) {
	t.Parallel()

	store := NewStore()
	require.NoError(t, store.Create(crawler.Job{ID: "j1", URL: "https://example.com", Status: crawler.JobStatusPending}))

	got, err := store.Get("j1")
	require.NoError(t, err)
	got.URL = "mutated"

	again, err := store.Get("j1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", again.URL)
}

func TestStoreSnapshotsDetachResultPayload(t *testing.T) {
	t.Parallel()

	store := NewStore()
	require.NoError(t, store.Create(crawler.Job{ID: "j1", Status: crawler.JobStatusPending}))

	result := &extract.ScrapedData{
		URL:    "https://example.com",
		Images: []string{"https://example.com/a.png"},
	}
	result.SetMeta("key", "stored")
	_, err := store.Update("j1", func(job *crawler.Job) {
		job.Status = crawler.JobStatusCompleted
		job.Result = result
	})
	require.NoError(t, err)

	got, err := store.Get("j1")
	require.NoError(t, err)
	require.NotSame(t, result, got.Result)

	got.Result.Metadata["key"] = "mutated"
	got.Result.Images[0] = "mutated"

	again, err := store.Get("j1")
	require.NoError(t, err)
	require.Equal(t, "stored", again.Result.Metadata["key"])
	require.Equal(t, "https://example.com/a.png", again.Result.Images[0])

	listed := store.List()
	require.Len(t, listed, 1)
	require.Equal(t, "stored", listed[0].Result.Metadata["key"])
}
