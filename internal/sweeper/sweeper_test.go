package sweeper

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noteshare/internal/domain"
	"noteshare/internal/repository/memory"
	"noteshare/internal/storage"
)

func setup(t *testing.T, now time.Time) (Sweeper, *storage.LocalService, *memory.NoteRepository) {
	t.Helper()
	store, err := storage.NewLocalService(t.TempDir())
	require.NoError(t, err)
	notes := memory.NewNoteRepository()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := New(Config{
		Interval: time.Hour,
		Grace:    time.Hour,
		Logger:   logger,
		Now:      func() time.Time { return now },
	}, notes, store)
	return s, store, notes
}

func put(t *testing.T, store storage.Service, key string) {
	t.Helper()
	_, err := store.Put(context.Background(), key, strings.NewReader("data"), 4, "text/plain")
	require.NoError(t, err)
}

func keys(t *testing.T, store storage.Service) []string {
	t.Helper()
	objects, err := store.ListObjects(context.Background(), "")
	require.NoError(t, err)
	out := make([]string, len(objects))
	for i, obj := range objects {
		out[i] = obj.Key
	}
	return out
}

func TestSweepOnce_RemovesOnlyOldOrphans(t *testing.T) {
	ctx := context.Background()
	s, store, notes := setup(t, time.Now().Add(2*time.Hour))

	put(t, store, "kept.pdf")
	put(t, store, "orphan.pdf")
	require.NoError(t, notes.Create(ctx, &domain.Note{
		Title: "Kept", Subject: "Math", FileName: "kept.pdf", OriginalName: "kept.pdf",
		MimeType: "application/pdf", Size: 4, UploadedBy: "u1",
	}))

	removed, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"kept.pdf"}, keys(t, store))
}

func TestSweepOnce_RespectsGrace(t *testing.T) {
	ctx := context.Background()
	s, store, _ := setup(t, time.Now())

	put(t, store, "fresh.pdf")

	removed, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, []string{"fresh.pdf"}, keys(t, store))
}

func TestStartShutdown(t *testing.T) {
	s, _, _ := setup(t, time.Now())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	s.Shutdown()
}
