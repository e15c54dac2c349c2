package repository

import (
	"context"

	"noteshare/internal/domain"
)

// NoteRepository persists note metadata and its derived counters.
type NoteRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, note *domain.Note) error
	Get(ctx context.Context, id string) (*domain.Note, error)
	// List returns the requested page of notes matching filter, newest first,
	// together with the total number of matches.
	List(ctx context.Context, filter domain.NoteFilter, page domain.Page) ([]domain.Note, int, error)
	// IncrementDownloads adds one to the download counter without a
	// read-modify-write cycle.
	IncrementDownloads(ctx context.Context, id string) error
	// UpsertRating records the rater's value and stores the recomputed average.
	UpsertRating(ctx context.Context, id, userID string, value int) (*domain.Note, error)
	Delete(ctx context.Context, id string) error
	// FileNames returns the storage key of every note.
	FileNames(ctx context.Context) ([]string, error)
}
