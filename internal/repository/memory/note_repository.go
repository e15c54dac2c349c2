package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"noteshare/internal/domain"
	"noteshare/internal/repository"
)

type NoteRepository struct {
	mu    sync.RWMutex
	seq   int64
	notes map[string]*noteRecord
}

type noteRecord struct {
	seq  int64
	note domain.Note
}

func NewNoteRepository() *NoteRepository {
	return &NoteRepository{notes: make(map[string]*noteRecord)}
}

var _ repository.NoteRepository = (*NoteRepository)(nil)

func (r *NoteRepository) Init(context.Context) error {
	return nil
}

func (r *NoteRepository) Create(_ context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if _, ok := r.notes[note.ID]; ok {
		return fmt.Errorf("insert note: %w", repository.ErrDuplicate)
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	note.UpdatedAt = note.CreatedAt
	note.Downloads = 0
	note.Ratings = nil
	note.Rating = 0

	r.seq++
	r.notes[note.ID] = &noteRecord{seq: r.seq, note: *note}
	return nil
}

func (r *NoteRepository) Get(_ context.Context, id string) (*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	note := cloneNote(rec.note)
	return &note, nil
}

func (r *NoteRepository) List(_ context.Context, filter domain.NoteFilter, page domain.Page) ([]domain.Note, int, error) {
	r.mu.RLock()
	matched := make([]*noteRecord, 0, len(r.notes))
	for _, rec := range r.notes {
		if filter.Matches(rec.note) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return newer(matched[i].note.CreatedAt, matched[i].seq, matched[j].note.CreatedAt, matched[j].seq)
	})

	total := len(matched)
	start := min(max(page.Offset(), 0), total)
	end := min(start+max(page.Limit, 0), total)

	notes := make([]domain.Note, 0, end-start)
	for _, rec := range matched[start:end] {
		notes = append(notes, cloneNote(rec.note))
	}
	r.mu.RUnlock()

	return notes, total, nil
}

func (r *NoteRepository) IncrementDownloads(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.notes[id]
	if !ok {
		return fmt.Errorf("increment downloads: %w", repository.ErrNotFound)
	}
	rec.note.Downloads++
	return nil
}

func (r *NoteRepository) UpsertRating(_ context.Context, id, userID string, value int) (*domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec.note.ApplyRating(userID, value)
	rec.note.UpdatedAt = time.Now().UTC()
	note := cloneNote(rec.note)
	return &note, nil
}

func (r *NoteRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return fmt.Errorf("delete note: %w", repository.ErrNotFound)
	}
	delete(r.notes, id)
	return nil
}

func (r *NoteRepository) FileNames(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.notes))
	for _, rec := range r.notes {
		names = append(names, rec.note.FileName)
	}
	return names, nil
}

func cloneNote(n domain.Note) domain.Note {
	if n.Ratings != nil {
		n.Ratings = append([]domain.Rating(nil), n.Ratings...)
	}
	return n
}
