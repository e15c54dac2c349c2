package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"noteshare/internal/domain"
	"noteshare/internal/repository"
)

const (
	createNotesTable = `
CREATE TABLE IF NOT EXISTS notes (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	subject TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL,
	original_name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size INTEGER NOT NULL,
	uploaded_by TEXT NOT NULL,
	downloads INTEGER NOT NULL DEFAULT 0,
	rating REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_subject ON notes(subject);
CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
`

	createNoteRatingsTable = `
CREATE TABLE IF NOT EXISTS note_ratings (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	value INTEGER NOT NULL CHECK (value BETWEEN 1 AND 5),
	UNIQUE(note_id, user_id),
	FOREIGN KEY(note_id) REFERENCES notes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_note_ratings_note_id ON note_ratings(note_id);
`

	selectNote = `
SELECT id, title, subject, description, file_name, original_name, mime_type, size, uploaded_by, downloads, rating, created_at, updated_at
FROM notes`
)

type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) repository.NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createNotesTable); err != nil {
		return fmt.Errorf("create notes table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createNoteRatingsTable); err != nil {
		return fmt.Errorf("create note_ratings table: %w", err)
	}
	return nil
}

func (r *NoteRepository) Create(ctx context.Context, note *domain.Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	note.UpdatedAt = note.CreatedAt
	note.Downloads = 0
	note.Ratings = nil
	note.Rating = 0

	_, err := r.db.ExecContext(ctx, `
INSERT INTO notes (id, title, subject, description, file_name, original_name, mime_type, size, uploaded_by, downloads, rating, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		note.ID,
		note.Title,
		note.Subject,
		note.Description,
		note.FileName,
		note.OriginalName,
		note.MimeType,
		note.Size,
		note.UploadedBy,
		note.CreatedAt.UTC(),
		note.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert note: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (r *NoteRepository) Get(ctx context.Context, id string) (*domain.Note, error) {
	note, err := scanNote(r.db.QueryRowContext(ctx, selectNote+` WHERE id=?`, id))
	if err != nil {
		return nil, err
	}
	ratings, err := r.listRatings(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	note.Ratings = ratings
	return note, nil
}

func (r *NoteRepository) List(ctx context.Context, filter domain.NoteFilter, page domain.Page) ([]domain.Note, int, error) {
	var (
		clauses []string
		args    []any
	)
	if subject := filter.SubjectValue(); subject != "" {
		clauses = append(clauses, "subject = ?")
		args = append(args, subject)
	}
	if search := filter.SearchValue(); search != "" {
		needle := strings.ToLower(search)
		clauses = append(clauses, "(instr(lower(title), ?) > 0 OR instr(lower(description), ?) > 0)")
		args = append(args, needle, needle)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	query := selectNote + where + ` ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notes: %w", err)
	}
	// the single connection is released before ratings are loaded
	rows.Close()

	for i := range notes {
		ratings, err := r.listRatings(ctx, notes[i].ID)
		if err != nil {
			return nil, 0, err
		}
		notes[i].Ratings = ratings
	}

	return notes, total, nil
}

func (r *NoteRepository) IncrementDownloads(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE notes
SET downloads = downloads + 1
WHERE id=?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment downloads: %w", err)
	}
	return expectAffected(res, "increment downloads")
}

func (r *NoteRepository) UpsertRating(ctx context.Context, id, userID string, value int) (*domain.Note, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	note, err := scanNote(tx.QueryRowContext(ctx, selectNote+` WHERE id=?`, id))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO note_ratings (note_id, user_id, value)
VALUES (?, ?, ?)
ON CONFLICT(note_id, user_id) DO UPDATE SET value=excluded.value`,
		id,
		userID,
		value,
	); err != nil {
		return nil, fmt.Errorf("upsert rating: %w", err)
	}

	ratings, err := queryRatings(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	note.Ratings = ratings
	note.Rating = domain.AverageRating(ratings)
	note.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
UPDATE notes
SET rating=?, updated_at=?
WHERE id=?`,
		note.Rating,
		note.UpdatedAt,
		id,
	); err != nil {
		return nil, fmt.Errorf("update rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rating: %w", err)
	}
	return note, nil
}

func (r *NoteRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_ratings WHERE note_id=?`, id); err != nil {
		return fmt.Errorf("delete note ratings: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if err := expectAffected(res, "delete note"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit note delete: %w", err)
	}
	return nil
}

func (r *NoteRepository) FileNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT file_name FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("query file names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan file name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *NoteRepository) listRatings(ctx context.Context, noteID string) ([]domain.Rating, error) {
	return queryRatings(ctx, r.db, noteID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRatings(ctx context.Context, q querier, noteID string) ([]domain.Rating, error) {
	rows, err := q.QueryContext(ctx, `
SELECT user_id, value
FROM note_ratings
WHERE note_id=?
ORDER BY seq ASC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(&rating.UserID, &rating.Value); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

func scanNote(scanner interface {
	Scan(dest ...any) error
}) (*domain.Note, error) {
	var note domain.Note
	if err := scanner.Scan(
		&note.ID,
		&note.Title,
		&note.Subject,
		&note.Description,
		&note.FileName,
		&note.OriginalName,
		&note.MimeType,
		&note.Size,
		&note.UploadedBy,
		&note.Downloads,
		&note.Rating,
		&note.CreatedAt,
		&note.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}
	return &note, nil
}
