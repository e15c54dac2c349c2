// Package repotest holds behavioural tests every repository backend must pass.
package repotest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noteshare/internal/domain"
	"noteshare/internal/repository"
)

// UserRepositoryFactory returns a fresh, initialised repository.
type UserRepositoryFactory func(t *testing.T) repository.UserRepository

// NoteRepositoryFactory returns a fresh, initialised repository.
type NoteRepositoryFactory func(t *testing.T) repository.NoteRepository

func RunUserRepositoryTests(t *testing.T, newRepo UserRepositoryFactory) {
	ctx := context.Background()

	t.Run("create and lookup", func(t *testing.T) {
		repo := newRepo(t)
		user := &domain.User{Username: "alice", Email: "alice@u.edu", PasswordHash: "hash", Role: domain.RoleUser}
		require.NoError(t, repo.Create(ctx, user))
		require.NotEmpty(t, user.ID)

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
		assert.Equal(t, domain.RoleUser, byID.Role)

		byEmail, err := repo.GetByEmail(ctx, "ALICE@u.edu")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		byName, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
	})

	t.Run("duplicates", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, &domain.User{Username: "alice", Email: "alice@u.edu", PasswordHash: "h", Role: domain.RoleUser}))

		err := repo.Create(ctx, &domain.User{Username: "other", Email: "alice@u.edu", PasswordHash: "h", Role: domain.RoleUser})
		assert.ErrorIs(t, err, repository.ErrDuplicate)

		err = repo.Create(ctx, &domain.User{Username: "alice", Email: "other@u.edu", PasswordHash: "h", Role: domain.RoleUser})
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = repo.GetByEmail(ctx, "nobody@u.edu")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, repo.UpdatePassword(ctx, "missing", "x"), repository.ErrNotFound)
	})

	t.Run("update password", func(t *testing.T) {
		repo := newRepo(t)
		user := &domain.User{Username: "bob", Email: "bob@u.edu", PasswordHash: "old", Role: domain.RoleUser}
		require.NoError(t, repo.Create(ctx, user))
		require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new"))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, name := range []string{"first", "second", "third"} {
			require.NoError(t, repo.Create(ctx, &domain.User{
				Username:     name,
				Email:        name + "@u.edu",
				PasswordHash: "h",
				Role:         domain.RoleUser,
				CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			}))
		}
		users, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 3)
		assert.Equal(t, "third", users[0].Username)
		assert.Equal(t, "first", users[2].Username)
	})
}

func RunNoteRepositoryTests(t *testing.T, newRepo NoteRepositoryFactory) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newNote := func(title, subject string, at time.Time) *domain.Note {
		return &domain.Note{
			Title:        title,
			Subject:      subject,
			FileName:     title + ".pdf",
			OriginalName: title + ".pdf",
			MimeType:     "application/pdf",
			Size:         42,
			UploadedBy:   "user-1",
			CreatedAt:    at,
		}
	}

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		note := newNote("Notes", "Math", base)
		note.Description = "intro"
		require.NoError(t, repo.Create(ctx, note))
		require.NotEmpty(t, note.ID)

		got, err := repo.Get(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "Notes", got.Title)
		assert.Equal(t, "intro", got.Description)
		assert.Equal(t, int64(0), got.Downloads)
		assert.Zero(t, got.Rating)
		assert.Empty(t, got.Ratings)
		assert.True(t, base.Equal(got.CreatedAt))

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list order and pagination", func(t *testing.T) {
		repo := newRepo(t)
		var want []string
		for i := 0; i < 7; i++ {
			note := newNote(fmt.Sprintf("note-%d", i), "Math", base.Add(time.Duration(i)*time.Second))
			require.NoError(t, repo.Create(ctx, note))
			want = append([]string{note.ID}, want...)
		}

		var got []string
		for p := 1; p <= 3; p++ {
			notes, total, err := repo.List(ctx, domain.NoteFilter{}, domain.Page{Page: p, Limit: 3})
			require.NoError(t, err)
			assert.Equal(t, 7, total)
			for _, n := range notes {
				got = append(got, n.ID)
			}
		}
		assert.Equal(t, want, got)

		notes, total, err := repo.List(ctx, domain.NoteFilter{}, domain.Page{Page: 4, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		assert.Empty(t, notes)

		notes, total, err = repo.List(ctx, domain.NoteFilter{}, domain.Page{Page: math.MaxInt, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		assert.Empty(t, notes)
	})

	t.Run("equal timestamps keep insertion order", func(t *testing.T) {
		repo := newRepo(t)
		first := newNote("first", "Math", base)
		second := newNote("second", "Math", base)
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))

		notes, _, err := repo.List(ctx, domain.NoteFilter{}, domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, notes, 2)
		assert.Equal(t, second.ID, notes[0].ID)
		assert.Equal(t, first.ID, notes[1].ID)
	})

	t.Run("filters", func(t *testing.T) {
		repo := newRepo(t)
		calculus := newNote("Advanced Calculus Notes", "Math", base)
		physics := newNote("Physics Lab", "Physics", base.Add(time.Second))
		physics.Description = "Measuring g with a pendulum"
		require.NoError(t, repo.Create(ctx, calculus))
		require.NoError(t, repo.Create(ctx, physics))

		notes, total, err := repo.List(ctx, domain.NoteFilter{Search: "calc"}, domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, notes, 1)
		assert.Equal(t, calculus.ID, notes[0].ID)

		notes, _, err = repo.List(ctx, domain.NoteFilter{Search: "PENDULUM"}, domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, physics.ID, notes[0].ID)

		notes, _, err = repo.List(ctx, domain.NoteFilter{Subject: "Math"}, domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, calculus.ID, notes[0].ID)

		_, total, err = repo.List(ctx, domain.NoteFilter{Subject: "all"}, domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		_, total, err = repo.List(ctx, domain.NoteFilter{Subject: "ALL"}, domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 0, total)

		_, total, err = repo.List(ctx, domain.NoteFilter{Subject: "Math", Search: "lab"}, domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("concurrent downloads", func(t *testing.T) {
		repo := newRepo(t)
		note := newNote("Notes", "Math", base)
		require.NoError(t, repo.Create(ctx, note))

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.IncrementDownloads(ctx, note.ID)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := repo.Get(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), got.Downloads)

		assert.ErrorIs(t, repo.IncrementDownloads(ctx, "missing"), repository.ErrNotFound)
	})

	t.Run("ratings", func(t *testing.T) {
		repo := newRepo(t)
		note := newNote("Notes", "Math", base)
		require.NoError(t, repo.Create(ctx, note))

		_, err := repo.UpsertRating(ctx, note.ID, "a", 5)
		require.NoError(t, err)
		_, err = repo.UpsertRating(ctx, note.ID, "b", 4)
		require.NoError(t, err)
		rated, err := repo.UpsertRating(ctx, note.ID, "c", 4)
		require.NoError(t, err)
		assert.InDelta(t, 4.3, rated.Rating, 1e-9)

		rated, err = repo.UpsertRating(ctx, note.ID, "a", 1)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, rated.Rating, 1e-9)
		require.Len(t, rated.Ratings, 3)
		assert.Equal(t, domain.Rating{UserID: "a", Value: 1}, rated.Ratings[0])

		got, err := repo.Get(ctx, note.ID)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, got.Rating, 1e-9)
		assert.Len(t, got.Ratings, 3)

		_, err = repo.UpsertRating(ctx, "missing", "a", 3)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		note := newNote("Notes", "Math", base)
		require.NoError(t, repo.Create(ctx, note))
		_, err := repo.UpsertRating(ctx, note.ID, "a", 2)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, note.ID))
		_, err = repo.Get(ctx, note.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, note.ID), repository.ErrNotFound)
	})

	t.Run("file names", func(t *testing.T) {
		repo := newRepo(t)
		names, err := repo.FileNames(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		require.NoError(t, repo.Create(ctx, newNote("a", "Math", base)))
		require.NoError(t, repo.Create(ctx, newNote("b", "Math", base)))

		names, err = repo.FileNames(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, names)
	})
}
