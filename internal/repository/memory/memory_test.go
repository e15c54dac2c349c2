package memory

import (
	"testing"

	"noteshare/internal/repository"
	"noteshare/internal/repository/repotest"
)

func TestUserRepository(t *testing.T) {
	repotest.RunUserRepositoryTests(t, func(t *testing.T) repository.UserRepository {
		return NewUserRepository()
	})
}

func TestNoteRepository(t *testing.T) {
	repotest.RunNoteRepositoryTests(t, func(t *testing.T) repository.NoteRepository {
		return NewNoteRepository()
	})
}
