// Package memory keeps users and notes in process-local maps. It is meant for
// tests and throwaway instances; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"noteshare/internal/domain"
	"noteshare/internal/repository"
)

type UserRepository struct {
	mu      sync.RWMutex
	seq     int64
	byID    map[string]*userRecord
	byEmail map[string]string
	byName  map[string]string
}

type userRecord struct {
	seq  int64
	user domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*userRecord),
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
	}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Init(context.Context) error {
	return nil
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return fmt.Errorf("insert user: %w", repository.ErrDuplicate)
	}
	if _, ok := r.byName[user.Username]; ok {
		return fmt.Errorf("insert user: %w", repository.ErrDuplicate)
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	r.seq++
	r.byID[user.ID] = &userRecord{seq: r.seq, user: *user}
	r.byEmail[email] = user.ID
	r.byName[user.Username] = user.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.get(id)
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.get(id)
}

func (r *UserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("update password: %w", repository.ErrNotFound)
	}
	rec.user.PasswordHash = passwordHash
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *UserRepository) List(context.Context) ([]domain.User, error) {
	r.mu.RLock()
	records := make([]*userRecord, 0, len(r.byID))
	for _, rec := range r.byID {
		records = append(records, rec)
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return newer(records[i].user.CreatedAt, records[i].seq, records[j].user.CreatedAt, records[j].seq)
	})

	users := make([]domain.User, len(records))
	for i, rec := range records {
		users[i] = rec.user
	}
	return users, nil
}

func (r *UserRepository) get(id string) (*domain.User, error) {
	rec, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := rec.user
	return &user, nil
}

// newer orders by creation time descending, then by insertion sequence descending.
func newer(a time.Time, aSeq int64, b time.Time, bSeq int64) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aSeq > bSeq
}
