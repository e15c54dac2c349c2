package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"noteshare/internal/apperr"
	"noteshare/internal/domain"
	"noteshare/internal/repository"
)

const (
	passwordCost      = 10
	minUsernameLength = 3
	maxUsernameLength = 50
	minPasswordLength = 6
	// bcrypt only looks at the first 72 bytes and rejects longer input
	maxPasswordBytes = 72
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = apperr.Unauthorized("invalid email or password")
	// ErrUserAlreadyExists is returned when the email or username is taken.
	ErrUserAlreadyExists = apperr.Conflict("user already exists with this email or username")
)

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, email, password string, role domain.Role) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type userService struct {
	users            repository.UserRepository
	allowAdminSignup bool

	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(users repository.UserRepository, allowAdminSignup bool) UserService {
	return &userService{
		users:            users,
		allowAdminSignup: allowAdminSignup,
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	var fields []apperr.FieldError
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		fields = append(fields, apperr.FieldError{Field: "username", Message: "username must be between 3 and 50 characters"})
	}
	if !validEmail(email) {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "invalid email format"})
	}
	if len(password) < minPasswordLength {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "password must be at least 6 characters"})
	} else if len(password) > maxPasswordBytes {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "password must be at most 72 bytes"})
	}
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		fields = append(fields, apperr.FieldError{Field: "role", Message: "role must be user or admin"})
	}
	if role == domain.RoleAdmin && !s.allowAdminSignup {
		fields = append(fields, apperr.FieldError{Field: "role", Message: "admin registration is disabled"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid input", fields...)
	}

	if taken, err := s.exists(ctx, email, username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, apperr.Internal("create user", err)
	}

	return sanitizeUser(user), nil
}

func (s *userService) exists(ctx context.Context, email, username string) (bool, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, apperr.Internal("lookup user by email", err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return true, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, apperr.Internal("lookup user by username", err)
	}
	return false, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// keep the response time of unknown emails close to wrong passwords
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Internal("lookup user", err)
	}

	if !VerifyPassword(user, password) {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("get user", err)
	}
	return sanitizeUser(user), nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("get user", err)
	}
	return sanitizeUser(user), nil
}

// ChangePassword re-hashes only when the new password differs from the
// stored one.
func (s *userService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength || len(newPassword) > maxPasswordBytes {
		return apperr.Validation("invalid input", apperr.FieldError{Field: "newPassword", Message: "password must be between 6 characters and 72 bytes"})
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("get user", err)
	}
	if !VerifyPassword(user, currentPassword) {
		return apperr.Unauthorized("current password is incorrect")
	}
	if VerifyPassword(user, newPassword) {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), passwordCost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, id, string(hash)); err != nil {
		return apperr.Internal("update password", err)
	}
	return nil
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list users", err)
	}
	out := make([]domain.User, len(users))
	for i := range users {
		out[i] = *sanitizeUser(&users[i])
	}
	return out, nil
}

func (s *userService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), passwordCost)
		if err != nil {
			panic(fmt.Sprintf("hash dummy password: %v", err))
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// VerifyPassword reports whether candidate matches the user's stored hash.
func VerifyPassword(user *domain.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(candidate)) == nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
