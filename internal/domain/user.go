package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of permission levels a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a raw value onto a Role. Empty input yields RoleUser.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// User represents an authenticated user of the system.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRef is the public projection of a note owner.
type UserRef struct {
	ID       string
	Username string
	Email    string
}

// UnknownUser is substituted when a note owner no longer resolves.
func UnknownUser(id string) UserRef {
	return UserRef{ID: id, Username: "Unknown", Email: ""}
}
