package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired   = errors.New("user: id is required")
	ErrNameRequired = errors.New("user: name is required")
	ErrNotFound     = errors.New("user: not found")
)

type ID string

// User carries the public profile the booking engine needs for display.
type User struct {
	ID        ID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Directory resolves user profiles. Implementations return ErrNotFound for unknown ids.
type Directory interface {
	ByID(ctx context.Context, id ID) (*User, error)
}

type CreateParams struct {
	ID        ID
	Name      string
	CreatedAt time.Time
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &User{
		ID:        ID(id),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) UpdateName(name string, now time.Time) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameRequired
	}
	u.Name = trimmed
	if now.IsZero() {
		now = time.Now()
	}
	u.UpdatedAt = now.UTC()
	return nil
}

// DisplayName resolves a user's name, falling back to the raw id when the
// directory has no profile or fails.
func DisplayName(ctx context.Context, dir Directory, id string) string {
	if dir == nil || strings.TrimSpace(id) == "" {
		return id
	}
	u, err := dir.ByID(ctx, ID(id))
	if err != nil || u == nil || u.Name == "" {
		return id
	}
	return u.Name
}
