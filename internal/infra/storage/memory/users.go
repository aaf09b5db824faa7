package memory

import (
	"context"
	"strings"
	"sync"

	domainuser "partyspace/internal/domain/user"
)

// UserDirectory keeps user profiles in memory. Not suitable for production.
type UserDirectory struct {
	mu   sync.RWMutex
	byID map[domainuser.ID]*domainuser.User
}

func NewUserDirectory(users ...*domainuser.User) *UserDirectory {
	d := &UserDirectory{byID: make(map[domainuser.ID]*domainuser.User)}
	for _, u := range users {
		_ = d.Save(context.Background(), u)
	}
	return d
}

func (d *UserDirectory) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if user, ok := d.byID[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, domainuser.ErrNotFound
}

func (d *UserDirectory) Save(ctx context.Context, user *domainuser.User) error {
	if user == nil || strings.TrimSpace(string(user.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *user
	d.byID[user.ID] = &cp
	return nil
}

var _ domainuser.Directory = (*UserDirectory)(nil)
