package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory map[ID]*User

func (d stubDirectory) ByID(_ context.Context, id ID) (*User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

type failingDirectory struct{}

func (failingDirectory) ByID(context.Context, ID) (*User, error) {
	return nil, errors.New("boom")
}

func TestNewUser(t *testing.T) {
	u, err := NewUser(CreateParams{ID: " u-1 ", Name: " Ada ", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, ID("u-1"), u.ID)
	assert.Equal(t, "Ada", u.Name)

	_, err = NewUser(CreateParams{Name: "x"})
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = NewUser(CreateParams{ID: "x"})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestUpdateName(t *testing.T) {
	u, err := NewUser(CreateParams{ID: "u-1", Name: "Ada"})
	require.NoError(t, err)

	assert.ErrorIs(t, u.UpdateName("  ", time.Now()), ErrNameRequired)
	require.NoError(t, u.UpdateName("Grace", time.Now()))
	assert.Equal(t, "Grace", u.Name)
}

func TestDisplayNameFallsBackToID(t *testing.T) {
	ctx := context.Background()
	dir := stubDirectory{"u-1": {ID: "u-1", Name: "Ada"}}

	assert.Equal(t, "Ada", DisplayName(ctx, dir, "u-1"))
	assert.Equal(t, "u-2", DisplayName(ctx, dir, "u-2"))
	assert.Equal(t, "u-3", DisplayName(ctx, failingDirectory{}, "u-3"))
	assert.Equal(t, "u-4", DisplayName(ctx, nil, "u-4"))
}
