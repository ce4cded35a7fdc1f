package dedup

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduperSeen(t *testing.T) {
	d := NewMemoryDeduper(10)
	id := uuid.New()

	seen, err := d.Seen(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, seen, "first sighting")

	seen, err = d.Seen(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, seen, "second sighting")
}

func TestMemoryDeduperEvictsOldest(t *testing.T) {
	d := NewMemoryDeduper(2)
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	for _, id := range []uuid.UUID{first, second, third} {
		seen, err := d.Seen(context.Background(), id)
		require.NoError(t, err)
		require.False(t, seen)
	}

	// first was evicted to make room for third; second and third remain.
	seen, err := d.Seen(context.Background(), third)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(context.Background(), first)
	require.NoError(t, err)
	assert.False(t, seen, "evicted entry is forgotten")
}

func TestMemoryDeduperDefaultCap(t *testing.T) {
	d := NewMemoryDeduper(0)
	assert.Equal(t, DefaultCap, d.cap)
}
