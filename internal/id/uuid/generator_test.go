package uuid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()

	g := NewGenerator()
	first, err := g.NewID()
	require.NoError(t, err)
	second, err := g.NewID()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Less(t, first, second, "v7 ids sort by creation time")
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	id := NewRequestID()
	assert.True(t, Valid(id))
	assert.False(t, Valid("not-a-uuid"))
}
