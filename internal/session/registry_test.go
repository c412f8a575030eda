package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ottodev/otto-tui/internal/engine"
)

func TestRegistryAddIsIdempotent(t *testing.T) {
	fc := engine.NewMemoryFileContext()
	r := NewRegistry(fc, nil)

	changed, err := r.Add("main.go")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.Add("main.go")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, 1, r.Len())
	assert.Len(t, fc.Paths(), 1)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(engine.NewMemoryFileContext(), nil)

	changed, err := r.Remove("never-added.go")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = r.Add("a.go")
	require.NoError(t, err)

	changed, err = r.Remove("a.go")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, r.Contains("a.go"))
}

func TestRegistrySnapshotIsSortedAndImmutable(t *testing.T) {
	r := NewRegistry(engine.NewMemoryFileContext(), nil)
	for _, p := range []string{"z.go", "a.go", "m.go"} {
		_, err := r.Add(p)
		require.NoError(t, err)
	}

	snap := r.Snapshot()
	assert.Equal(t, engine.Snapshot{"a.go", "m.go", "z.go"}, snap)

	_, err := r.Add("b.go")
	require.NoError(t, err)
	assert.Equal(t, engine.Snapshot{"a.go", "m.go", "z.go"}, snap)
}
