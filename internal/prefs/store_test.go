package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSeedsDefaultsOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultOrder, s.Order())
	assert.True(t, s.ChannelPoints())

	// The seeded roster is already durable.
	_, err = os.Stat(filepath.Join(dir, fileName))
	assert.NoError(t, err)
}

func TestOpenReloadsPersistedState(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetOrder([]string{"alice", "bob"}))
	require.NoError(t, s.SetChannelPoints(false))

	reloaded, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, reloaded.Order())
	assert.False(t, reloaded.ChannelPoints())
}

func TestPrimary(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	primary, ok := s.Primary()
	require.True(t, ok)
	assert.Equal(t, DefaultOrder[0], primary)

	require.NoError(t, s.SetOrder(nil))
	_, ok = s.Primary()
	assert.False(t, ok)
}

func TestToggleChannelPoints(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	// Unset reads as enabled; the first toggle therefore disables.
	assert.True(t, s.ChannelPoints())

	v, err := s.ToggleChannelPoints()
	require.NoError(t, err)
	assert.False(t, v)
	assert.False(t, s.ChannelPoints())

	v, err = s.ToggleChannelPoints()
	require.NoError(t, err)
	assert.True(t, v)

	reloaded, err := Open(filepath.Dir(s.path))
	require.NoError(t, err)
	assert.True(t, reloaded.ChannelPoints())
}

func TestSnapshotIsPointInTime(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.True(t, snap.ChannelPoints)

	_, err = s.ToggleChannelPoints()
	require.NoError(t, err)

	// The earlier snapshot is unaffected by the toggle.
	assert.True(t, snap.ChannelPoints)
	assert.False(t, s.Snapshot().ChannelPoints)
}

func TestOrderReturnsCopy(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	order := s.Order()
	order[0] = "mutated"
	assert.Equal(t, DefaultOrder[0], s.Order()[0])
}
