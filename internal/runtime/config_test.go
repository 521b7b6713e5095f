package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-vehicle/databeam/internal/fsutil"
)

// TestConfigStoreDedupAndBackup covers scenario S5: writing the same
// content twice must not produce a second backup, and an actual change
// always does.
func TestConfigStoreDedupAndBackup(t *testing.T) {
	dir := t.TempDir()
	store := newConfigStore(dir)

	loaded, err := store.load(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, loaded)

	changed, err := store.setIfChanged(`{"a":2}`)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.setIfChanged(`{"a":2}`)
	require.NoError(t, err)
	assert.False(t, changed, "byte-identical content must not produce a second write/backup")

	entries, err := fsutil.ListDir(dir)
	require.NoError(t, err)
	backups := 0
	for _, name := range entries {
		if backupPattern.MatchString(name) {
			backups++
		}
	}
	assert.Equal(t, 1, backups, "only the genuine change should have produced a backup")
}

// TestConfigStorePrunesToTen covers the "keep newest 10 backups" half of
// scenario S5.
func TestConfigStorePrunesToTen(t *testing.T) {
	dir := t.TempDir()
	store := newConfigStore(dir)
	_, err := store.load(`{}`)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return tick }
		_, err := store.setIfChanged(`{"n":` + string(rune('0'+i%10)) + `}`)
		require.NoError(t, err)
	}

	entries, err := fsutil.ListDir(dir)
	require.NoError(t, err)
	backups := 0
	for _, name := range entries {
		if backupPattern.MatchString(name) {
			backups++
		}
	}
	assert.Equal(t, maxBackups, backups, "backups must be pruned to the newest %d", maxBackups)
}
