package dataconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-vehicle/databeam/internal/messages"
)

func TestLoadSeedsDefaultWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data_config.json")

	s, err := Load(path, Default)
	require.NoError(t, err)
	assert.Equal(t, Default, s.Policy())
}

func TestSetPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data_config.json")

	s, err := Load(path, Default)
	require.NoError(t, err)

	updated := messages.DataConfig{EnableLiveAll: false, EnableLiveFixedRate: true, LiveRateHz: 5, EnableCapture: false}
	require.NoError(t, s.Set(updated))
	assert.Equal(t, updated, s.Policy())

	reloaded, err := Load(path, Default)
	require.NoError(t, err)
	assert.Equal(t, updated, reloaded.Policy())
}
