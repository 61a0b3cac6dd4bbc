package rain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig.Port, c.Port)
	assert.Equal(t, DefaultConfig.TrackerAnnounceInterval, c.TrackerAnnounceInterval)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nmax_peer_requests_per_piece: 8\n"), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, c.Port)
	assert.Equal(t, 8, c.MaxPeerRequestsPerPiece)
	assert.Equal(t, DefaultConfig.TrackerHTTPTimeout, c.TrackerHTTPTimeout)
}

func TestTorrentConfigMapping(t *testing.T) {
	c := DefaultConfig
	c.Port = 1234
	tc := c.TorrentConfig()
	assert.Equal(t, 1234, tc.Port)
	assert.Equal(t, c.DownloadPath, tc.DownloadPath)
}

