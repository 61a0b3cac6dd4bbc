package rain

import (
	"io/ioutil"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/cenkalti/rain/torrent"
)

// Config is the root, YAML-backed configuration for a rain client. It
// expands to every tunable torrent.Config exposes so a single config file
// can drive any number of Torrents.
type Config struct {
	Port                    int           `yaml:"port"`
	DownloadPath            string        `yaml:"download_path"`
	PieceRequestTimeout     time.Duration `yaml:"piece_request_timeout"`
	MaxPeerRequestsPerPiece int           `yaml:"max_peer_requests_per_piece"`
	TrackerAnnounceInterval time.Duration `yaml:"tracker_announce_interval"`
	TrackerHTTPTimeout      time.Duration `yaml:"tracker_http_timeout"`

	Encryption struct {
		DisableOutgoing bool `yaml:"disable_outgoing"`
		ForceOutgoing   bool `yaml:"force_outgoing"`
		ForceIncoming   bool `yaml:"force_incoming"`
	} `yaml:"encryption"`
}

// DefaultConfig mirrors torrent.DefaultConfig so a client with no config
// file on disk still gets sane tunables.
var DefaultConfig = Config{
	Port:                    torrent.DefaultConfig.Port,
	DownloadPath:            torrent.DefaultConfig.DownloadPath,
	PieceRequestTimeout:     torrent.DefaultConfig.PieceRequestTimeout,
	MaxPeerRequestsPerPiece: torrent.DefaultConfig.MaxPeerRequestsPerPiece,
	TrackerAnnounceInterval: torrent.DefaultConfig.TrackerAnnounceInterval,
	TrackerHTTPTimeout:      torrent.DefaultConfig.TrackerHTTPTimeout,
}

// LoadConfig reads and parses a YAML config file at filename. A missing
// file is not an error: DefaultConfig is returned as-is, the same
// zero-config behavior a freshly installed client gets.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig
	b, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "rain: cannot read config file")
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(err, "rain: cannot parse config file")
	}
	if c.DownloadPath != "" {
		expanded, err := homedir.Expand(c.DownloadPath)
		if err != nil {
			return nil, errors.Wrap(err, "rain: cannot expand download path")
		}
		c.DownloadPath = expanded
	}
	return &c, nil
}

// TorrentConfig maps the root Config onto the shape torrent.New expects.
func (c Config) TorrentConfig() torrent.Config {
	return torrent.Config{
		Port:                    c.Port,
		PieceRequestTimeout:     c.PieceRequestTimeout,
		MaxPeerRequestsPerPiece: c.MaxPeerRequestsPerPiece,
		TrackerAnnounceInterval: c.TrackerAnnounceInterval,
		TrackerHTTPTimeout:      c.TrackerHTTPTimeout,
		DownloadPath:            c.DownloadPath,
	}
}
