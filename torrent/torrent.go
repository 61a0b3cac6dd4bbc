// Package torrent implements the Coordinator: the single state machine
// that owns a torrent's bitfields and wires the Metainfo Loader, File
// Set, Piece Index, Tracker Set and Peer Set collaborators together.
package torrent

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/uber-go/tally"

	"github.com/cenkalti/rain/internal/bitfield"
	"github.com/cenkalti/rain/internal/logger"
	"github.com/cenkalti/rain/internal/metainfo"
	"github.com/cenkalti/rain/internal/peer"
	"github.com/cenkalti/rain/internal/piece"
	"github.com/cenkalti/rain/internal/storage"
	"github.com/cenkalti/rain/internal/tracker"
)

// Status is the torrent's position in its load lifecycle.
type Status int

const (
	Loading Status = iota
	Ready
	LoadError
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case LoadError:
		return "load_error"
	default:
		return "unknown"
	}
}

// Config carries the Coordinator's tunables. Defaults live in
// torrent.DefaultConfig; the root package's Config loads and maps onto
// this shape.
type Config struct {
	Port                    int
	PieceRequestTimeout     time.Duration
	MaxPeerRequestsPerPiece int
	TrackerAnnounceInterval time.Duration
	TrackerHTTPTimeout      time.Duration
	DownloadPath            string
}

// DefaultConfig holds sensible defaults, mirroring the teacher's
// DefaultConfig pattern in the root config.go.
var DefaultConfig = Config{
	Port:                    6881,
	PieceRequestTimeout:     30 * time.Second,
	MaxPeerRequestsPerPiece: 4,
	TrackerAnnounceInterval: 30 * time.Minute,
	TrackerHTTPTimeout:      30 * time.Second,
	DownloadPath:            ".",
}

// Torrent is the Coordinator for a single torrent: it owns the
// `completed`/`active` bitfields, the piece index, the peer set, and the
// tracker set, and runs a single-threaded event loop that is the only
// place torrent-private state is mutated.
type Torrent struct {
	config Config
	log    logger.Logger
	stats  tally.Scope

	peerID   [20]byte
	infoHash [20]byte
	name     string

	plan  *metainfo.TorrentPlan
	fs    *storage.FileSet
	index *piece.Index

	completed *bitfield.Bitfield
	active    *bitfield.Bitfield

	downloaded int64
	uploaded   int64

	trackerSet *tracker.Set
	trackers   []tracker.Handle

	peers *peer.Set

	// OnPeerCandidate is invoked from the coordinator's own execution
	// context for each tracker-supplied peer address not already in the
	// peer set (spec.md §4.5.7), once the torrent is not yet complete.
	// Establishing the actual connection (dialing, handshake) is the
	// peer wire protocol's concern, out of this package's scope; the
	// host is expected to dial and then call AddPeer to complete
	// admission per §4.5.1.
	OnPeerCandidate func(tracker.Peer)

	status      Status
	lastError   error
	wasComplete bool // guards invariant 7: complete fires exactly once
	started     bool

	// Command/event channels; the only way outside goroutines reach into
	// Torrent-private state. See run.go for the select loop.
	loadResultC chan loadResult
	startC      chan struct{}
	stopC       chan struct{}
	closeC      chan chan struct{}

	statsC    chan chan Stats
	peersC    chan chan []PeerInfo
	trackersC chan chan []TrackerInfo

	addPeerC    chan addPeerCmd
	peerEventC  chan peerEvent
	trackerResC chan trackerResult

	events chan Event
}

// New constructs a Torrent in the Loading state and immediately starts
// the async load (metainfo parse, file allocation, verification scan)
// and the event loop. r is read by the background load goroutine, which
// may still be reading it after New returns.
func New(r io.Reader, cfg Config, stats tally.Scope) (*Torrent, error) {
	var peerID [20]byte
	copy(peerID[:], "-RC0001-")
	if _, err := rand.Read(peerID[8:]); err != nil {
		return nil, errors.Wrap(err, "torrent: cannot generate peer id")
	}
	if stats == nil {
		stats = tally.NoopScope
	}

	t := &Torrent{
		config:      cfg,
		log:         logger.New("torrent"),
		stats:       stats,
		peerID:      peerID,
		trackerSet:  tracker.NewSet(),
		peers:       peer.NewSet(),
		status:      Loading,
		loadResultC: make(chan loadResult, 1),
		startC:      make(chan struct{}),
		stopC:       make(chan struct{}),
		closeC:      make(chan chan struct{}),
		statsC:      make(chan chan Stats),
		peersC:      make(chan chan []PeerInfo),
		trackersC:   make(chan chan []TrackerInfo),
		addPeerC:    make(chan addPeerCmd),
		peerEventC:  make(chan peerEvent, 64),
		trackerResC: make(chan trackerResult, 8),
		events:      make(chan Event, 64),
	}

	go t.load(r, cfg.DownloadPath)
	go t.run()
	return t, nil
}

// Events returns the channel Ready/Complete/Progress/Updated/Error
// events are delivered on. The caller is expected to drain it.
func (t *Torrent) Events() <-chan Event { return t.events }

// Start requests the torrent begin announcing to trackers and accepting
// peer traffic. No-op if already started or not yet Ready.
func (t *Torrent) Start() { t.startC <- struct{}{} }

// Stop requests the torrent stop all trackers and disconnect all peers.
// The Torrent remains usable; Start may be called again.
func (t *Torrent) Stop() { t.stopC <- struct{}{} }

// Close permanently shuts the torrent down, closing files and
// disconnecting all peers. Start/Stop/Close must not be called again
// afterward.
func (t *Torrent) Close() {
	done := make(chan struct{})
	t.closeC <- done
	<-done
}
