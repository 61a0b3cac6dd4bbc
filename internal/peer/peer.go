// Package peer implements the Peer Set: per-peer bitfield, interest/choke
// state, rate counters, and a weak back-reference handle the coordinator
// uses to push messages without the peer holding a pointer into the
// coordinator's own state.
package peer

import (
	"net"

	"github.com/rcrowley/go-metrics"

	"github.com/cenkalti/rain/internal/bitfield"
	"github.com/cenkalti/rain/internal/logger"
)

// ID identifies a peer. Keyed by (ip, port) when no handshake peer_id is
// available yet, by the 20-byte peer_id once the handshake completes.
type ID string

// NewAddrID builds an ID from an address, used before handshake completes.
func NewAddrID(addr net.Addr) ID { return ID(addr.String()) }

// Request is one outstanding chunk request this peer has made of us (or
// we of it), identified by piece index and byte offset within the piece.
type Request struct {
	Piece  int
	Begin  int64
	Length int64
}

// Handle is the coordinator-facing control surface of a connected peer.
// Peer implementations never hold a reference back into the coordinator;
// they only ever see this narrow interface, so a peer goroutine can never
// reach into torrent-private state.
type Handle interface {
	ID() ID
	SendBitfield(b *bitfield.Bitfield)
	SendHave(index int)
	SendInterested(interested bool)
	SendChoke(choked bool)
	SendRequest(req Request) error
	SendPiece(req Request, data []byte)
	SendReject(req Request)
	Close()
}

// Peer tracks one connected peer's protocol state as observed by the
// coordinator: its bitfield, our interest in it, its choke of us, and
// rate counters over recent activity.
type Peer struct {
	Handle Handle

	Bitfield *bitfield.Bitfield

	AmInterested bool // we want something they have
	IsChoked     bool // they are refusing to serve us
	AmChoking    bool // we are refusing to serve them
	PeerInterested bool

	NumRequests      int
	PiecesInProgress map[int]struct{}
	Initialised      bool // handshake complete

	downloadRate metrics.EWMA
	uploadRate   metrics.EWMA

	log logger.Logger
}

// New returns a Peer tracking state for a connection identified by h,
// with a bitfield of the given length (all bits initially unset until a
// BITFIELD or HAVE message arrives).
func New(h Handle, numPieces uint32) *Peer {
	return &Peer{
		Handle:           h,
		Bitfield:         bitfield.New(numPieces),
		PiecesInProgress: make(map[int]struct{}),
		downloadRate:     metrics.NewEWMA1(),
		uploadRate:       metrics.NewEWMA1(),
		log:              logger.New("peer"),
	}
}

// ID returns the peer's identifier.
func (p *Peer) ID() ID { return p.Handle.ID() }

// SetAmInterested updates our interest in this peer and sends the
// corresponding wire message if it changed.
func (p *Peer) SetAmInterested(interested bool) {
	if p.AmInterested == interested {
		return
	}
	p.AmInterested = interested
	p.Handle.SendInterested(interested)
}

// SetChoked records whether this peer is choking us.
func (p *Peer) SetChoked(choked bool) { p.IsChoked = choked }

// MarkPieceInProgress records that we are currently downloading piece i
// from this peer.
func (p *Peer) MarkPieceInProgress(i int) { p.PiecesInProgress[i] = struct{}{} }

// UnmarkPieceInProgress clears the in-progress marker for piece i.
func (p *Peer) UnmarkPieceInProgress(i int) { delete(p.PiecesInProgress, i) }

// RecordDownloaded updates the rolling download-rate estimate by n bytes.
func (p *Peer) RecordDownloaded(n int64) {
	p.downloadRate.Update(n)
	p.downloadRate.Tick()
}

// RecordUploaded updates the rolling upload-rate estimate by n bytes.
func (p *Peer) RecordUploaded(n int64) {
	p.uploadRate.Update(n)
	p.uploadRate.Tick()
}

// CurrentDownloadRate returns the current smoothed download rate, bytes/sec.
func (p *Peer) CurrentDownloadRate() int64 { return int64(p.downloadRate.Rate()) }

// CurrentUploadRate returns the current smoothed upload rate, bytes/sec.
func (p *Peer) CurrentUploadRate() int64 { return int64(p.uploadRate.Rate()) }

// UpdateBitfield replaces the peer's known bitfield wholesale, e.g. on
// receiving a BITFIELD message right after handshake.
func (p *Peer) UpdateBitfield(b *bitfield.Bitfield) { p.Bitfield = b }

// MarkHave records a single HAVE message: the peer now has piece i.
func (p *Peer) MarkHave(i int) {
	if p.Bitfield != nil {
		p.Bitfield.Set(uint32(i))
	}
}

// Close tears down the underlying connection.
func (p *Peer) Close() { p.Handle.Close() }
