// Package piece implements the Piece Index: per-piece completion state,
// chunk-level bookkeeping while a piece is being downloaded, and the
// sequential verification scan performed when a torrent is loaded.
package piece

import (
	"crypto/sha1" //nolint:gosec // BitTorrent piece hashes are SHA-1.

	"github.com/cenkalti/rain/internal/bitfield"
	"github.com/cenkalti/rain/internal/logger"
	"github.com/cenkalti/rain/internal/metainfo"
	"github.com/cenkalti/rain/internal/storage"
)

// ChunkLength is the nominal size of a single block request. The last
// chunk of a piece (and the last piece of a torrent) may be shorter.
const ChunkLength = 16 * 1024

// State is a piece's position in its per-piece state machine.
type State int

const (
	// Idle: not active, not complete.
	Idle State = iota
	// InProgress: chunks are being requested.
	InProgress
	// Verifying: all chunks received, hash check pending.
	Verifying
	// Complete: verified and persisted.
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InProgress:
		return "in_progress"
	case Verifying:
		return "verifying"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Chunk is one block-sized sub-range of a piece.
type Chunk struct {
	Index     int // position within the piece's chunk list
	Begin     int64
	Length    int64
	requested bool
	data      []byte
}

// Piece tracks one piece of the torrent: its extent, expected hash, and
// runtime completion state.
type Piece struct {
	Index        int
	Offset       int64
	Length       int64
	ExpectedHash [20]byte

	state  State
	chunks []Chunk
}

// New builds the (index, offset, length, expected_hash, chunks) shape for
// piece i of a torrent described by plan.
func New(plan *metainfo.TorrentPlan, i int) *Piece {
	length := plan.PieceLength
	if i == len(plan.PieceHashes)-1 {
		if rem := plan.Size % plan.PieceLength; rem != 0 {
			length = rem
		}
	}
	p := &Piece{
		Index:        i,
		Offset:       int64(i) * plan.PieceLength,
		Length:       length,
		ExpectedHash: plan.PieceHashes[i],
		state:        Idle,
	}
	p.chunks = buildChunks(length)
	return p
}

func buildChunks(length int64) []Chunk {
	n := int((length + ChunkLength - 1) / ChunkLength)
	chunks := make([]Chunk, n)
	var off int64
	for i := 0; i < n; i++ {
		l := int64(ChunkLength)
		if off+l > length {
			l = length - off
		}
		chunks[i] = Chunk{Index: i, Begin: off, Length: l}
		off += l
	}
	return chunks
}

// State reports the piece's current state-machine position.
func (p *Piece) State() State { return p.state }

// NumChunks returns the number of chunks this piece is split into.
func (p *Piece) NumChunks() int { return len(p.chunks) }

// HasRequestedAllChunks reports whether every chunk has been marked
// requested (regardless of whether its data has arrived yet).
func (p *Piece) HasRequestedAllChunks() bool {
	for i := range p.chunks {
		if !p.chunks[i].requested {
			return false
		}
	}
	return true
}

// RequestChunk marks the next not-yet-requested chunk as requested and
// returns it. Returns nil if every chunk has already been requested.
// The first call transitions Idle -> InProgress.
func (p *Piece) RequestChunk() *Chunk {
	for i := range p.chunks {
		if !p.chunks[i].requested {
			p.chunks[i].requested = true
			if p.state == Idle {
				p.state = InProgress
			}
			return &p.chunks[i]
		}
	}
	return nil
}

// ReleaseChunk marks a chunk not-requested again, e.g. after a reject
// message or a choke. It does not discard already-received data.
func (p *Piece) ReleaseChunk(index int) {
	if index < 0 || index >= len(p.chunks) {
		return
	}
	p.chunks[index].requested = false
}

// PutChunk stores data received for chunk index. When every chunk has
// data, the piece transitions InProgress -> Verifying and PutChunk
// reports allReceived = true; the caller is expected to call Verify next.
func (p *Piece) PutChunk(index int, data []byte) (allReceived bool) {
	if index < 0 || index >= len(p.chunks) {
		return false
	}
	p.chunks[index].data = data
	for i := range p.chunks {
		if p.chunks[i].data == nil {
			return false
		}
	}
	p.state = Verifying
	return true
}

// Assemble concatenates the received chunk data in order. Valid only once
// PutChunk has reported allReceived.
func (p *Piece) Assemble() []byte {
	buf := make([]byte, 0, p.Length)
	for i := range p.chunks {
		buf = append(buf, p.chunks[i].data...)
	}
	return buf
}

// Verify hashes data (the assembled piece bytes) against ExpectedHash.
// On match it transitions Verifying -> Complete and returns true. On
// mismatch it transitions back to Idle, discards all chunk data, and
// returns false — the Corrupt state is transient and not observable
// outside this call.
func (p *Piece) Verify(data []byte) bool {
	sum := sha1.Sum(data) //nolint:gosec
	if sum == p.ExpectedHash {
		p.state = Complete
		return true
	}
	p.reset()
	return false
}

// reset discards in-flight chunk data and returns the piece to Idle,
// e.g. after a failed verification or an explicit cancel.
func (p *Piece) reset() {
	p.state = Idle
	for i := range p.chunks {
		p.chunks[i].requested = false
		p.chunks[i].data = nil
	}
}

// Cancel aborts an in-progress piece, discarding any partial chunk data.
func (p *Piece) Cancel() { p.reset() }

// MarkComplete forces a piece into the Complete state without going
// through the chunk pipeline; used by the initial verification scan for
// pieces already present on disk.
func (p *Piece) MarkComplete() { p.state = Complete }

// VerifyAll performs the sequential, bounded-memory verification scan
// described for torrent load: for each piece, read its extent from fs,
// hash it, and mark it Complete on a match. Read failures are logged and
// non-fatal — the piece is simply left Idle ("not complete"). Returns
// the initial `completed` bitfield.
func VerifyAll(pieces []*Piece, fs *storage.FileSet) *bitfield.Bitfield {
	completed := bitfield.New(uint32(len(pieces)))
	for _, p := range pieces {
		data, err := fs.ReadAt(p.Offset, p.Length)
		if err != nil {
			logger.New("piece").Warningf("cannot read piece %d for verification: %s", p.Index, err)
			continue
		}
		sum := sha1.Sum(data) //nolint:gosec
		if sum == p.ExpectedHash {
			p.MarkComplete()
			completed.Set(uint32(p.Index))
		}
	}
	return completed
}
