package piece

import (
	"github.com/cenkalti/rain/internal/bitfield"
	"github.com/cenkalti/rain/internal/metainfo"
	"github.com/cenkalti/rain/internal/storage"
)

// Index is the ordered sequence of a torrent's pieces.
type Index struct {
	Pieces []*Piece
}

// BuildIndex constructs the Piece Index for plan and runs the initial
// sequential verification scan against fs, returning the index and the
// resulting `completed` bitfield (bit set iff the on-disk bytes already
// hash to the piece's expected hash).
func BuildIndex(plan *metainfo.TorrentPlan, fs *storage.FileSet) (*Index, *bitfield.Bitfield, error) {
	pieces := make([]*Piece, len(plan.PieceHashes))
	for i := range pieces {
		pieces[i] = New(plan, i)
	}
	completed := VerifyAll(pieces, fs)
	return &Index{Pieces: pieces}, completed, nil
}

// NumPieces returns the number of pieces in the index.
func (idx *Index) NumPieces() int { return len(idx.Pieces) }

// Get returns piece i, or nil if out of range.
func (idx *Index) Get(i int) *Piece {
	if i < 0 || i >= len(idx.Pieces) {
		return nil
	}
	return idx.Pieces[i]
}
