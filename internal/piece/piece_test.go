package piece

import (
	"crypto/sha1" //nolint:gosec
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenkalti/rain/internal/metainfo"
	"github.com/cenkalti/rain/internal/storage"
)

func planFor(data []byte, pieceLength int64) *metainfo.TorrentPlan {
	var hashes [][20]byte
	for i := int64(0); i < int64(len(data)); i += pieceLength {
		end := i + pieceLength
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		hashes = append(hashes, sha1.Sum(data[i:end])) //nolint:gosec
	}
	return &metainfo.TorrentPlan{
		Name:        "t",
		PieceLength: pieceLength,
		Size:        int64(len(data)),
		PieceHashes: hashes,
		Files: []metainfo.FilePlan{
			{Path: "t", Length: int64(len(data)), GlobalOffset: 0},
		},
	}
}

func TestLastPieceShortLength(t *testing.T) {
	plan := planFor([]byte("abcdefg"), 4) // pieces: 4, 3
	p0 := New(plan, 0)
	p1 := New(plan, 1)
	assert.Equal(t, int64(4), p0.Length)
	assert.Equal(t, int64(3), p1.Length)
	assert.Equal(t, int64(4), p1.Offset)
}

func TestChunkRequestAndVerify(t *testing.T) {
	data := []byte("0123456789abcdef0123") // 20 bytes, one piece split into chunks? ChunkLength is 16KB so 1 chunk here.
	plan := planFor(data, int64(len(data)))
	p := New(plan, 0)

	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 1, p.NumChunks())

	c := p.RequestChunk()
	require.NotNil(t, c)
	assert.Equal(t, InProgress, p.State())
	assert.True(t, p.HasRequestedAllChunks())
	assert.Nil(t, p.RequestChunk())

	allReceived := p.PutChunk(c.Index, data)
	assert.True(t, allReceived)
	assert.Equal(t, Verifying, p.State())

	ok := p.Verify(p.Assemble())
	assert.True(t, ok)
	assert.Equal(t, Complete, p.State())
}

func TestVerifyMismatchResetsToIdle(t *testing.T) {
	data := []byte("hello world piece")
	plan := planFor(data, int64(len(data)))
	p := New(plan, 0)

	c := p.RequestChunk()
	p.PutChunk(c.Index, data)
	ok := p.Verify([]byte("not the right bytes"))
	assert.False(t, ok)
	assert.Equal(t, Idle, p.State())
	assert.False(t, p.HasRequestedAllChunks())
}

func TestVerifyAllMarksCompletedBitfield(t *testing.T) {
	data := []byte("abcdefghij") // two 5-byte pieces
	plan := planFor(data, 5)

	dir := t.TempDir()
	fs, err := storage.New(dir, "t", false, plan.Files)
	require.NoError(t, err)
	defer fs.Close()
	require.NoError(t, fs.WriteAt(0, data))

	pieces := make([]*Piece, len(plan.PieceHashes))
	for i := range pieces {
		pieces[i] = New(plan, i)
	}
	completed := VerifyAll(pieces, fs)

	assert.Equal(t, uint32(2), completed.Count())
	assert.True(t, completed.Test(0))
	assert.True(t, completed.Test(1))
	assert.Equal(t, Complete, pieces[0].State())
	assert.Equal(t, Complete, pieces[1].State())
}

func TestVerifyAllLeavesCorruptedPieceIdle(t *testing.T) {
	data := []byte("abcdefghij")
	plan := planFor(data, 5)

	dir := t.TempDir()
	fs, err := storage.New(dir, "t", false, plan.Files)
	require.NoError(t, err)
	defer fs.Close()
	// Write wrong bytes for the second piece.
	require.NoError(t, fs.WriteAt(0, []byte("abcde")))
	require.NoError(t, fs.WriteAt(5, []byte("xxxxx")))

	pieces := make([]*Piece, len(plan.PieceHashes))
	for i := range pieces {
		pieces[i] = New(plan, i)
	}
	completed := VerifyAll(pieces, fs)

	assert.Equal(t, uint32(1), completed.Count())
	assert.True(t, completed.Test(0))
	assert.False(t, completed.Test(1))
	assert.Equal(t, Idle, pieces[1].State())
}
