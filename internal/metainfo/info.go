package metainfo

import (
	"crypto/sha1" //nolint:gosec // BitTorrent info-hash is defined as SHA-1.
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeebo/bencode"
)

// FileDict is one entry of a multi-file torrent's "info.files" list.
type FileDict struct {
	Length int64    `bencode:"length"`
	Path   []string `bencode:"path"`
}

// infoDict is the bencode shape of the "info" sub-dictionary.
type infoDict struct {
	Name        string     `bencode:"name"`
	PieceLength int64      `bencode:"piece length"`
	Pieces      string     `bencode:"pieces"`
	Length      int64      `bencode:"length"`
	Files       []FileDict `bencode:"files"`
	Private     int        `bencode:"private"`
}

// Info is the decoded and validated "info" dictionary of a torrent.
type Info struct {
	Name        string
	PieceLength int64
	Pieces      []byte // concatenated 20-byte SHA-1 digests
	NumPieces   int
	TotalLength int64
	Files       []FileDict // nil for single-file torrents
	Private     bool
	Hash        [20]byte // SHA-1 of the raw bencoded info dict
}

// NewInfo decodes and validates raw (the exact bytes of the "info"
// sub-dictionary) and computes its info-hash.
func NewInfo(raw bencode.RawMessage) (*Info, error) {
	var d infoDict
	if err := bencode.DecodeBytes(raw, &d); err != nil {
		return nil, errors.Wrap(err, "metainfo: invalid info dict")
	}
	if d.Name == "" {
		return nil, errors.New("metainfo: missing info.name")
	}
	if d.PieceLength <= 0 {
		return nil, errors.New("metainfo: missing or invalid info.piece length")
	}
	if d.Pieces == "" {
		return nil, errors.New("metainfo: missing info.pieces")
	}
	if len(d.Pieces)%20 != 0 {
		return nil, fmt.Errorf("metainfo: info.pieces length %d is not a multiple of 20", len(d.Pieces))
	}
	hasLength := d.Length > 0
	hasFiles := len(d.Files) > 0
	if hasLength == hasFiles {
		return nil, errors.New("metainfo: exactly one of info.length or info.files must be set")
	}

	info := &Info{
		Name:        d.Name,
		PieceLength: d.PieceLength,
		Pieces:      []byte(d.Pieces),
		NumPieces:   len(d.Pieces) / 20,
		Files:       d.Files,
		Private:     d.Private == 1,
		Hash:        sha1.Sum(raw), //nolint:gosec
	}
	if hasLength {
		info.TotalLength = d.Length
	} else {
		for _, f := range d.Files {
			if f.Length <= 0 {
				return nil, errors.New("metainfo: info.files entry has non-positive length")
			}
			info.TotalLength += f.Length
		}
	}
	if info.TotalLength == 0 {
		return nil, errors.New("metainfo: total size is zero")
	}
	return info, nil
}

// PieceHash returns the expected 20-byte SHA-1 digest for piece i.
func (info *Info) PieceHash(i int) [20]byte {
	var h [20]byte
	copy(h[:], info.Pieces[20*i:20*i+20])
	return h
}

// IsMultiFile reports whether this torrent describes multiple files under a
// shared directory.
func (info *Info) IsMultiFile() bool {
	return len(info.Files) > 0
}

// relativePath returns the on-disk relative path of file f joined with the
// OS path separator.
func (f FileDict) relativePath() string {
	return filepath.Join(f.Path...)
}

// JoinedPath returns the path components joined with the OS separator,
// validated to never escape the download directory.
func (f FileDict) JoinedPath() (string, error) {
	for _, c := range f.Path {
		if c == "" || c == "." || c == ".." || strings.ContainsAny(c, "/\\") {
			return "", fmt.Errorf("metainfo: invalid file path component %q", c)
		}
	}
	return f.relativePath(), nil
}
