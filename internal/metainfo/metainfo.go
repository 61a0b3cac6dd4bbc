// Package metainfo supports reading bencoded torrent descriptors and
// turning them into a TorrentPlan the rest of the module builds on.
package metainfo

import (
	"io"

	"github.com/pkg/errors"
	"github.com/zeebo/bencode"
)

// MetaInfo file dictionary.
type MetaInfo struct {
	Info *Info `bencode:"-"`

	// RawInfo holds the exact bytes of the "info" dictionary as they
	// appeared in the source. The info-hash is SHA-1 over these bytes,
	// never over a re-encoding, so the original dictionary byte layout
	// (key order, integer/string framing) is preserved.
	RawInfo bencode.RawMessage `bencode:"info" json:"-"`

	Announce     string     `bencode:"announce"`
	AnnounceList [][]string `bencode:"announce-list"`
	CreationDate int64      `bencode:"creation date"`
	Comment      string     `bencode:"comment"`
	CreatedBy    string     `bencode:"created by"`
	Encoding     string     `bencode:"encoding"`
}

// New returns a torrent from bencoded stream.
func New(r io.Reader) (*MetaInfo, error) {
	var t MetaInfo
	if err := bencode.NewDecoder(r).Decode(&t); err != nil {
		return nil, errors.Wrap(err, "metainfo: invalid bencode")
	}
	if len(t.RawInfo) == 0 {
		return nil, errors.New("metainfo: missing info dict")
	}
	info, err := NewInfo(t.RawInfo)
	if err != nil {
		return nil, err
	}
	t.Info = info
	return &t, nil
}

// AnnounceURLs returns the union of the "announce" key and the flattened
// "announce-list", de-duplicated by URL with insertion order preserved.
func (mi *MetaInfo) AnnounceURLs() []string {
	seen := make(map[string]struct{})
	var urls []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	add(mi.Announce)
	for _, tier := range mi.AnnounceList {
		for _, u := range tier {
			add(u)
		}
	}
	return urls
}
