package metainfo

import (
	"bytes"
	"crypto/sha1" //nolint:gosec
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- minimal bencode builders, independent of the production codec, so
// these tests exercise metainfo.New against hand-built wire bytes. ---

func bstr(s string) string { return fmt.Sprintf("%d:%s", len(s), s) }
func bint(n int64) string  { return fmt.Sprintf("i%de", n) }
func blist(items ...string) string {
	return "l" + strings.Join(items, "") + "e"
}

type kv struct {
	key, val string
}

func bdict(pairs ...kv) string {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	var b strings.Builder
	b.WriteByte('d')
	for _, p := range pairs {
		b.WriteString(bstr(p.key))
		b.WriteString(p.val)
	}
	b.WriteByte('e')
	return b.String()
}

func pieceHashesFor(data []byte, pieceLength int) string {
	var out strings.Builder
	for i := 0; i < len(data); i += pieceLength {
		end := i + pieceLength
		if end > len(data) {
			end = len(data)
		}
		h := sha1.Sum(data[i:end]) //nolint:gosec
		out.Write(h[:])
	}
	return out.String()
}

func singleFileInfo(name string, data []byte, pieceLength int) string {
	return bdict(
		kv{"name", bstr(name)},
		kv{"length", bint(int64(len(data)))},
		kv{"piece length", bint(int64(pieceLength))},
		kv{"pieces", bstr(pieceHashesFor(data, pieceLength))},
	)
}

func TestNewSingleFileComplete(t *testing.T) {
	data := []byte("abcdef")
	info := singleFileInfo("a.bin", data, 4)
	full := bdict(
		kv{"announce", bstr("http://tr.example/announce")},
		kv{"info", info},
	)

	mi, err := New(bytes.NewReader([]byte(full)))
	require.NoError(t, err)
	assert.Equal(t, "a.bin", mi.Info.Name)
	assert.Equal(t, int64(4), mi.Info.PieceLength)
	assert.Equal(t, int64(6), mi.Info.TotalLength)
	assert.Equal(t, 2, mi.Info.NumPieces)
	assert.False(t, mi.Info.IsMultiFile())
	assert.Equal(t, []string{"http://tr.example/announce"}, mi.AnnounceURLs())

	plan, err := BuildPlan(mi)
	require.NoError(t, err)
	assert.False(t, plan.MultiFile)
}

func TestAnnounceListDedup(t *testing.T) {
	data := []byte("ab")
	info := singleFileInfo("a.bin", data, 4)
	annList := blist(
		blist(bstr("http://a")),
		blist(bstr("http://a"), bstr("http://b")),
	)
	full := bdict(
		kv{"announce", bstr("http://a")},
		kv{"announce-list", annList},
		kv{"info", info},
	)
	mi, err := New(bytes.NewReader([]byte(full)))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a", "http://b"}, mi.AnnounceURLs())
}

func TestMultiFile(t *testing.T) {
	data := []byte("abcde")
	info := bdict(
		kv{"name", bstr("t")},
		kv{"piece length", bint(4)},
		kv{"pieces", bstr(pieceHashesFor(data, 4))},
		kv{"files", blist(
			bdict(kv{"length", bint(3)}, kv{"path", blist(bstr("sub"), bstr("x"))}),
			bdict(kv{"length", bint(2)}, kv{"path", blist(bstr("y"))}),
		)},
	)
	full := bdict(kv{"announce", bstr("http://tr")}, kv{"info", info})

	mi, err := New(bytes.NewReader([]byte(full)))
	require.NoError(t, err)
	assert.True(t, mi.Info.IsMultiFile())
	assert.Equal(t, int64(5), mi.Info.TotalLength)

	plan, err := BuildPlan(mi)
	require.NoError(t, err)
	assert.True(t, plan.MultiFile)
	require.Len(t, plan.Files, 2)
	assert.Equal(t, "sub/x", plan.Files[0].Path)
	assert.Equal(t, int64(0), plan.Files[0].GlobalOffset)
	assert.Equal(t, "y", plan.Files[1].Path)
	assert.Equal(t, int64(3), plan.Files[1].GlobalOffset)
	require.Len(t, plan.PieceHashes, 2)
}

func TestMissingInfoIsFatal(t *testing.T) {
	full := bdict(kv{"announce", bstr("http://tr")})
	_, err := New(bytes.NewReader([]byte(full)))
	assert.Error(t, err)
}

func TestPiecesNotMultipleOf20IsFatal(t *testing.T) {
	info := bdict(
		kv{"name", bstr("a.bin")},
		kv{"length", bint(6)},
		kv{"piece length", bint(4)},
		kv{"pieces", bstr("short")},
	)
	full := bdict(kv{"announce", bstr("http://tr")}, kv{"info", info})
	_, err := New(bytes.NewReader([]byte(full)))
	assert.Error(t, err)
}

func TestMissingPiecesIsFatal(t *testing.T) {
	info := bdict(
		kv{"name", bstr("a.bin")},
		kv{"length", bint(6)},
		kv{"piece length", bint(4)},
		kv{"pieces", bstr("")},
	)
	full := bdict(kv{"announce", bstr("http://tr")}, kv{"info", info})
	_, err := New(bytes.NewReader([]byte(full)))
	assert.Error(t, err)
}

func TestLengthXorFilesIsFatal(t *testing.T) {
	info := bdict(
		kv{"name", bstr("a.bin")},
		kv{"piece length", bint(4)},
		kv{"pieces", bstr(pieceHashesFor([]byte("abcdef"), 4))},
	)
	full := bdict(kv{"announce", bstr("http://tr")}, kv{"info", info})
	_, err := New(bytes.NewReader([]byte(full)))
	assert.Error(t, err)
}

func TestInfoHashRoundTrip(t *testing.T) {
	// Invariant 8: info-hash must equal SHA-1 of the raw info dict bytes.
	data := []byte("abcdef")
	info := singleFileInfo("a.bin", data, 4)
	full := bdict(kv{"announce", bstr("http://tr")}, kv{"info", info})

	mi, err := New(bytes.NewReader([]byte(full)))
	require.NoError(t, err)

	want := sha1.Sum([]byte(info)) //nolint:gosec
	assert.Equal(t, want, mi.Info.Hash)
}
