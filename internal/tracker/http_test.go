package tracker

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCompactPeers(t *testing.T) {
	// Two peers: 1.2.3.4:256 and 10.0.0.1:1.
	raw := []byte{1, 2, 3, 4, 1, 0, 10, 0, 0, 1, 0, 1}
	peers, err := decodeCompactPeers(raw)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "1.2.3.4", peers[0].IP.String())
	assert.Equal(t, uint16(256), peers[0].Port)
	assert.Equal(t, "10.0.0.1", peers[1].IP.String())
	assert.Equal(t, uint16(1), peers[1].Port)
}

func TestDecodeCompactPeersInvalidLength(t *testing.T) {
	_, err := decodeCompactPeers([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestHTTPTrackerAnnounceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("compact"))
		w.Write([]byte("d8:intervali1800e8:completei4e10:incompletei2e5:peers6:\x01\x02\x03\x04\x1a\xe1e"))
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, func() Torrent {
		return Torrent{Port: 6881, BytesLeft: 100}
	})

	respC := make(chan *AnnounceResponse, 1)
	errC := make(chan error, 1)
	tr.Start(func(resp *AnnounceResponse, err error) {
		if err != nil {
			errC <- err
			return
		}
		respC <- resp
	})
	defer tr.Stop()

	select {
	case resp := <-respC:
		assert.Equal(t, 4, resp.Seeders)
		assert.Equal(t, 2, resp.Leechers)
		require.Len(t, resp.Peers, 1)
		assert.Equal(t, "1.2.3.4", resp.Peers[0].IP.String())
	case err := <-errC:
		t.Fatalf("unexpected announce error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for announce callback")
	}
}

func TestHTTPTrackerAnnounceFailureReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d14:failure reason17:info_hash missinge"))
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, func() Torrent { return Torrent{} })

	errC := make(chan error, 1)
	tr.Start(func(resp *AnnounceResponse, err error) {
		if err != nil {
			errC <- err
		}
	})
	defer tr.Stop()

	select {
	case err := <-errC:
		assert.Error(t, err)
		assert.Equal(t, Error, tr.State())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for announce error")
	}
}
