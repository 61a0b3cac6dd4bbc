package tracker

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/zeebo/bencode"

	"github.com/cenkalti/rain/internal/logger"
)

var log = logger.New("tracker")

// httpAnnounceResponse is the bencoded shape of a tracker's HTTP response.
type httpAnnounceResponse struct {
	FailureReason string `bencode:"failure reason"`
	Interval      int32  `bencode:"interval"`
	Complete      int32  `bencode:"complete"`   // seeders
	Incomplete    int32  `bencode:"incomplete"` // leechers
	Peers         string `bencode:"peers"`      // compact: 6 bytes/peer
}

// HTTPTracker announces over plain HTTP GET, following the classic
// BitTorrent tracker protocol with compact peer responses.
type HTTPTracker struct {
	URL    string
	Client *http.Client
	Clock  clock.Clock
	// Torrent is read fresh on every announce so byte counters stay current.
	Torrent func() Torrent

	mu        sync.Mutex
	state     State
	lastError error
	stopC     chan struct{}
	wg        sync.WaitGroup
}

// NewHTTP returns a tracker announcing to rawURL. torrentFn is called
// before each announce to obtain the current byte counters and identity.
func NewHTTP(rawURL string, torrentFn func() Torrent) *HTTPTracker {
	return &HTTPTracker{
		URL:     rawURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Clock:   clock.New(),
		Torrent: torrentFn,
		state:   Stopped,
	}
}

// State reports the tracker's current lifecycle position.
func (t *HTTPTracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastError returns the most recent announce failure, if any.
func (t *HTTPTracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastError
}

// Start begins the announce loop: announce immediately, then again every
// Interval seconds (or on backoff schedule after an error), until Stop is
// called.
func (t *HTTPTracker) Start(cb func(*AnnounceResponse, error)) {
	t.mu.Lock()
	if t.state == Announcing || t.state == Waiting {
		t.mu.Unlock()
		return
	}
	t.stopC = make(chan struct{})
	stopC := t.stopC
	t.mu.Unlock()

	t.wg.Add(1)
	go t.loop(stopC, cb)
}

func (t *HTTPTracker) loop(stopC chan struct{}, cb func(*AnnounceResponse, error)) {
	defer t.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0 // retry indefinitely until Stop

	interval := 30 * time.Second
	for {
		t.setState(Announcing)
		resp, err := t.announce(stopC, "")
		if err != nil {
			t.mu.Lock()
			t.lastError = err
			t.state = Error
			t.mu.Unlock()
			log.Debugf("announce to %s failed: %s", t.URL, err)
			cb(nil, err)
			select {
			case <-stopC:
				return
			case <-t.Clock.After(bo.NextBackOff()):
				continue
			}
		}
		bo.Reset()
		t.mu.Lock()
		t.lastError = nil
		t.mu.Unlock()
		if resp.Interval > 0 {
			interval = time.Duration(resp.Interval) * time.Second
		}
		cb(resp, nil)

		t.setState(Waiting)
		select {
		case <-stopC:
			return
		case <-t.Clock.After(interval):
		}
	}
}

// Stop sends a best-effort event=stopped announce and ends the loop.
func (t *HTTPTracker) Stop() {
	t.mu.Lock()
	if t.state == Stopped {
		t.mu.Unlock()
		return
	}
	stopC := t.stopC
	t.mu.Unlock()

	if stopC != nil {
		close(stopC)
	}
	t.wg.Wait()

	_, _ = t.announce(nil, "stopped")
	t.setState(Stopped)
}

func (t *HTTPTracker) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *HTTPTracker) announce(stopC chan struct{}, event string) (*AnnounceResponse, error) {
	tor := t.Torrent()
	u, err := url.Parse(t.URL)
	if err != nil {
		return nil, errors.Wrap(err, "tracker: invalid announce url")
	}
	q := u.Query()
	q.Set("info_hash", string(tor.InfoHash[:]))
	q.Set("peer_id", string(tor.PeerID[:]))
	q.Set("port", strconv.Itoa(tor.Port))
	q.Set("uploaded", strconv.FormatInt(tor.BytesUploaded, 10))
	q.Set("downloaded", strconv.FormatInt(tor.BytesDownloaded, 10))
	q.Set("left", strconv.FormatInt(tor.BytesLeft, 10))
	q.Set("compact", "1")
	if event != "" {
		q.Set("event", event)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "tracker: cannot build request")
	}

	httpResp, err := t.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "tracker: request failed")
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker: unexpected status %d", httpResp.StatusCode)
	}

	var decoded httpAnnounceResponse
	if err := bencode.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "tracker: invalid response")
	}
	if decoded.FailureReason != "" {
		return nil, fmt.Errorf("tracker: %s", decoded.FailureReason)
	}

	peers, err := decodeCompactPeers([]byte(decoded.Peers))
	if err != nil {
		return nil, errors.Wrap(err, "tracker: invalid peers field")
	}

	return &AnnounceResponse{
		Interval: int(decoded.Interval),
		Seeders:  int(decoded.Complete),
		Leechers: int(decoded.Incomplete),
		Peers:    peers,
	}, nil
}

// decodeCompactPeers parses the compact peer list format: 6 bytes per
// peer, 4-byte big-endian IPv4 address followed by a 2-byte big-endian
// port.
func decodeCompactPeers(b []byte) ([]Peer, error) {
	if len(b)%6 != 0 {
		return nil, fmt.Errorf("compact peers length %d not a multiple of 6", len(b))
	}
	peers := make([]Peer, 0, len(b)/6)
	for i := 0; i+6 <= len(b); i += 6 {
		ip := net.IPv4(b[i], b[i+1], b[i+2], b[i+3])
		port := uint16(b[i+4])<<8 | uint16(b[i+5])
		peers = append(peers, Peer{IP: ip, Port: port})
	}
	return peers, nil
}
