package tracker

// Torrent carries the announce parameters the coordinator reports on
// every tracker request: identity plus the running byte counters.
type Torrent struct {
	BytesUploaded   int64
	BytesDownloaded int64
	BytesLeft       int64
	InfoHash        [20]byte
	PeerID          [20]byte
	Port            int
}
