package torrent

import (
	"github.com/cenkalti/rain/internal/peer"
	"github.com/cenkalti/rain/internal/tracker"
)

// Stats is a point-in-time snapshot of the coordinator's observable
// state, the concrete shape of spec.md §6's "Observer queries".
type Stats struct {
	Status     Status
	Name       string
	Size       int64
	Completed  uint32
	Active     uint32
	NumPieces  int
	Downloaded int64
	Uploaded   int64
	Seeders    int
	Leechers   int
	LastError  error
}

// PeerInfo is a read-only view of one connected peer.
type PeerInfo struct {
	ID                  peer.ID
	AmInterested        bool
	IsChoked            bool
	NumRequests         int
	CurrentDownloadRate int64
	CurrentUploadRate   int64
}

// TrackerInfo is a read-only view of one tracker.
type TrackerInfo struct {
	URL       string
	State     tracker.State
	LastError error
}

// Stats returns a snapshot of the torrent's current state.
func (t *Torrent) Stats() Stats {
	reply := make(chan Stats, 1)
	t.statsC <- reply
	return <-reply
}

// ListPeers returns a snapshot of all currently connected peers.
func (t *Torrent) ListPeers() []PeerInfo {
	reply := make(chan []PeerInfo, 1)
	t.peersC <- reply
	return <-reply
}

// ListTrackers returns a snapshot of all trackers.
func (t *Torrent) ListTrackers() []TrackerInfo {
	reply := make(chan []TrackerInfo, 1)
	t.trackersC <- reply
	return <-reply
}

func (t *Torrent) snapshotStats() Stats {
	s := Stats{
		Status:    t.status,
		Name:      t.name,
		LastError: t.lastError,
	}
	if t.plan != nil {
		s.Size = t.plan.Size
	}
	if t.index != nil {
		s.NumPieces = t.index.NumPieces()
	}
	if t.completed != nil {
		s.Completed = t.completed.Count()
	}
	if t.active != nil {
		s.Active = t.active.Count()
	}
	s.Downloaded = t.downloaded
	s.Uploaded = t.uploaded
	s.Seeders, s.Leechers = t.trackerSet.Totals()

	t.stats.Gauge("completed_pieces").Update(float64(s.Completed))
	t.stats.Gauge("downloaded_bytes").Update(float64(s.Downloaded))
	t.stats.Gauge("uploaded_bytes").Update(float64(s.Uploaded))

	return s
}

func (t *Torrent) snapshotPeers() []PeerInfo {
	list := t.peers.List()
	out := make([]PeerInfo, len(list))
	for i, p := range list {
		out[i] = PeerInfo{
			ID:                  p.ID(),
			AmInterested:        p.AmInterested,
			IsChoked:            p.IsChoked,
			NumRequests:         p.NumRequests,
			CurrentDownloadRate: p.CurrentDownloadRate(),
			CurrentUploadRate:   p.CurrentUploadRate(),
		}
	}
	return out
}

func (t *Torrent) snapshotTrackers() []TrackerInfo {
	out := make([]TrackerInfo, len(t.trackers))
	for i, tr := range t.trackers {
		out[i] = TrackerInfo{
			URL:       trackerURL(tr),
			State:     tr.State(),
			LastError: tr.LastError(),
		}
	}
	return out
}
