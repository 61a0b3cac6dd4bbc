package torrent

import (
	"github.com/cenkalti/rain/internal/peer"
	"github.com/cenkalti/rain/internal/tracker"
)

// EventKind distinguishes the observable events a Torrent emits.
type EventKind int

const (
	// EventReady fires exactly once, when the torrent transitions
	// Loading -> Ready.
	EventReady EventKind = iota
	// EventComplete fires exactly once, the first time is_complete
	// becomes true (immediately before Ready, if the torrent was
	// already fully downloaded on disk).
	EventComplete
	// EventProgress fires on every piece completion with a monotone
	// non-decreasing completed/total fraction in [0,1].
	EventProgress
	// EventUpdated fires after every tracker announce result, successful
	// or failed; only successful results change the aggregates.
	EventUpdated
	// EventError fires on a fatal load error (status becomes LoadError).
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventComplete:
		return "complete"
	case EventProgress:
		return "progress"
	case EventUpdated:
		return "updated"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single observable occurrence emitted on Torrent.Events().
type Event struct {
	Kind     EventKind
	Err      error   // set for EventError
	Progress float64 // set for EventProgress: completed/total pieces, in [0,1]
}

func (t *Torrent) emit(e Event) {
	select {
	case t.events <- e:
	default:
		// Events is a bounded best-effort stream; a slow consumer must
		// not stall the coordinator's single execution context.
		t.log.Warningln("event channel full, dropping event", e.Kind)
	}
}

// peerEventKind distinguishes the kinds of notifications a connected
// peer can push onto the coordinator's event loop. Peers never call
// back into Torrent directly — they only ever see the narrow
// peer.Handle they were constructed with, and push typed events here
// instead, per the weak-back-reference design.
type peerEventKind int

const (
	peerBitfieldUpdated peerEventKind = iota
	peerHave
	peerReadyForMore // peer signaled capacity for another piece request
	peerChunkReceived
	peerChunkRequested // peer wants a chunk from us (upload path)
	peerDisconnected
)

type peerEvent struct {
	kind    peerEventKind
	id      peer.ID
	index   int
	data    []byte
	request peer.Request
	reason  string
}

// addPeerCmd is the admission request sent to run() by AddPeer.
type addPeerCmd struct {
	handle peer.Handle
}

// trackerResult carries one tracker's announce outcome back to run().
type trackerResult struct {
	url  string
	resp *tracker.AnnounceResponse
	err  error
}

// AddPeer admits a newly connected peer, identified by h. Admission is
// idempotent by peer identifier (spec.md §4.5.1): adding an
// already-known peer is a no-op.
func (t *Torrent) AddPeer(h peer.Handle) {
	t.addPeerC <- addPeerCmd{handle: h}
}

// NotifyBitfieldUpdated delivers the wire-order bitfield bytes received in
// a peer's BITFIELD message, replacing what the coordinator knows about
// id's pieces and triggering interest recomputation (spec.md §4.5.2).
func (t *Torrent) NotifyBitfieldUpdated(id peer.ID, data []byte) {
	t.peerEventC <- peerEvent{kind: peerBitfieldUpdated, id: id, data: data}
}

// NotifyHave tells the coordinator that id now has piece index.
func (t *Torrent) NotifyHave(id peer.ID, index int) {
	t.peerEventC <- peerEvent{kind: peerHave, id: id, index: index}
}

// NotifyReadyForMore invokes the peer-ready piece-selection policy
// (spec.md §4.5.3) for id.
func (t *Torrent) NotifyReadyForMore(id peer.ID) {
	t.peerEventC <- peerEvent{kind: peerReadyForMore, id: id}
}

// NotifyChunkReceived delivers chunk data received from id for the given
// request.
func (t *Torrent) NotifyChunkReceived(id peer.ID, req peer.Request, data []byte) {
	t.peerEventC <- peerEvent{kind: peerChunkReceived, id: id, request: req, data: data}
}

// NotifyChunkRequested tells the coordinator that id has requested a
// chunk of piece data from us (the upload path, spec.md §4.5.6).
func (t *Torrent) NotifyChunkRequested(id peer.ID, req peer.Request) {
	t.peerEventC <- peerEvent{kind: peerChunkRequested, id: id, request: req}
}

// NotifyDisconnected tells the coordinator that id has disconnected.
func (t *Torrent) NotifyDisconnected(id peer.ID, reason string) {
	t.peerEventC <- peerEvent{kind: peerDisconnected, id: id, reason: reason}
}
