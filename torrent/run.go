package torrent

import (
	"math/rand"
	"net"

	"github.com/cenkalti/rain/internal/bitfield"
	"github.com/cenkalti/rain/internal/peer"
	"github.com/cenkalti/rain/internal/piece"
	"github.com/cenkalti/rain/internal/tracker"
)

// run is the Coordinator's single logical execution context. No two
// handlers below ever run concurrently with respect to Torrent-private
// state: they are only ever invoked from this one select loop.
func (t *Torrent) run() {
	for {
		select {
		case done := <-t.closeC:
			t.handleClose()
			close(done)
			return

		case res := <-t.loadResultC:
			t.handleLoadResult(res)

		case <-t.startC:
			t.handleStart()

		case <-t.stopC:
			t.handleStop()

		case cmd := <-t.addPeerC:
			t.handleAddPeer(cmd.handle)

		case ev := <-t.peerEventC:
			t.handlePeerEvent(ev)

		case res := <-t.trackerResC:
			t.handleTrackerResult(res)

		case reply := <-t.statsC:
			reply <- t.snapshotStats()

		case reply := <-t.peersC:
			reply <- t.snapshotPeers()

		case reply := <-t.trackersC:
			reply <- t.snapshotTrackers()
		}
	}
}

func (t *Torrent) handleClose() {
	if t.status == Ready {
		t.handleStop()
	}
	if t.fs != nil {
		t.fs.Close()
	}
}

// handleLoadResult implements the lifecycle transition described for a
// newly constructed Torrent: Loading -> Ready (emitting `ready`, and
// `complete` first if already whole) or Loading -> LoadError.
func (t *Torrent) handleLoadResult(res loadResult) {
	if res.err != nil {
		t.status = LoadError
		t.lastError = res.err
		t.emit(Event{Kind: EventError, Err: res.err})
		return
	}

	t.plan = res.plan
	t.fs = res.fs
	t.index = res.index
	t.completed = res.completed
	t.active = bitfield.New(res.completed.Len())
	t.name = res.plan.Name
	t.infoHash = res.plan.InfoHash

	for _, url := range res.plan.AnnounceURLs {
		tr := tracker.NewHTTP(url, t.announceTorrent)
		t.trackers = append(t.trackers, tr)
	}

	t.status = Ready

	if t.completed.Count() == uint32(t.index.NumPieces()) && t.index.NumPieces() > 0 {
		t.wasComplete = true
		t.emit(Event{Kind: EventComplete})
	}
	t.emit(Event{Kind: EventReady})
}

func (t *Torrent) announceTorrent() tracker.Torrent {
	return tracker.Torrent{
		BytesUploaded:   t.uploaded,
		BytesDownloaded: t.downloaded,
		BytesLeft:       t.bytesLeft(),
		InfoHash:        t.infoHash,
		PeerID:          t.peerID,
		Port:            t.config.Port,
	}
}

func (t *Torrent) bytesLeft() int64 {
	if t.plan == nil {
		return 0
	}
	completedBytes := int64(0)
	for _, p := range t.index.Pieces {
		if t.completed.Test(uint32(p.Index)) {
			completedBytes += p.Length
		}
	}
	return t.plan.Size - completedBytes
}

// handleStart implements spec.md §4.5.8 start(): begin announcing to
// every tracker, delivering each response back through trackerResC.
func (t *Torrent) handleStart() {
	if t.status != Ready || t.started {
		return
	}
	t.started = true
	for _, tr := range t.trackers {
		tr := tr
		url := trackerURL(tr)
		tr.Start(func(resp *tracker.AnnounceResponse, err error) {
			t.trackerResC <- trackerResult{url: url, resp: resp, err: err}
		})
	}
}

// handleStop implements spec.md §4.5.8 stop(): stop every tracker and
// disconnect every peer. The Torrent remains usable afterward.
func (t *Torrent) handleStop() {
	if t.status != Ready || !t.started {
		return
	}
	for _, tr := range t.trackers {
		tr.Stop()
	}
	t.peers.Each(func(p *peer.Peer) {
		p.Close()
	})
	t.peers = peer.NewSet()
	t.started = false
}

// handleAddPeer implements spec.md §4.5.1: idempotent admission by peer
// identifier, followed by sending a BITFIELD carrying `completed`. Per
// spec.md §5, no new admissions occur after stop(): a peer offered
// between Stop and the next Start is rejected outright.
func (t *Torrent) handleAddPeer(h peer.Handle) {
	if t.status != Ready || !t.started {
		h.Close()
		return
	}
	numPieces := uint32(0)
	if t.index != nil {
		numPieces = uint32(t.index.NumPieces())
	}
	p := peer.New(h, numPieces)
	if !t.peers.Add(p) {
		return // already known: admission is idempotent
	}
	p.Initialised = true
	h.SendBitfield(t.completed.Copy())
}

// handlePeerEvent dispatches a typed notification pushed by a connected
// peer onto the coordinator's single execution context.
func (t *Torrent) handlePeerEvent(ev peerEvent) {
	p := t.peers.Get(ev.id)
	if p == nil {
		return
	}
	switch ev.kind {
	case peerBitfieldUpdated:
		p.UpdateBitfield(bitfield.NewBytes(ev.data, uint32(t.index.NumPieces())))
		t.recomputeInterest(p)
	case peerHave:
		p.MarkHave(ev.index)
		t.recomputeInterest(p)
	case peerReadyForMore:
		t.selectPieceForPeer(p)
	case peerChunkReceived:
		t.handleChunkReceived(p, ev.request, ev.data)
	case peerChunkRequested:
		t.handleChunkRequested(p, ev.request)
	case peerDisconnected:
		t.handleDisconnect(p, ev.reason)
	}
}

// recomputeInterest implements spec.md §4.5.2.
func (t *Torrent) recomputeInterest(p *peer.Peer) {
	interest := p.Bitfield.AndNot(t.completed).Count() > 0
	p.SetAmInterested(interest)
}

// selectPieceForPeer implements the three-step peer-ready policy of
// spec.md §4.5.3.
func (t *Torrent) selectPieceForPeer(p *peer.Peer) {
	// Step 1: reuse active.
	for _, i := range t.active.SetIndices() {
		idx := int(i)
		if !p.Bitfield.Test(i) {
			continue
		}
		pc := t.index.Get(idx)
		if pc == nil || pc.HasRequestedAllChunks() {
			continue
		}
		t.assignPiece(p, pc)
		return
	}

	// Step 2: activate new, uniformly at random.
	available := p.Bitfield.AndNot(t.active).AndNot(t.completed)
	candidates := available.SetIndices()
	if len(candidates) > 0 {
		choice := candidates[rand.Intn(len(candidates))]
		t.active.Set(choice)
		pc := t.index.Get(int(choice))
		t.assignPiece(p, pc)
		return
	}

	// Step 3: idle.
	if p.NumRequests == 0 {
		p.SetAmInterested(false)
	}
}

func (t *Torrent) assignPiece(p *peer.Peer, pc *piece.Piece) {
	if pc == nil {
		return
	}
	p.MarkPieceInProgress(pc.Index)
	c := pc.RequestChunk()
	if c == nil {
		return
	}
	p.NumRequests++
	_ = p.Handle.SendRequest(peer.Request{Piece: pc.Index, Begin: c.Begin, Length: c.Length})
}

// handleDisconnect implements spec.md §4.5.4.
func (t *Torrent) handleDisconnect(p *peer.Peer, reason string) {
	t.log.Debugf("peer %s disconnected: %s", p.ID(), reason)
	for idx := range p.PiecesInProgress {
		t.active.Unset(uint32(idx))
	}
	p.PiecesInProgress = make(map[int]struct{})
	t.peers.Remove(p.ID())
}

// handleChunkReceived stores a received chunk, and on piece completion
// performs the full spec.md §4.5.5 bookkeeping.
func (t *Torrent) handleChunkReceived(p *peer.Peer, req peer.Request, data []byte) {
	p.NumRequests--
	pc := t.index.Get(req.Piece)
	if pc == nil {
		return
	}
	chunkIndex := int(req.Begin / piece.ChunkLength)
	p.RecordDownloaded(int64(len(data)))
	allReceived := pc.PutChunk(chunkIndex, data)
	if !allReceived {
		return
	}

	assembled := pc.Assemble()
	if !pc.Verify(assembled) {
		// Corrupt: Verify already reset the piece to Idle and cleared
		// its chunk data. Clear active so the peer-ready policy can
		// activate the piece again; no event is emitted.
		t.active.Unset(uint32(pc.Index))
		p.UnmarkPieceInProgress(pc.Index)
		return
	}
	if err := t.fs.WriteAt(pc.Offset, assembled); err != nil {
		t.log.Errorf("cannot write piece %d: %s", pc.Index, err)
		pc.Cancel()
		t.active.Unset(uint32(pc.Index))
		p.UnmarkPieceInProgress(pc.Index)
		return
	}

	t.completed.Set(uint32(pc.Index))
	t.active.Unset(uint32(pc.Index))
	t.downloaded += pc.Length
	p.UnmarkPieceInProgress(pc.Index)

	completedPieces := int(t.completed.Count())
	fraction := float64(completedPieces) / float64(t.index.NumPieces())
	t.emit(Event{Kind: EventProgress, Progress: fraction})

	t.peers.Each(func(other *peer.Peer) {
		if other.Initialised {
			other.Handle.SendHave(pc.Index)
		}
	})

	if !t.wasComplete && completedPieces == t.index.NumPieces() {
		t.wasComplete = true
		t.emit(Event{Kind: EventComplete})
	}
}

// handleChunkRequested implements spec.md §4.5.6.
func (t *Torrent) handleChunkRequested(p *peer.Peer, req peer.Request) {
	pc := t.index.Get(req.Piece)
	if pc == nil {
		return
	}
	data, err := t.fs.ReadAt(pc.Offset+req.Begin, req.Length)
	if err != nil {
		p.Handle.SendReject(req)
		return
	}
	t.uploaded += int64(len(data))
	p.RecordUploaded(int64(len(data)))
	p.Handle.SendPiece(req, data)
}

// handleTrackerResult implements spec.md §4.5.7.
func (t *Torrent) handleTrackerResult(res trackerResult) {
	if res.err != nil || res.resp == nil {
		t.emit(Event{Kind: EventUpdated})
		return
	}
	t.trackerSet.Update(res.url, res.resp.Seeders, res.resp.Leechers)

	isComplete := t.completed != nil && t.index != nil &&
		t.completed.Count() == uint32(t.index.NumPieces())
	if !isComplete && t.OnPeerCandidate != nil {
		for _, candidate := range res.resp.Peers {
			id := peer.NewAddrID(&net.TCPAddr{IP: candidate.IP, Port: int(candidate.Port)})
			if t.peers.Has(id) {
				continue
			}
			t.OnPeerCandidate(candidate)
		}
	}
	t.emit(Event{Kind: EventUpdated})
}

func trackerURL(tr tracker.Handle) string {
	if h, ok := tr.(*tracker.HTTPTracker); ok {
		return h.URL
	}
	return ""
}
