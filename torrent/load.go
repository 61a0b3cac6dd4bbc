package torrent

import (
	"io"

	"github.com/pkg/errors"

	"github.com/cenkalti/rain/internal/bitfield"
	"github.com/cenkalti/rain/internal/metainfo"
	"github.com/cenkalti/rain/internal/piece"
	"github.com/cenkalti/rain/internal/storage"
)

// loadResult is delivered to run() once the background load completes,
// successfully or not.
type loadResult struct {
	plan      *metainfo.TorrentPlan
	fs        *storage.FileSet
	index     *piece.Index
	completed *bitfield.Bitfield
	err       error
}

// load performs the asynchronous portion of the lifecycle described for
// a new Torrent: parse the descriptor, open/allocate files, and run the
// initial verification scan. Every step here can fail fatally; on any
// failure the result carries the wrapped error and run() transitions to
// LoadError.
func (t *Torrent) load(r io.Reader, downloadPath string) {
	mi, err := metainfo.New(r)
	if err != nil {
		t.loadResultC <- loadResult{err: errors.Wrap(err, "torrent: load failed")}
		return
	}
	plan, err := metainfo.BuildPlan(mi)
	if err != nil {
		t.loadResultC <- loadResult{err: errors.Wrap(err, "torrent: load failed")}
		return
	}
	fs, err := storage.New(downloadPath, plan.Name, plan.MultiFile, plan.Files)
	if err != nil {
		t.loadResultC <- loadResult{err: errors.Wrap(err, "torrent: load failed")}
		return
	}
	index, completed, err := piece.BuildIndex(plan, fs)
	if err != nil {
		fs.Close()
		t.loadResultC <- loadResult{err: errors.Wrap(err, "torrent: load failed")}
		return
	}
	t.loadResultC <- loadResult{plan: plan, fs: fs, index: index, completed: completed}
}
