package metainfo

import "github.com/pkg/errors"

// FilePlan is one logical file in the payload: its on-disk relative path,
// length, and the offset at which it begins within the flat [0,size) range.
type FilePlan struct {
	Path         string
	Length       int64
	GlobalOffset int64
}

// TorrentPlan is everything the rest of the module needs to build a
// torrent's File Set and Piece Index, derived from a decoded MetaInfo.
type TorrentPlan struct {
	Name         string
	MultiFile    bool // true if the payload is laid out under Name/ rather than stored at Name
	PieceLength  int64
	Size         int64
	Files        []FilePlan
	PieceHashes  [][20]byte
	AnnounceURLs []string
	InfoHash     [20]byte
}

// BuildPlan derives a TorrentPlan from a decoded MetaInfo. mi.Info must
// already be populated (metainfo.New does this).
func BuildPlan(mi *MetaInfo) (*TorrentPlan, error) {
	if mi.Info == nil {
		return nil, errors.New("metainfo: BuildPlan requires a decoded info dict")
	}
	info := mi.Info

	plan := &TorrentPlan{
		Name:         info.Name,
		MultiFile:    info.IsMultiFile(),
		PieceLength:  info.PieceLength,
		Size:         info.TotalLength,
		AnnounceURLs: mi.AnnounceURLs(),
		InfoHash:     info.Hash,
	}

	plan.PieceHashes = make([][20]byte, info.NumPieces)
	for i := 0; i < info.NumPieces; i++ {
		plan.PieceHashes[i] = info.PieceHash(i)
	}

	if info.IsMultiFile() {
		var offset int64
		for _, f := range info.Files {
			rel, err := f.JoinedPath()
			if err != nil {
				return nil, err
			}
			plan.Files = append(plan.Files, FilePlan{
				Path:         rel,
				Length:       f.Length,
				GlobalOffset: offset,
			})
			offset += f.Length
		}
	} else {
		plan.Files = []FilePlan{{
			Path:         info.Name,
			Length:       info.TotalLength,
			GlobalOffset: 0,
		}}
	}

	return plan, nil
}
