// Package storage implements the File Set: a logical byte range
// [0, size) mapped onto one or more on-disk files.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/cenkalti/rain/internal/metainfo"
)

// file is one open on-disk file backing a portion of the logical range.
type file struct {
	Path         string
	Length       int64
	GlobalOffset int64
	handle       *os.File
}

// FileSet exposes the torrent's payload as a single flat [0, size) range,
// splitting reads and writes across on-disk files as needed.
type FileSet struct {
	size  int64
	files []*file
}

// New opens (creating as necessary) the on-disk files for a torrent laid out
// under downloadPath. A single-file torrent is stored at
// downloadPath/name; a multi-file torrent is stored under
// downloadPath/name/<path>, creating intermediate directories. multiFile
// must come from the decoded metainfo.Info.IsMultiFile(), not be
// re-derived from the files slice: a multi-file torrent can legitimately
// carry a single file entry whose path equals name.
func New(downloadPath, name string, multiFile bool, files []metainfo.FilePlan) (*FileSet, error) {
	root := downloadPath
	if multiFile {
		root = filepath.Join(downloadPath, name)
	}

	fs := &FileSet{}
	for _, fp := range files {
		full := filepath.Join(root, fp.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			return nil, errors.Wrapf(err, "storage: cannot create directory for %q", fp.Path)
		}
		h, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE, 0o640)
		if err != nil {
			return nil, errors.Wrapf(err, "storage: cannot open file %q", fp.Path)
		}
		if err := h.Truncate(fp.Length); err != nil {
			h.Close()
			return nil, errors.Wrapf(err, "storage: cannot allocate file %q", fp.Path)
		}
		fs.files = append(fs.files, &file{
			Path:         full,
			Length:       fp.Length,
			GlobalOffset: fp.GlobalOffset,
			handle:       h,
		})
		fs.size += fp.Length
	}
	sort.Slice(fs.files, func(i, j int) bool {
		return fs.files[i].GlobalOffset < fs.files[j].GlobalOffset
	})
	return fs, nil
}

// Size returns the total logical payload size.
func (fs *FileSet) Size() int64 { return fs.size }

// Close closes all underlying file handles.
func (fs *FileSet) Close() error {
	var firstErr error
	for _, f := range fs.files {
		if err := f.handle.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReadAt reads length bytes starting at the logical offset, splitting the
// read across file boundaries as needed.
func (fs *FileSet) ReadAt(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > fs.size {
		return nil, fmt.Errorf("storage: read [%d,%d) out of bounds [0,%d)", offset, offset+length, fs.size)
	}
	out := make([]byte, length)
	if err := fs.forEachSpan(offset, length, func(f *file, fileOff, spanOff, n int64) error {
		_, err := f.handle.ReadAt(out[spanOff:spanOff+n], fileOff)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "storage: read failed")
	}
	return out, nil
}

// WriteAt writes data starting at the logical offset, splitting the write
// across file boundaries as needed.
func (fs *FileSet) WriteAt(offset int64, data []byte) error {
	length := int64(len(data))
	if offset < 0 || offset+length > fs.size {
		return fmt.Errorf("storage: write [%d,%d) out of bounds [0,%d)", offset, offset+length, fs.size)
	}
	err := fs.forEachSpan(offset, length, func(f *file, fileOff, spanOff, n int64) error {
		_, err := f.handle.WriteAt(data[spanOff:spanOff+n], fileOff)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "storage: write failed")
	}
	return nil
}

// forEachSpan invokes fn once per file that the logical range
// [offset, offset+length) overlaps, with the matching offset within that
// file and the offset/length of that sub-span within the caller's buffer.
func (fs *FileSet) forEachSpan(offset, length int64, fn func(f *file, fileOff, spanOff, n int64) error) error {
	remaining := length
	cur := offset
	var spanOff int64
	for _, f := range fs.files {
		if remaining == 0 {
			break
		}
		fileEnd := f.GlobalOffset + f.Length
		if cur >= fileEnd || cur+remaining <= f.GlobalOffset {
			continue
		}
		fileOff := cur - f.GlobalOffset
		n := fileEnd - cur
		if n > remaining {
			n = remaining
		}
		if err := fn(f, fileOff, spanOff, n); err != nil {
			return err
		}
		cur += n
		spanOff += n
		remaining -= n
	}
	if remaining != 0 {
		return fmt.Errorf("storage: range [%d,%d) not fully covered by files", offset, offset+length)
	}
	return nil
}
