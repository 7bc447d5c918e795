package cmdutil

import (
	"errors"
	"os"
	"syscall"

	"github.com/ambrevar/hsync/internal/fileid"
)

// errUnsupportedPlatform mirrors internal/treeview's own sentinel: the
// (dev, inode) pair cmdutil.FileIDOf relies on is only available through
// syscall.Stat_t.
var errUnsupportedPlatform = errors.New("cmdutil: file identity unavailable on this platform")

// FileIDOf stats path and derives its file-id the same way
// internal/treeview's online walk does, for verbs (lookup) that need one
// path's identity without enumerating the whole tree.
func FileIDOf(path string) (fileid.FileID, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileid.FileID{}, nil, err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileid.FileID{}, nil, errUnsupportedPlatform
	}
	return fileid.FileID{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, info, nil // #nosec G115
}
