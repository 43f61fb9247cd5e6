package backup

import (
	"fmt"
	"path"

	"github.com/convergefs/convergefs/pkg/convergefs/checksum"
	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/filesystem"
)

// DirStore is a content-addressed store on a local directory: each upload
// lands at root/<aa>/<checksum>, so identical content is stored once.
type DirStore struct {
	fsys filesystem.FileSystem
	root string
}

// NewDirStore returns a store rooted at the given directory.
func NewDirStore(fsys filesystem.FileSystem, root string) *DirStore {
	return &DirStore{fsys: fsys, root: root}
}

// Upload stores the file's content under its sha256 checksum.
func (s *DirStore) Upload(localPath string) (string, error) {
	data, err := s.fsys.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", localPath, err)
	}
	sum, err := checksum.Sum(data, core.ChecksumSHA256)
	if err != nil {
		return "", err
	}
	dir := path.Join(s.root, sum[:2])
	if err := s.fsys.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("prepare %s: %w", dir, err)
	}
	dest := path.Join(dir, sum)
	if err := s.fsys.WriteFile(dest, data, 0o600); err != nil {
		return "", fmt.Errorf("store %s: %w", dest, err)
	}
	return sum, nil
}
