package filesystem

import (
	"io/fs"
	"os"
	"syscall"
	"time"
)

// OSFileSystem implements FileSystem against the real OS. Paths are used
// as given; callers are expected to pass absolute, cleaned paths.
type OSFileSystem struct{}

// NewOSFileSystem returns a FileSystem backed by the OS.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (osfs *OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (osfs *OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (osfs *OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (osfs *OSFileSystem) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

func (osfs *OSFileSystem) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

func (osfs *OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (osfs *OSFileSystem) Mkdir(name string, perm fs.FileMode) error {
	return os.Mkdir(name, perm)
}

func (osfs *OSFileSystem) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(name, perm)
}

func (osfs *OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}

func (osfs *OSFileSystem) RemoveAll(name string) error {
	return os.RemoveAll(name)
}

func (osfs *OSFileSystem) Rename(oldname, newname string) error {
	return os.Rename(oldname, newname)
}

func (osfs *OSFileSystem) Symlink(target, name string) error {
	return os.Symlink(target, name)
}

func (osfs *OSFileSystem) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(name, mode)
}

func (osfs *OSFileSystem) Chown(name string, uid, gid int) error {
	return os.Lchown(name, uid, gid)
}

func (osfs *OSFileSystem) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

// Owner extracts uid/gid from the underlying syscall stat, when available.
func (osfs *OSFileSystem) Owner(info fs.FileInfo) (int, int, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return int(st.Uid), int(st.Gid), true
}
