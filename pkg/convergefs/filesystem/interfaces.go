// Package filesystem abstracts the OS operations the reconciliation engine
// performs, so the engine can run against the real filesystem or an
// in-memory double in tests. All paths are absolute.
package filesystem

import (
	"io/fs"
	"time"
)

// ReadFS is the read side of the filesystem contract.
type ReadFS interface {
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	Readlink(name string) (string, error)
}

// WriteFS is the write side of the filesystem contract.
type WriteFS interface {
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Mkdir(name string, perm fs.FileMode) error
	MkdirAll(name string, perm fs.FileMode) error
	Remove(name string) error
	RemoveAll(name string) error
	Rename(oldname, newname string) error
	Symlink(target, name string) error
	Chmod(name string, mode fs.FileMode) error
	Chown(name string, uid, gid int) error
	Chtimes(name string, atime, mtime time.Time) error
}

// FileSystem combines read and write operations with ownership reporting.
type FileSystem interface {
	ReadFS
	WriteFS

	// Owner reports the numeric ownership recorded in a stat result.
	// ok is false when the platform or implementation does not carry
	// ownership information.
	Owner(info fs.FileInfo) (uid, gid int, ok bool)
}
