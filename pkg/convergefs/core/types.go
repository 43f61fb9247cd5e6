package core

import (
	"io/fs"
	"time"
)

// FileKind is the fundamental type of a filesystem object as observed on disk.
type FileKind string

const (
	KindFile      FileKind = "file"
	KindDirectory FileKind = "directory"
	KindLink      FileKind = "link"
	KindAbsent    FileKind = "absent"
	// KindDenied marks a path whose metadata could not be read due to
	// permissions. It is a degraded observation, not an error.
	KindDenied FileKind = "denied"
	// KindOther covers devices, sockets, fifos and anything else the
	// engine does not manage.
	KindOther FileKind = "other"
)

// Ensure is the desired fundamental type of an entity. The zero value means
// "not declared": the entity's kind is derived from its other attributes.
type Ensure string

const (
	EnsureUnset     Ensure = ""
	EnsureFile      Ensure = "file"
	EnsureDirectory Ensure = "directory"
	EnsureLink      Ensure = "link"
	EnsureAbsent    Ensure = "absent"
)

// LinkMode controls how symbolic links are treated during stat and recursion.
type LinkMode string

const (
	// LinkManage manages the link itself rather than its target.
	LinkManage LinkMode = "manage"
	// LinkFollow dereferences links and manages what they point at.
	LinkFollow LinkMode = "follow"
	// LinkIgnore skips links entirely during recursion.
	LinkIgnore LinkMode = "ignore"
)

// ChecksumType selects the digest used for content comparison.
type ChecksumType string

const (
	ChecksumMD5    ChecksumType = "md5"
	ChecksumSHA256 ChecksumType = "sha256"
)

// FileInfo is the engine's view of one stat result.
type FileInfo struct {
	Kind       FileKind
	Mode       fs.FileMode
	UID        int
	GID        int
	Size       int64
	ModTime    time.Time
	LinkTarget string
}

// Exists reports whether the path was observed at all. Denied paths exist
// but cannot be inspected further.
func (fi FileInfo) Exists() bool {
	return fi.Kind != KindAbsent
}

// KindOf maps a stat mode to a FileKind.
func KindOf(mode fs.FileMode) FileKind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDirectory
	case mode&fs.ModeSymlink != 0:
		return KindLink
	default:
		return KindOther
	}
}
