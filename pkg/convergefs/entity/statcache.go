package entity

import (
	"errors"
	"io/fs"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
)

// statCache holds the last metadata observation for an entity, so repeated
// attribute checks within a pass do not hit the OS again.
type statCache struct {
	info  core.FileInfo
	valid bool
}

// Stat returns the entity's filesystem metadata, cached unless refresh is
// requested or nothing is cached yet. With followLinks false (the default
// for anything whose link mode is not "follow") a link-aware query is
// used. An absent path is not an error: it yields a typed absent result.
// A permission failure yields a typed denied result and a warning; any
// other OS error propagates.
func (e *Entity) Stat(followLinks, refresh bool) (core.FileInfo, error) {
	if e.stat.valid && !refresh {
		return e.stat.info, nil
	}

	var (
		raw fs.FileInfo
		err error
	)
	if followLinks {
		raw, err = e.env.FS.Stat(e.path)
	} else {
		raw, err = e.env.FS.Lstat(e.path)
	}

	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		e.stat = statCache{info: core.FileInfo{Kind: core.KindAbsent}, valid: true}
		return e.stat.info, nil
	case errors.Is(err, fs.ErrPermission):
		e.logger().Warn().Err(err).Msg("cannot inspect path")
		e.stat = statCache{info: core.FileInfo{Kind: core.KindDenied}, valid: true}
		return e.stat.info, nil
	default:
		return core.FileInfo{}, err
	}

	info := core.FileInfo{
		Kind:    core.KindOf(raw.Mode()),
		Mode:    raw.Mode(),
		Size:    raw.Size(),
		ModTime: raw.ModTime(),
	}
	if uid, gid, ok := e.env.FS.Owner(raw); ok {
		info.UID, info.GID = uid, gid
	}
	if info.Kind == core.KindLink {
		if target, err := e.env.FS.Readlink(e.path); err == nil {
			info.LinkTarget = target
		}
	}
	e.stat = statCache{info: info, valid: true}
	return info, nil
}

// Invalidate drops the cached metadata and the recorded content
// checksum; the next Stat queries the OS and the next content compare
// re-reads from disk.
func (e *Entity) Invalidate() {
	e.stat = statCache{}
	e.coord.Invalidate()
}
