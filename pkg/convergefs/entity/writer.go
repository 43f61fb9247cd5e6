package entity

import (
	"fmt"
	"io/fs"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/metrics"
)

// TempSuffix names the sibling path content is staged at before the
// atomic rename.
const TempSuffix = ".cfstmp"

// Write atomically replaces the entity's content. The existing object is
// backed up first (fatal if a requested backup cannot be produced), an
// existing link is unlinked unless links are followed, content is staged
// with the declared mode and ownership applied, then renamed over the
// real path. The checksum coordinator is refreshed from disk afterwards
// so every content-bearing attribute agrees the entity is in sync.
func (e *Entity) Write(content []byte, useTemp bool) error {
	log := e.logger()

	info, err := e.Stat(false, true)
	if err != nil {
		return err
	}
	if info.Exists() {
		requested := !e.params.Backup.Disabled()
		ok, err := e.env.Backups.Backup(e.path, e.params.Backup, e.params.Recursing())
		if err != nil {
			return err
		}
		if requested && !ok {
			return &core.BackupError{
				Path:   e.path,
				Reason: "backup was requested but could not be produced",
			}
		}
		if info.Kind == core.KindLink && e.params.LinkMode != core.LinkFollow {
			if err := e.env.FS.Remove(e.path); err != nil {
				return fmt.Errorf("unlink %s: %w", e.path, err)
			}
		}
	}

	target := e.path
	if useTemp {
		target = e.path + TempSuffix
	}

	mode := fs.FileMode(0o644)
	if e.desired.Mode != nil {
		mode = *e.desired.Mode
	}
	if err := e.env.FS.WriteFile(target, content, mode); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	if e.desired.Mode != nil {
		// The creation mode is subject to the process umask; chmod makes
		// the declared mode exact.
		if err := e.env.FS.Chmod(target, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", target, err)
		}
	}
	if e.desired.Owner != nil || e.desired.Group != nil {
		uid, gid := -1, -1
		if e.desired.Owner != nil {
			uid = *e.desired.Owner
		}
		if e.desired.Group != nil {
			gid = *e.desired.Group
		}
		if err := e.env.FS.Chown(target, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", target, err)
		}
	}

	if useTemp {
		if err := e.env.FS.Rename(target, e.path); err != nil {
			log.Error().Err(err).Str("temp", target).Msg("atomic replace failed")
			if rmErr := e.env.FS.Remove(target); rmErr != nil {
				stale := &core.StaleArtifactError{Path: target, Cause: rmErr}
				log.Error().Err(stale).Msg("orphaned temp file left behind")
			}
			return fmt.Errorf("replace %s: %w", e.path, err)
		}
	}

	metrics.Writes.Inc()
	e.Invalidate()

	// Deliberate re-read: record the true on-disk checksum so the next
	// pass sees an in-sync state without another read.
	if err := e.coord.Set(); err != nil {
		return err
	}
	log.Info().Int("bytes", len(content)).Msg("content replaced")
	return nil
}

// RecordedChecksum exposes the coordinator's current value.
func (e *Entity) RecordedChecksum() (string, bool) {
	return e.coord.Value()
}
