package backup

import (
	"errors"
	"io/fs"
	"path"

	"github.com/rs/zerolog"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/filesystem"
	"github.com/convergefs/convergefs/pkg/convergefs/metrics"
	"github.com/convergefs/convergefs/pkg/convergefs/params"
)

// Manager preserves a path that is about to be overwritten. It never
// silently drops a requested backup: the caller must not modify anything
// if Backup reports failure.
type Manager struct {
	fsys     filesystem.FileSystem
	registry *Registry
	logger   zerolog.Logger
}

// NewManager builds a backup manager over a filesystem and bucket registry.
func NewManager(fsys filesystem.FileSystem, registry *Registry, logger zerolog.Logger) *Manager {
	return &Manager{fsys: fsys, registry: registry, logger: logger}
}

// Backup preserves name according to policy. ok=false without an error
// means the object's type cannot be backed up (warned, not raised); a
// non-nil error is fatal for the write that requested the backup.
// recursing indicates the entity is under recursive management, in which
// case directory children are backed up individually and the directory
// itself is left alone.
func (m *Manager) Backup(name string, policy params.BackupPolicy, recursing bool) (bool, error) {
	info, err := m.fsys.Lstat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, &core.BackupError{Path: name, Reason: "cannot inspect", Cause: err}
	}
	if policy.Disabled() {
		return true, nil
	}

	switch core.KindOf(info.Mode()) {
	case core.KindDirectory:
		return m.backupDirectory(name, policy, recursing)
	case core.KindFile:
		return m.backupFile(name, info, policy)
	case core.KindLink:
		// A link carries no content; the write that replaces it already
		// preserved anything reachable through it.
		m.logger.Debug().Str("path", name).Msg("nothing to back up for a link")
		return true, nil
	default:
		m.logger.Warn().Str("path", name).Stringer("mode", info.Mode()).
			Msg("no backup possible for this object type")
		return false, nil
	}
}

func (m *Manager) backupDirectory(name string, policy params.BackupPolicy, recursing bool) (bool, error) {
	if recursing {
		// Each child under recursive management backs itself up.
		return true, nil
	}
	if policy.Bucket == "" {
		return false, &core.BackupError{
			Path:   name,
			Reason: "directory backups require a remote store, not a local suffix copy",
		}
	}
	store, err := m.registry.Bucket(policy.Bucket)
	if err != nil {
		return false, err
	}
	if err := m.uploadTree(store, name); err != nil {
		return false, err
	}
	if err := m.fsys.RemoveAll(name); err != nil {
		return false, &core.BackupError{Path: name, Reason: "cannot remove backed-up tree", Cause: err}
	}
	metrics.Backups.WithLabelValues("bucket").Inc()
	return true, nil
}

func (m *Manager) uploadTree(store Store, dir string) error {
	entries, err := m.fsys.ReadDir(dir)
	if err != nil {
		return &core.BackupError{Path: dir, Reason: "cannot list for backup", Cause: err}
	}
	for _, entry := range entries {
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := m.uploadTree(store, child); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			m.logger.Warn().Str("path", child).Msg("skipping non-regular file in directory backup")
			continue
		}
		sum, err := store.Upload(child)
		if err != nil {
			return &core.BackupError{Path: child, Reason: "upload failed", Cause: err}
		}
		m.logger.Info().Str("path", child).Str("checksum", sum).Msg("backed up to bucket")
	}
	return nil
}

func (m *Manager) backupFile(name string, info fs.FileInfo, policy params.BackupPolicy) (bool, error) {
	if policy.Bucket != "" {
		store, err := m.registry.Bucket(policy.Bucket)
		if err != nil {
			return false, err
		}
		sum, err := store.Upload(name)
		if err != nil {
			return false, &core.BackupError{Path: name, Reason: "upload failed", Cause: err}
		}
		m.logger.Info().Str("path", name).Str("bucket", policy.Bucket).
			Str("checksum", sum).Msg("backed up to bucket")
		metrics.Backups.WithLabelValues("bucket").Inc()
		return true, nil
	}

	dest := name + policy.Suffix
	if _, err := m.fsys.Lstat(dest); err == nil {
		if err := m.fsys.RemoveAll(dest); err != nil {
			return false, &core.StaleArtifactError{Path: dest, Cause: err}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, &core.BackupError{Path: dest, Reason: "cannot inspect old backup", Cause: err}
	}
	if err := m.copyPreserving(name, dest, info); err != nil {
		return false, &core.BackupError{Path: name, Reason: "local copy failed", Cause: err}
	}
	m.logger.Info().Str("path", name).Str("backup", dest).Msg("backed up locally")
	metrics.Backups.WithLabelValues("local").Inc()
	return true, nil
}

// copyPreserving copies a regular file keeping mode, ownership and
// timestamps intact.
func (m *Manager) copyPreserving(src, dest string, info fs.FileInfo) error {
	data, err := m.fsys.ReadFile(src)
	if err != nil {
		return err
	}
	if err := m.fsys.WriteFile(dest, data, info.Mode().Perm()); err != nil {
		return err
	}
	if err := m.fsys.Chmod(dest, info.Mode().Perm()); err != nil {
		return err
	}
	if uid, gid, ok := m.fsys.Owner(info); ok {
		if err := m.fsys.Chown(dest, uid, gid); err != nil {
			return err
		}
	}
	return m.fsys.Chtimes(dest, info.ModTime(), info.ModTime())
}
