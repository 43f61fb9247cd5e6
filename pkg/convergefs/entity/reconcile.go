package entity

import (
	"fmt"
	"io/fs"

	"github.com/gammazero/toposort"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/convergefs/convergefs/pkg/convergefs/checksum"
	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/metrics"
)

// Result summarizes one reconciliation pass.
type Result struct {
	Applied  int // changes made
	Skipped  int // out-of-sync but deliberately not changed
	Failures []error
}

// Reconciler drives a pass: expand the declared trees, then bring every
// entity in sync, isolating per-entity failures so siblings proceed.
type Reconciler struct {
	env  *Env
	noop bool
}

// NewReconciler builds a reconciler. With noop set, out-of-sync entities
// are reported but nothing is modified.
func NewReconciler(env *Env, noop bool) *Reconciler {
	return &Reconciler{env: env, noop: noop}
}

// Run reconciles the given root entities and everything recursion
// discovers beneath them.
func (r *Reconciler) Run(roots []*Entity) *Result {
	log := r.env.Logger.With().Str("run", uuid.NewString()).Logger()
	res := &Result{}

	var all []*Entity
	for _, root := range roots {
		r.expand(log, root, &all, res)
	}
	ordered := orderParentFirst(all)

	// Creations and updates run parent before child; removals run child
	// before parent so emptied directories can go last.
	for _, e := range ordered {
		if e.desired.Kind() == core.EnsureAbsent {
			continue
		}
		r.applyLogged(log, e, res)
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].desired.Kind() != core.EnsureAbsent {
			continue
		}
		r.applyLogged(log, ordered[i], res)
	}

	log.Info().Int("applied", res.Applied).Int("skipped", res.Skipped).
		Int("failed", len(res.Failures)).Msg("reconciliation pass complete")
	return res
}

func (r *Reconciler) expand(log zerolog.Logger, e *Entity, all *[]*Entity, res *Result) {
	*all = append(*all, e)
	if err := e.Expand(); err != nil {
		log.Error().Err(err).Str("path", e.path).Msg("recursion failed")
		res.Failures = append(res.Failures, err)
	}
	for _, child := range e.Children() {
		r.expand(log, child, all, res)
	}
}

func (r *Reconciler) applyLogged(log zerolog.Logger, e *Entity, res *Result) {
	if err := r.apply(log, e, res); err != nil {
		log.Error().Err(err).Str("path", e.path).Msg("reconciliation failed")
		res.Failures = append(res.Failures, err)
	}
}

// orderParentFirst topologically sorts the entities along parent edges.
func orderParentFirst(entities []*Entity) []*Entity {
	edges := make([]toposort.Edge, 0, len(entities))
	byPath := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		byPath[e.path] = e
		if e.parent != "" {
			edges = append(edges, toposort.Edge{e.parent, e.path})
		}
	}
	sortedIDs, err := toposort.Toposort(edges)
	if err != nil {
		// Tree edges cannot cycle; keep discovery order if they somehow do.
		return entities
	}
	out := make([]*Entity, 0, len(entities))
	seen := make(map[string]bool, len(entities))
	for _, id := range sortedIDs {
		p, ok := id.(string)
		if !ok {
			continue
		}
		if e, found := byPath[p]; found && !seen[p] {
			out = append(out, e)
			seen[p] = true
		}
	}
	for _, e := range entities {
		if !seen[e.path] {
			out = append(out, e)
			seen[e.path] = true
		}
	}
	return out
}

func (r *Reconciler) apply(log zerolog.Logger, e *Entity, res *Result) error {
	info, err := e.Stat(e.params.LinkMode == core.LinkFollow, true)
	if err != nil {
		return err
	}
	if info.Kind == core.KindDenied {
		res.Skipped++
		return nil
	}

	switch e.desired.Kind() {
	case core.EnsureAbsent:
		return r.ensureAbsent(e, info, res)
	case core.EnsureDirectory:
		return r.ensureDirectory(e, info, res)
	case core.EnsureLink:
		return r.ensureLink(e, info, res)
	case core.EnsureFile:
		return r.ensureFile(e, info, res)
	default:
		if info.Exists() {
			return r.syncAttrs(e, info, res)
		}
		return nil
	}
}

func (r *Reconciler) ensureAbsent(e *Entity, info core.FileInfo, res *Result) error {
	if !info.Exists() {
		return nil
	}
	if r.noop {
		e.logger().Info().Msg("would remove")
		res.Skipped++
		return nil
	}
	var err error
	if info.Kind == core.KindDirectory && e.params.Force {
		err = r.env.FS.RemoveAll(e.path)
	} else {
		err = r.env.FS.Remove(e.path)
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", e.path, err)
	}
	if e.implicit {
		metrics.Purged.Inc()
	}
	e.Invalidate()
	e.logger().Info().Msg("removed")
	res.Applied++
	return nil
}

func (r *Reconciler) ensureDirectory(e *Entity, info core.FileInfo, res *Result) error {
	switch info.Kind {
	case core.KindDirectory:
		return r.syncAttrs(e, info, res)
	case core.KindAbsent:
		if r.noop {
			e.logger().Info().Msg("would create directory")
			res.Skipped++
			return nil
		}
		mode := defaultedMode(e, 0o755)
		if err := r.env.FS.Mkdir(e.path, mode); err != nil {
			return fmt.Errorf("mkdir %s: %w", e.path, err)
		}
		if err := applyOwnership(e, e.path); err != nil {
			return err
		}
		e.Invalidate()
		res.Applied++
		return nil
	default:
		if !e.params.Force {
			return fmt.Errorf("%s is a %s, not a directory (force not set)", e.path, info.Kind)
		}
		if r.noop {
			e.logger().Info().Msg("would replace with directory")
			res.Skipped++
			return nil
		}
		if err := r.env.FS.Remove(e.path); err != nil {
			return fmt.Errorf("remove %s: %w", e.path, err)
		}
		if err := r.env.FS.Mkdir(e.path, defaultedMode(e, 0o755)); err != nil {
			return fmt.Errorf("mkdir %s: %w", e.path, err)
		}
		e.Invalidate()
		res.Applied++
		return nil
	}
}

func (r *Reconciler) ensureLink(e *Entity, info core.FileInfo, res *Result) error {
	if e.params.LinkMode == core.LinkIgnore {
		return nil
	}
	target := e.desired.LinkTarget
	if info.Kind == core.KindLink && info.LinkTarget == target {
		return nil
	}
	if r.noop {
		e.logger().Info().Str("target", target).Msg("would link")
		res.Skipped++
		return nil
	}
	if info.Exists() {
		switch info.Kind {
		case core.KindDirectory:
			if !e.params.Force {
				return fmt.Errorf("%s is a directory, not a link (force not set)", e.path)
			}
			if err := r.env.FS.RemoveAll(e.path); err != nil {
				return fmt.Errorf("remove %s: %w", e.path, err)
			}
		default:
			if err := r.env.FS.Remove(e.path); err != nil {
				return fmt.Errorf("remove %s: %w", e.path, err)
			}
		}
	}
	if err := r.env.FS.Symlink(target, e.path); err != nil {
		return fmt.Errorf("symlink %s: %w", e.path, err)
	}
	e.Invalidate()
	e.logger().Info().Str("target", target).Msg("linked")
	res.Applied++
	return nil
}

func (r *Reconciler) ensureFile(e *Entity, info core.FileInfo, res *Result) error {
	if info.Kind == core.KindDirectory {
		displaced, err := r.displaceDirectory(e, res)
		if err != nil {
			return err
		}
		if r.noop {
			return nil
		}
		info = displaced
	}

	data, declared, err := r.desiredContent(e)
	if err != nil {
		return err
	}
	if !declared {
		if info.Exists() {
			return r.syncAttrs(e, info, res)
		}
		data = nil // ensure=file with no content creates an empty file
	}

	want, err := checksum.Sum(data, e.params.Checksum)
	if err != nil {
		return err
	}
	if info.Kind == core.KindFile {
		current, have := e.coord.Value()
		if !have {
			if err := e.coord.Set(); err != nil {
				return err
			}
			current, _ = e.coord.Value()
		}
		if current == want {
			return r.syncAttrs(e, info, res)
		}
		if !e.params.Replace {
			e.logger().Debug().Msg("content differs but replace is disabled")
			res.Skipped++
			return r.syncAttrs(e, info, res)
		}
	}
	if r.noop {
		e.logger().Info().Str("checksum", want).Msg("content out of sync")
		res.Skipped++
		return nil
	}
	if err := e.Write(data, true); err != nil {
		return err
	}
	res.Applied++
	return nil
}

// displaceDirectory clears a directory standing where a file belongs.
// With a bucket backup policy the backup manager uploads the tree and
// removes it; otherwise force is required for a plain removal.
func (r *Reconciler) displaceDirectory(e *Entity, res *Result) (core.FileInfo, error) {
	if !e.params.Force {
		return core.FileInfo{}, fmt.Errorf("%s is a directory, not a file (force not set)", e.path)
	}
	if r.noop {
		e.logger().Info().Msg("would replace directory with file")
		res.Skipped++
		return core.FileInfo{Kind: core.KindAbsent}, nil
	}
	if e.params.Backup.Bucket != "" {
		ok, err := r.env.Backups.Backup(e.path, e.params.Backup, false)
		if err != nil {
			return core.FileInfo{}, err
		}
		if !ok {
			return core.FileInfo{}, &core.BackupError{Path: e.path, Reason: "directory backup not produced"}
		}
	} else {
		if err := r.env.FS.RemoveAll(e.path); err != nil {
			return core.FileInfo{}, fmt.Errorf("remove %s: %w", e.path, err)
		}
	}
	e.Invalidate()
	return e.Stat(false, true)
}

func (r *Reconciler) desiredContent(e *Entity) ([]byte, bool, error) {
	if e.desired.ContentSet {
		return e.desired.Content, true, nil
	}
	if e.desired.Source == "" {
		return nil, false, nil
	}
	resolved, err := r.env.Resolver.Resolve(e.desired.Source)
	if err != nil {
		return nil, false, err
	}
	data, err := resolved.Client.Fetch(resolved.Path)
	if err != nil {
		return nil, false, &core.SourceError{URI: e.desired.Source, Reason: "fetch failed", Cause: err}
	}
	return data, true, nil
}

func (r *Reconciler) syncAttrs(e *Entity, info core.FileInfo, res *Result) error {
	changed := false
	if e.desired.Mode != nil && info.Mode.Perm() != e.desired.Mode.Perm() {
		if r.noop {
			e.logger().Info().Stringer("mode", *e.desired.Mode).Msg("mode out of sync")
			res.Skipped++
			return nil
		}
		if err := r.env.FS.Chmod(e.path, *e.desired.Mode); err != nil {
			return fmt.Errorf("chmod %s: %w", e.path, err)
		}
		changed = true
	}
	uid, gid := -1, -1
	if e.desired.Owner != nil && info.UID != *e.desired.Owner {
		uid = *e.desired.Owner
	}
	if e.desired.Group != nil && info.GID != *e.desired.Group {
		gid = *e.desired.Group
	}
	if uid != -1 || gid != -1 {
		if r.noop {
			e.logger().Info().Msg("ownership out of sync")
			res.Skipped++
			return nil
		}
		if err := r.env.FS.Chown(e.path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", e.path, err)
		}
		changed = true
	}
	if changed {
		e.Invalidate()
		res.Applied++
	}
	return nil
}

func defaultedMode(e *Entity, fallback fs.FileMode) fs.FileMode {
	if e.desired.Mode != nil {
		return *e.desired.Mode
	}
	return fallback
}

func applyOwnership(e *Entity, target string) error {
	if e.desired.Owner == nil && e.desired.Group == nil {
		return nil
	}
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
	return nil
}
