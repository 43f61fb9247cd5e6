package entity

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/metrics"
	"github.com/convergefs/convergefs/pkg/convergefs/source"
)

// Expand builds the entity's direct children from three sources applied
// in order, each building on the previous tree state: the local directory
// listing, the link target (when the entity links to a directory), and
// the declared remote source. Failures inside one child never abort the
// others; only internal contract violations and unexpected OS errors
// propagate.
func (e *Entity) Expand() error {
	if !e.params.Recursing() {
		return nil
	}
	if err := e.recurseLocal(); err != nil {
		return err
	}
	if err := e.recurseLink(); err != nil {
		return err
	}
	return e.recurseSource()
}

// recurseLocal mirrors the entity's own directory listing into children.
func (e *Entity) recurseLocal() error {
	info, err := e.Stat(e.params.LinkMode == core.LinkFollow, false)
	if err != nil {
		return err
	}
	if info.Kind != core.KindDirectory {
		return nil
	}

	names, err := e.listDir(e.path)
	if err != nil || names == nil {
		return err
	}
	for _, name := range names {
		child, err := e.newChild(name, childSpec{})
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		if e.params.Purge && child.implicit {
			// Locally present but undeclared: mark for removal. A later
			// source pass overrides the mark for remote counterparts.
			child.desired.Ensure = core.EnsureAbsent
		}
	}
	return nil
}

// recurseLink manages a link-to-directory as a directory tree of links.
func (e *Entity) recurseLink() error {
	target := e.desired.LinkTarget
	if target == "" {
		return nil
	}

	var info fs.FileInfo
	var err error
	if e.params.LinkMode == core.LinkFollow {
		info, err = e.env.FS.Stat(target)
	} else {
		info, err = e.env.FS.Lstat(target)
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case errors.Is(err, fs.ErrPermission):
		e.logger().Warn().Str("target", target).Msg("cannot inspect link target")
		metrics.SubtreeSkips.Inc()
		return nil
	case err != nil:
		return err
	}
	if !info.IsDir() {
		return nil
	}

	// A link whose target is a directory is managed as a directory.
	e.desired.Ensure = core.EnsureDirectory
	e.desired.LinkTarget = ""

	names, err := e.listDir(target)
	if err != nil || names == nil {
		return err
	}
	for _, name := range names {
		if _, err := e.newChild(name, childSpec{linkTarget: path.Join(target, name)}); err != nil {
			return err
		}
	}
	return nil
}

// recurseSource mirrors a remote listing into children.
func (e *Entity) recurseSource() error {
	src := e.desired.Source
	if src == "" {
		return nil
	}
	resolved, err := e.env.Resolver.Resolve(src)
	if err != nil {
		return err
	}
	listing, err := resolved.Client.List(source.ListRequest{
		Path:     resolved.Path,
		LinkMode: e.params.LinkMode,
		Ignore:   e.params.Ignore,
	})
	if err != nil {
		return &core.SourceError{URI: src, Reason: "listing failed", Cause: err}
	}

	base := strings.TrimSuffix(src, "/")
	for _, entry := range source.ParseListing(listing) {
		if entry.Path == "/" {
			// The root record carries the kind of the source itself: a
			// directory source turns the entity into a directory.
			if entry.Kind == core.KindDirectory && e.desired.Ensure == core.EnsureUnset {
				e.desired.Ensure = core.EnsureDirectory
			}
			continue
		}
		spec := childSpec{
			source:     base + entry.Path,
			remoteKind: entry.Kind,
		}
		if _, err := e.newChild(strings.TrimPrefix(entry.Path, "/"), spec); err != nil {
			return err
		}
	}
	return nil
}

// listDir returns the names under dir that survive ignore filtering, or
// nil (with no error) when the directory is unreadable.
func (e *Entity) listDir(dir string) ([]string, error) {
	entries, err := e.env.FS.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			e.logger().Warn().Str("dir", dir).Msg("cannot list directory, skipping subtree")
			metrics.SubtreeSkips.Inc()
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		if e.ignored(name) {
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 && e.params.LinkMode == core.LinkIgnore {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (e *Entity) ignored(name string) bool {
	for _, pattern := range e.params.Ignore {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// childSpec carries the attribute overrides a recursion pass wants on a
// discovered child.
type childSpec struct {
	linkTarget string
	source     string
	remoteKind core.FileKind
}

func (s childSpec) ensure() core.Ensure {
	switch {
	case s.linkTarget != "":
		return core.EnsureLink
	case s.remoteKind == core.KindDirectory:
		return core.EnsureDirectory
	case s.remoteKind == core.KindLink:
		return core.EnsureLink
	case s.source != "":
		return core.EnsureFile
	default:
		return core.EnsureUnset
	}
}

// newChild creates or reuses the child for a relative name. An absolute
// name is a caller bug, not user error. A child already registered under
// this parent gets the overrides applied idempotently; a path declared
// elsewhere is left alone (first declaration wins). Validation failures
// drop the single child and never abort the parent's recursion.
func (e *Entity) newChild(name string, spec childSpec) (*Entity, error) {
	if path.IsAbs(name) {
		return nil, &core.InternalError{
			Reason: fmt.Sprintf("child name %q must be relative to %s", name, e.path),
		}
	}
	full := path.Join(e.path, name)

	if child, ok := e.children[full]; ok {
		e.applyOverrides(child, spec)
		return child, nil
	}
	if other := e.env.lookup(full); other != nil {
		e.logger().Debug().Str("child", full).
			Msg("path already declared elsewhere, keeping first declaration")
		return nil, nil
	}

	childParams := e.params
	childParams.Recurse = e.params.Recurse.Descend()

	desired := Desired{
		Ensure:     spec.ensure(),
		Source:     spec.source,
		LinkTarget: spec.linkTarget,
	}

	child, err := New(e.env, full, childParams, desired)
	if err != nil {
		cerr := &core.ChildError{Parent: e.path, Name: name, Cause: err}
		e.logger().Warn().Err(cerr).Msg("dropping child")
		metrics.SubtreeSkips.Inc()
		return nil, nil
	}
	child.implicit = true
	child.parent = e.path
	e.addChild(child)
	return child, nil
}

// applyOverrides updates only the attributes that actually differ, so a
// reused child is not spuriously re-evaluated.
func (e *Entity) applyOverrides(child *Entity, spec childSpec) {
	if spec.source != "" && child.desired.Source != spec.source {
		child.desired.Source = spec.source
	}
	if spec.linkTarget != "" && child.desired.LinkTarget != spec.linkTarget {
		child.desired.LinkTarget = spec.linkTarget
	}
	if want := spec.ensure(); want != core.EnsureUnset && child.desired.Ensure != want {
		child.desired.Ensure = want
	}
}
