// Package entity models one managed filesystem object — file, directory
// or symbolic link — with declared and observed state, and drives the
// reconciliation of the two: recursion into children, checksum-driven
// change detection, and the atomic write protocol.
package entity

import (
	"io/fs"
	"path"
	"sync"

	"github.com/rs/zerolog"

	"github.com/convergefs/convergefs/pkg/convergefs/backup"
	"github.com/convergefs/convergefs/pkg/convergefs/checksum"
	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/filesystem"
	"github.com/convergefs/convergefs/pkg/convergefs/params"
	"github.com/convergefs/convergefs/pkg/convergefs/source"
)

// Desired is the sparse set of declared attributes of an entity.
type Desired struct {
	Ensure     core.Ensure
	Content    []byte
	ContentSet bool
	Source     string
	LinkTarget string
	Mode       *fs.FileMode
	Owner      *int
	Group      *int
}

// Kind derives the desired fundamental type from the declared attributes
// when no explicit ensure was given.
func (d Desired) Kind() core.Ensure {
	if d.Ensure != core.EnsureUnset {
		return d.Ensure
	}
	if d.LinkTarget != "" {
		return core.EnsureLink
	}
	if d.ContentSet || d.Source != "" {
		return core.EnsureFile
	}
	return core.EnsureUnset
}

// Env carries the run-scoped collaborators shared by every entity of a
// reconciliation pass, plus the arena of all entities keyed by path.
// Entities own their children top-down; the arena only answers "is this
// path already declared".
type Env struct {
	FS       filesystem.FileSystem
	Resolver *source.Resolver
	Backups  *backup.Manager
	Logger   zerolog.Logger

	mu      sync.Mutex
	arena   map[string]*Entity
}

// NewEnv builds the shared environment for one reconciliation run.
func NewEnv(fsys filesystem.FileSystem, resolver *source.Resolver, backups *backup.Manager, logger zerolog.Logger) *Env {
	return &Env{
		FS:       fsys,
		Resolver: resolver,
		Backups:  backups,
		Logger:   logger,
		arena:    make(map[string]*Entity),
	}
}

func (env *Env) register(e *Entity) bool {
	env.mu.Lock()
	defer env.mu.Unlock()
	if _, taken := env.arena[e.path]; taken {
		return false
	}
	env.arena[e.path] = e
	return true
}

func (env *Env) lookup(p string) *Entity {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.arena[p]
}

// Entity is one managed filesystem object. The path is its identity and
// never changes after creation.
type Entity struct {
	path     string
	params   params.Parameters
	desired  Desired
	implicit bool

	env    *Env
	parent string // back-reference by path, not ownership

	childOrder []string
	children   map[string]*Entity

	stat  statCache
	coord *checksum.Coordinator
}

// New validates a declaration and registers the entity in the run. A
// duplicate explicit declaration for the same path is a validation error.
func New(env *Env, p string, pr params.Parameters, d Desired) (*Entity, error) {
	if err := params.ValidatePath(p); err != nil {
		return nil, err
	}
	if d.ContentSet && d.Source != "" {
		return nil, &core.ValidationError{
			Path:   p,
			Reason: "content and source cannot both be declared",
		}
	}
	e := &Entity{
		path:     path.Clean(p),
		params:   pr,
		desired:  d,
		env:      env,
		children: make(map[string]*Entity),
	}
	e.coord = checksum.NewCoordinator(func() (string, error) {
		return checksum.Compute(env.FS, e.path, pr.Checksum)
	})
	if !env.register(e) {
		return nil, &core.ValidationError{
			Path:   e.path,
			Reason: "path is already declared",
		}
	}
	return e, nil
}

// Path returns the entity's absolute, normalized path.
func (e *Entity) Path() string {
	return e.path
}

// Params returns the validated parameters.
func (e *Entity) Params() params.Parameters {
	return e.params
}

// Desired returns the currently declared attributes.
func (e *Entity) Desired() Desired {
	return e.desired
}

// Implicit reports whether the entity was created by recursion rather
// than declared explicitly.
func (e *Entity) Implicit() bool {
	return e.implicit
}

// Children returns the child entities in registration order.
func (e *Entity) Children() []*Entity {
	out := make([]*Entity, 0, len(e.childOrder))
	for _, p := range e.childOrder {
		out = append(out, e.children[p])
	}
	return out
}

// Child returns the registered child at the given absolute path, if any.
func (e *Entity) Child(p string) *Entity {
	return e.children[path.Clean(p)]
}

func (e *Entity) addChild(child *Entity) {
	e.children[child.path] = child
	e.childOrder = append(e.childOrder, child.path)
}

func (e *Entity) logger() *zerolog.Logger {
	l := e.env.Logger.With().Str("path", e.path).Logger()
	return &l
}
