package entity_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/spf13/afero"

	"github.com/convergefs/convergefs/pkg/convergefs/backup"
	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/entity"
	"github.com/convergefs/convergefs/pkg/convergefs/filesystem"
	"github.com/convergefs/convergefs/pkg/convergefs/logging"
	"github.com/convergefs/convergefs/pkg/convergefs/params"
	"github.com/convergefs/convergefs/pkg/convergefs/source"
)

// testWorld bundles the collaborators one reconciliation run needs: the
// managed filesystem, the local source mount and the shared environment.
type testWorld struct {
	fs    *filesystem.TestFileSystem
	mount afero.Fs
	env   *entity.Env
}

func newWorld(t *testing.T) *testWorld {
	t.Helper()
	w := &testWorld{
		fs:    filesystem.NewTestFileSystem(),
		mount: afero.NewMemMapFs(),
	}
	w.reset()
	return w
}

// reset replaces the environment while keeping the filesystems, so a test
// can model a second reconciliation run against the same machine state.
func (w *testWorld) reset() {
	logger := logging.NewTestLogger(io.Discard, 0)
	resolver := source.NewResolver(w.mount, logger)
	registry := backup.NewRegistry(func(name string) (backup.Store, error) {
		if name == "vault" {
			return backup.NewDirStore(w.fs, "/var/backups"), nil
		}
		return nil, fmt.Errorf("unknown bucket %q", name)
	})
	backups := backup.NewManager(w.fs, registry, logger)
	w.env = entity.NewEnv(w.fs, resolver, backups, logger)
}

func (w *testWorld) entity(t *testing.T, p string, pr params.Parameters, d entity.Desired) *entity.Entity {
	t.Helper()
	e, err := entity.New(w.env, p, pr, d)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", p, err)
	}
	return e
}

func TestNewValidation(t *testing.T) {
	w := newWorld(t)

	t.Run("relative path", func(t *testing.T) {
		_, err := entity.New(w.env, "etc/app.conf", params.Defaults(), entity.Desired{})
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("got %v, want ValidationError", err)
		}
	})

	t.Run("content and source conflict", func(t *testing.T) {
		_, err := entity.New(w.env, "/etc/conflicted", params.Defaults(), entity.Desired{
			Content:    []byte("x"),
			ContentSet: true,
			Source:     "/src/x",
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("got %v, want ValidationError", err)
		}
	})

	t.Run("duplicate declaration", func(t *testing.T) {
		w.entity(t, "/etc/once", params.Defaults(), entity.Desired{})
		_, err := entity.New(w.env, "/etc/once", params.Defaults(), entity.Desired{})
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("got %v, want ValidationError", err)
		}
	})

	t.Run("path is normalized", func(t *testing.T) {
		e := w.entity(t, "/etc//nested/../norm", params.Defaults(), entity.Desired{})
		if e.Path() != "/etc/norm" {
			t.Errorf("got %q, want /etc/norm", e.Path())
		}
	})
}

func TestDesiredKind(t *testing.T) {
	tests := []struct {
		name string
		d    entity.Desired
		want core.Ensure
	}{
		{"explicit ensure wins", entity.Desired{Ensure: core.EnsureDirectory, LinkTarget: "/t"}, core.EnsureDirectory},
		{"link target implies link", entity.Desired{LinkTarget: "/t"}, core.EnsureLink},
		{"content implies file", entity.Desired{ContentSet: true}, core.EnsureFile},
		{"source implies file", entity.Desired{Source: "/src"}, core.EnsureFile},
		{"nothing declared", entity.Desired{}, core.EnsureUnset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Kind(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
