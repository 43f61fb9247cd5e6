package entity_test

import (
	"testing"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/entity"
	"github.com/convergefs/convergefs/pkg/convergefs/params"
)

func TestStatObservations(t *testing.T) {
	w := newWorld(t)
	w.fs.AddFile("/etc/app.conf", []byte("hello"), 0o640)
	w.fs.SetOwner("/etc/app.conf", 42, 7)
	w.fs.AddSymlink("/etc/app.conf", "/etc/ln")

	t.Run("absent path is an observation, not an error", func(t *testing.T) {
		e := w.entity(t, "/etc/missing", params.Defaults(), entity.Desired{})
		info, err := e.Stat(false, false)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Kind != core.KindAbsent || info.Exists() {
			t.Errorf("got kind %q", info.Kind)
		}
	})

	t.Run("file carries size, mode and ownership", func(t *testing.T) {
		e := w.entity(t, "/etc/app.conf", params.Defaults(), entity.Desired{})
		info, err := e.Stat(false, false)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Kind != core.KindFile {
			t.Fatalf("got kind %q", info.Kind)
		}
		if info.Size != int64(len("hello")) {
			t.Errorf("got size %d", info.Size)
		}
		if info.Mode.Perm() != 0o640 {
			t.Errorf("got mode %v", info.Mode.Perm())
		}
		if info.UID != 42 || info.GID != 7 {
			t.Errorf("got owner %d:%d, want 42:7", info.UID, info.GID)
		}
	})

	t.Run("link is observed as itself with its target", func(t *testing.T) {
		e := w.entity(t, "/etc/ln", params.Defaults(), entity.Desired{})
		info, err := e.Stat(false, false)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Kind != core.KindLink {
			t.Fatalf("got kind %q", info.Kind)
		}
		if info.LinkTarget != "/etc/app.conf" {
			t.Errorf("got target %q", info.LinkTarget)
		}
	})

	t.Run("following resolves to the target", func(t *testing.T) {
		e := w.entity(t, "/etc/ln2", params.Defaults(), entity.Desired{})
		w.fs.AddSymlink("/etc/app.conf", "/etc/ln2")
		info, err := e.Stat(true, true)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Kind != core.KindFile {
			t.Errorf("got kind %q, want file", info.Kind)
		}
	})

	t.Run("permission failure degrades to denied", func(t *testing.T) {
		w.fs.AddFile("/secret/f", nil, 0o600)
		w.fs.DenyPaths = map[string]bool{"/secret/f": true}
		e := w.entity(t, "/secret/f", params.Defaults(), entity.Desired{})
		info, err := e.Stat(false, false)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Kind != core.KindDenied {
			t.Errorf("got kind %q, want denied", info.Kind)
		}
		if !info.Exists() {
			t.Error("denied paths exist")
		}
	})
}

func TestStatCaching(t *testing.T) {
	w := newWorld(t)
	w.fs.AddFile("/f", []byte("one"), 0o644)
	e := w.entity(t, "/f", params.Defaults(), entity.Desired{})

	first, err := e.Stat(false, false)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	w.fs.AddFile("/f", []byte("longer content"), 0o644)

	cached, err := e.Stat(false, false)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if cached.Size != first.Size {
		t.Error("cached observation should not see the new size")
	}

	fresh, err := e.Stat(false, true)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if fresh.Size != int64(len("longer content")) {
		t.Errorf("refresh got size %d", fresh.Size)
	}

	w.fs.RemoveAll("/f")
	e.Invalidate()
	gone, err := e.Stat(false, false)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if gone.Kind != core.KindAbsent {
		t.Errorf("got kind %q after Invalidate, want absent", gone.Kind)
	}
}

func TestInvalidateDropsRecordedChecksum(t *testing.T) {
	w := newWorld(t)
	w.fs.AddFile("/f", []byte("one"), 0o644)
	e := w.entity(t, "/f", params.Defaults(), entity.Desired{})

	if err := e.Write([]byte("two"), true); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, ok := e.RecordedChecksum(); !ok {
		t.Fatal("write must record a checksum")
	}

	e.Invalidate()
	if _, ok := e.RecordedChecksum(); ok {
		t.Error("Invalidate must drop the recorded checksum")
	}
}
