package entity_test

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/convergefs/convergefs/pkg/convergefs/checksum"
	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/entity"
	"github.com/convergefs/convergefs/pkg/convergefs/params"
)

func TestWriteAtomicWithBackup(t *testing.T) {
	w := newWorld(t)
	w.fs.AddFile("/etc/app.conf", []byte("old"), 0o644)

	p := params.Defaults()
	p.Backup = params.BackupPolicy{Suffix: ".bak"}
	e := w.entity(t, "/etc/app.conf", p, entity.Desired{})

	if err := e.Write([]byte("new"), true); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := w.fs.ReadFile("/etc/app.conf")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("got %q, want new", data)
	}

	bak, err := w.fs.ReadFile("/etc/app.conf.bak")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(bak) != "old" {
		t.Errorf("backup got %q, want old", bak)
	}

	if w.fs.Exists("/etc/app.conf" + entity.TempSuffix) {
		t.Error("temp file must not survive a successful write")
	}

	sum, have := e.RecordedChecksum()
	if !have {
		t.Fatal("write must record the on-disk checksum")
	}
	want, _ := checksum.Sum([]byte("new"), core.ChecksumSHA256)
	if sum != want {
		t.Errorf("recorded %s, want %s", sum, want)
	}
}

func TestWriteRenameFailureCleansUp(t *testing.T) {
	w := newWorld(t)
	w.fs.AddFile("/etc/app.conf", []byte("old"), 0o644)
	boom := errors.New("device busy")
	w.fs.RenameErr = func(oldname, newname string) error { return boom }

	e := w.entity(t, "/etc/app.conf", params.Defaults(), entity.Desired{})
	err := e.Write([]byte("new"), true)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want rename failure", err)
	}

	data, _ := w.fs.ReadFile("/etc/app.conf")
	if string(data) != "old" {
		t.Errorf("failed replace must leave content intact, got %q", data)
	}
	if w.fs.Exists("/etc/app.conf" + entity.TempSuffix) {
		t.Error("temp file should be cleaned up after a failed rename")
	}
}

func TestWriteUnresolvableBucketIsFatal(t *testing.T) {
	w := newWorld(t)
	w.fs.AddFile("/etc/app.conf", []byte("old"), 0o644)

	p := params.Defaults()
	p.Backup = params.BackupPolicy{Bucket: "no-such-bucket"}
	e := w.entity(t, "/etc/app.conf", p, entity.Desired{})

	err := e.Write([]byte("new"), true)
	var berr *core.BackupError
	if !errors.As(err, &berr) {
		t.Fatalf("got %v, want BackupError", err)
	}

	data, _ := w.fs.ReadFile("/etc/app.conf")
	if string(data) != "old" {
		t.Errorf("nothing may change when the backup fails, got %q", data)
	}
	if w.fs.Exists("/etc/app.conf" + entity.TempSuffix) {
		t.Error("no temp file may be staged when the backup fails")
	}
}

func TestWriteAppliesModeAndOwnership(t *testing.T) {
	w := newWorld(t)
	w.fs.AddDir("/etc", 0o755)
	mode := fs.FileMode(0o600)
	owner, group := 42, 7
	e := w.entity(t, "/etc/secret.conf", params.Defaults(), entity.Desired{
		Mode:  &mode,
		Owner: &owner,
		Group: &group,
	})

	if err := e.Write([]byte("s3cret"), true); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	info, err := w.fs.Lstat("/etc/secret.conf")
	if err != nil {
		t.Fatalf("Lstat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("got mode %v, want 0600", info.Mode().Perm())
	}
	uid, gid, ok := w.fs.Owner(info)
	if !ok || uid != 42 || gid != 7 {
		t.Errorf("got owner %d:%d, want 42:7", uid, gid)
	}
}

func TestWriteReplacesManagedLink(t *testing.T) {
	w := newWorld(t)
	w.fs.AddFile("/srv/real", []byte("pointed-at"), 0o644)
	w.fs.AddSymlink("/srv/real", "/etc/app.conf")

	e := w.entity(t, "/etc/app.conf", params.Defaults(), entity.Desired{})
	if err := e.Write([]byte("plain"), true); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	info, err := w.fs.Lstat("/etc/app.conf")
	if err != nil {
		t.Fatalf("Lstat failed: %v", err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		t.Error("the managed link should be replaced by a regular file")
	}
	data, _ := w.fs.ReadFile("/etc/app.conf")
	if string(data) != "plain" {
		t.Errorf("got %q", data)
	}
	// The target itself is untouched.
	real, _ := w.fs.ReadFile("/srv/real")
	if string(real) != "pointed-at" {
		t.Errorf("link target changed: %q", real)
	}
}

func TestWriteDirect(t *testing.T) {
	w := newWorld(t)
	w.fs.AddDir("/var/run", 0o755)
	e := w.entity(t, "/var/run/state", params.Defaults(), entity.Desired{})

	if err := e.Write([]byte("x"), false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if w.fs.Exists("/var/run/state" + entity.TempSuffix) {
		t.Error("direct writes must not stage a temp file")
	}
	data, _ := w.fs.ReadFile("/var/run/state")
	if string(data) != "x" {
		t.Errorf("got %q", data)
	}
}
