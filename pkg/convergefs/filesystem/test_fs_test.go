package filesystem

import (
	"errors"
	"io/fs"
	"testing"
)

func TestTestFileSystemFiles(t *testing.T) {
	tfs := NewTestFileSystem()
	tfs.AddFile("/etc/app.conf", []byte("hello"), 0o640)

	t.Run("read back", func(t *testing.T) {
		data, err := tfs.ReadFile("/etc/app.conf")
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("got %q, want hello", data)
		}
	})

	t.Run("parents are implied", func(t *testing.T) {
		info, err := tfs.Stat("/etc")
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if !info.IsDir() {
			t.Error("/etc should be a directory")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := tfs.ReadFile("/etc/missing")
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("got %v, want ErrNotExist", err)
		}
	})

	t.Run("mode is preserved", func(t *testing.T) {
		info, err := tfs.Lstat("/etc/app.conf")
		if err != nil {
			t.Fatalf("Lstat failed: %v", err)
		}
		if info.Mode().Perm() != 0o640 {
			t.Errorf("got mode %v, want 0640", info.Mode().Perm())
		}
	})
}

func TestTestFileSystemSymlinks(t *testing.T) {
	tfs := NewTestFileSystem()
	tfs.AddFile("/data/real.txt", []byte("content"), 0o644)
	if err := tfs.Symlink("/data/real.txt", "/data/ln"); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	t.Run("stat follows", func(t *testing.T) {
		info, err := tfs.Stat("/data/ln")
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			t.Error("Stat should resolve the link")
		}
		if info.Size() != int64(len("content")) {
			t.Errorf("got size %d", info.Size())
		}
	})

	t.Run("lstat does not follow", func(t *testing.T) {
		info, err := tfs.Lstat("/data/ln")
		if err != nil {
			t.Fatalf("Lstat failed: %v", err)
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			t.Error("Lstat should see the link itself")
		}
	})

	t.Run("readlink", func(t *testing.T) {
		target, err := tfs.Readlink("/data/ln")
		if err != nil {
			t.Fatalf("Readlink failed: %v", err)
		}
		if target != "/data/real.txt" {
			t.Errorf("got %q", target)
		}
	})

	t.Run("relative targets resolve against the link dir", func(t *testing.T) {
		tfs.AddSymlink("real.txt", "/data/rel")
		data, err := tfs.ReadFile("/data/rel")
		if err != nil {
			t.Fatalf("ReadFile through relative link failed: %v", err)
		}
		if string(data) != "content" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("loops are detected", func(t *testing.T) {
		tfs.AddSymlink("/loop/b", "/loop/a")
		tfs.AddSymlink("/loop/a", "/loop/b")
		if _, err := tfs.Stat("/loop/a"); err == nil {
			t.Error("expected error for symlink loop")
		}
	})
}

func TestTestFileSystemRename(t *testing.T) {
	t.Run("replaces existing destination", func(t *testing.T) {
		tfs := NewTestFileSystem()
		tfs.AddFile("/a", []byte("new"), 0o644)
		tfs.AddFile("/b", []byte("old"), 0o644)
		if err := tfs.Rename("/a", "/b"); err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		data, _ := tfs.ReadFile("/b")
		if string(data) != "new" {
			t.Errorf("got %q, want new", data)
		}
		if tfs.Exists("/a") {
			t.Error("source should be gone")
		}
	})

	t.Run("moves subtrees", func(t *testing.T) {
		tfs := NewTestFileSystem()
		tfs.AddFile("/d/sub/x", []byte("x"), 0o644)
		if err := tfs.Rename("/d", "/e"); err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		if !tfs.Exists("/e/sub/x") || tfs.Exists("/d/sub/x") {
			t.Error("subtree did not move")
		}
	})

	t.Run("injected failure", func(t *testing.T) {
		tfs := NewTestFileSystem()
		tfs.AddFile("/a", []byte("x"), 0o644)
		boom := errors.New("boom")
		tfs.RenameErr = func(oldname, newname string) error { return boom }
		if err := tfs.Rename("/a", "/b"); !errors.Is(err, boom) {
			t.Errorf("got %v, want injected error", err)
		}
		if !tfs.Exists("/a") {
			t.Error("failed rename must leave the source in place")
		}
	})
}

func TestTestFileSystemRemove(t *testing.T) {
	tfs := NewTestFileSystem()
	tfs.AddFile("/d/x", []byte("x"), 0o644)

	if err := tfs.Remove("/d"); err == nil {
		t.Error("removing a non-empty directory should fail")
	}
	if err := tfs.RemoveAll("/d"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if tfs.Exists("/d") || tfs.Exists("/d/x") {
		t.Error("RemoveAll left nodes behind")
	}
}

func TestTestFileSystemOwnership(t *testing.T) {
	tfs := NewTestFileSystem()
	tfs.AddFile("/f", nil, 0o644)
	if err := tfs.Chown("/f", 42, 7); err != nil {
		t.Fatalf("Chown failed: %v", err)
	}
	// -1 leaves the corresponding id unchanged, like os.Chown.
	if err := tfs.Chown("/f", -1, 9); err != nil {
		t.Fatalf("Chown failed: %v", err)
	}

	info, err := tfs.Lstat("/f")
	if err != nil {
		t.Fatalf("Lstat failed: %v", err)
	}
	uid, gid, ok := tfs.Owner(info)
	if !ok {
		t.Fatal("Owner not available")
	}
	if uid != 42 || gid != 9 {
		t.Errorf("got %d:%d, want 42:9", uid, gid)
	}
}

func TestTestFileSystemDenyPaths(t *testing.T) {
	tfs := NewTestFileSystem()
	tfs.AddFile("/secret/f", nil, 0o600)
	tfs.DenyPaths = map[string]bool{"/secret": true}

	if _, err := tfs.ReadDir("/secret"); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("got %v, want ErrPermission", err)
	}
	if _, err := tfs.Stat("/secret"); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("got %v, want ErrPermission", err)
	}
}

func TestTestFileSystemReadDir(t *testing.T) {
	tfs := NewTestFileSystem()
	tfs.AddFile("/d/b", nil, 0o644)
	tfs.AddFile("/d/a", nil, 0o644)
	tfs.AddDir("/d/c", 0o755)
	tfs.AddFile("/d/c/nested", nil, 0o644)

	entries, err := tfs.ReadDir("/d")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("got %v, want %v", names, want)
			break
		}
	}
}
