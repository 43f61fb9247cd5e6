package filesystem

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"syscall"
	"time"
)

// TestFileSystem is an in-memory FileSystem for tests. It models just
// enough of a POSIX tree for the engine: directories, regular files,
// symlinks, ownership, modes and mtimes, keyed by absolute path.
//
// Failures can be injected: RenameErr forces the next Rename to fail, and
// DenyPaths makes metadata reads on a path return fs.ErrPermission.
type TestFileSystem struct {
	nodes map[string]*testNode

	RenameErr func(oldname, newname string) error
	DenyPaths map[string]bool
}

type testNode struct {
	data    []byte
	mode    fs.FileMode
	uid     int
	gid     int
	modTime time.Time
	target  string // symlink target
}

// NewTestFileSystem returns an empty in-memory filesystem containing "/".
func NewTestFileSystem() *TestFileSystem {
	tfs := &TestFileSystem{nodes: make(map[string]*testNode)}
	tfs.nodes["/"] = &testNode{mode: fs.ModeDir | 0o755, modTime: time.Now()}
	return tfs
}

// AddFile seeds a regular file, creating parent directories.
func (tfs *TestFileSystem) AddFile(name string, data []byte, perm fs.FileMode) {
	tfs.addParents(name)
	tfs.nodes[path.Clean(name)] = &testNode{data: data, mode: perm &^ fs.ModeType, modTime: time.Now()}
}

// AddDir seeds a directory, creating parents.
func (tfs *TestFileSystem) AddDir(name string, perm fs.FileMode) {
	tfs.addParents(name)
	tfs.nodes[path.Clean(name)] = &testNode{mode: fs.ModeDir | (perm &^ fs.ModeType), modTime: time.Now()}
}

// AddSymlink seeds a symlink; dangling targets are allowed.
func (tfs *TestFileSystem) AddSymlink(target, name string) {
	tfs.addParents(name)
	tfs.nodes[path.Clean(name)] = &testNode{target: target, mode: fs.ModeSymlink | 0o777, modTime: time.Now()}
}

// SetOwner records ownership on an existing node.
func (tfs *TestFileSystem) SetOwner(name string, uid, gid int) {
	if n, ok := tfs.nodes[path.Clean(name)]; ok {
		n.uid, n.gid = uid, gid
	}
}

func (tfs *TestFileSystem) addParents(name string) {
	dir := path.Dir(path.Clean(name))
	for dir != "/" {
		if _, ok := tfs.nodes[dir]; !ok {
			tfs.nodes[dir] = &testNode{mode: fs.ModeDir | 0o755, modTime: time.Now()}
		}
		dir = path.Dir(dir)
	}
}

func (tfs *TestFileSystem) denied(op, name string) error {
	if tfs.DenyPaths[path.Clean(name)] {
		return &fs.PathError{Op: op, Path: name, Err: fs.ErrPermission}
	}
	return nil
}

// resolve follows symlink chains, capped to avoid loops.
func (tfs *TestFileSystem) resolve(name string) (string, *testNode, error) {
	name = path.Clean(name)
	for i := 0; i < 8; i++ {
		n, ok := tfs.nodes[name]
		if !ok {
			return name, nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
		}
		if n.mode&fs.ModeSymlink == 0 {
			return name, n, nil
		}
		if path.IsAbs(n.target) {
			name = path.Clean(n.target)
		} else {
			name = path.Clean(path.Join(path.Dir(name), n.target))
		}
	}
	return name, nil, &fs.PathError{Op: "stat", Path: name, Err: syscall.ELOOP}
}

func (tfs *TestFileSystem) ReadFile(name string) ([]byte, error) {
	if err := tfs.denied("open", name); err != nil {
		return nil, err
	}
	_, n, err := tfs.resolve(name)
	if err != nil {
		return nil, err
	}
	if n.mode.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: syscall.EISDIR}
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

func (tfs *TestFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	if err := tfs.denied("readdir", name); err != nil {
		return nil, err
	}
	dir, n, err := tfs.resolve(name)
	if err != nil {
		return nil, err
	}
	if !n.mode.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: syscall.ENOTDIR}
	}
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	var names []string
	for p := range tfs.nodes {
		if p == dir || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	entries := make([]fs.DirEntry, 0, len(names))
	for _, base := range names {
		child := tfs.nodes[prefix+base]
		entries = append(entries, &testFileInfo{name: base, node: child})
	}
	return entries, nil
}

func (tfs *TestFileSystem) Stat(name string) (fs.FileInfo, error) {
	if err := tfs.denied("stat", name); err != nil {
		return nil, err
	}
	p, n, err := tfs.resolve(name)
	if err != nil {
		return nil, err
	}
	return &testFileInfo{name: path.Base(p), node: n}, nil
}

func (tfs *TestFileSystem) Lstat(name string) (fs.FileInfo, error) {
	if err := tfs.denied("lstat", name); err != nil {
		return nil, err
	}
	name = path.Clean(name)
	n, ok := tfs.nodes[name]
	if !ok {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrNotExist}
	}
	return &testFileInfo{name: path.Base(name), node: n}, nil
}

func (tfs *TestFileSystem) Readlink(name string) (string, error) {
	name = path.Clean(name)
	n, ok := tfs.nodes[name]
	if !ok {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrNotExist}
	}
	if n.mode&fs.ModeSymlink == 0 {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: syscall.EINVAL}
	}
	return n.target, nil
}

func (tfs *TestFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	name = path.Clean(name)
	if _, ok := tfs.nodes[path.Dir(name)]; !ok {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if existing, ok := tfs.nodes[name]; ok && existing.mode.IsDir() {
		return &fs.PathError{Op: "open", Path: name, Err: syscall.EISDIR}
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	tfs.nodes[name] = &testNode{data: buf, mode: perm &^ fs.ModeType, modTime: time.Now()}
	return nil
}

func (tfs *TestFileSystem) Mkdir(name string, perm fs.FileMode) error {
	name = path.Clean(name)
	if _, ok := tfs.nodes[name]; ok {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}
	if _, ok := tfs.nodes[path.Dir(name)]; !ok {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrNotExist}
	}
	tfs.nodes[name] = &testNode{mode: fs.ModeDir | (perm &^ fs.ModeType), modTime: time.Now()}
	return nil
}

func (tfs *TestFileSystem) MkdirAll(name string, perm fs.FileMode) error {
	name = path.Clean(name)
	if n, ok := tfs.nodes[name]; ok {
		if n.mode.IsDir() {
			return nil
		}
		return &fs.PathError{Op: "mkdir", Path: name, Err: syscall.ENOTDIR}
	}
	tfs.addParents(name)
	tfs.nodes[name] = &testNode{mode: fs.ModeDir | (perm &^ fs.ModeType), modTime: time.Now()}
	return nil
}

func (tfs *TestFileSystem) Remove(name string) error {
	name = path.Clean(name)
	n, ok := tfs.nodes[name]
	if !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	if n.mode.IsDir() {
		prefix := name + "/"
		for p := range tfs.nodes {
			if strings.HasPrefix(p, prefix) {
				return &fs.PathError{Op: "remove", Path: name, Err: syscall.ENOTEMPTY}
			}
		}
	}
	delete(tfs.nodes, name)
	return nil
}

func (tfs *TestFileSystem) RemoveAll(name string) error {
	name = path.Clean(name)
	prefix := name + "/"
	for p := range tfs.nodes {
		if p == name || strings.HasPrefix(p, prefix) {
			delete(tfs.nodes, p)
		}
	}
	return nil
}

func (tfs *TestFileSystem) Rename(oldname, newname string) error {
	if tfs.RenameErr != nil {
		if err := tfs.RenameErr(oldname, newname); err != nil {
			return err
		}
	}
	oldname, newname = path.Clean(oldname), path.Clean(newname)
	n, ok := tfs.nodes[oldname]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldname, Err: fs.ErrNotExist}
	}
	// os.Rename replaces an existing destination file.
	delete(tfs.nodes, oldname)
	tfs.nodes[newname] = n
	prefix := oldname + "/"
	for p, child := range tfs.nodes {
		if strings.HasPrefix(p, prefix) {
			delete(tfs.nodes, p)
			tfs.nodes[newname+"/"+p[len(prefix):]] = child
		}
	}
	return nil
}

func (tfs *TestFileSystem) Symlink(target, name string) error {
	name = path.Clean(name)
	if _, ok := tfs.nodes[name]; ok {
		return &fs.PathError{Op: "symlink", Path: name, Err: fs.ErrExist}
	}
	if _, ok := tfs.nodes[path.Dir(name)]; !ok {
		return &fs.PathError{Op: "symlink", Path: name, Err: fs.ErrNotExist}
	}
	tfs.nodes[name] = &testNode{target: target, mode: fs.ModeSymlink | 0o777, modTime: time.Now()}
	return nil
}

func (tfs *TestFileSystem) Chmod(name string, mode fs.FileMode) error {
	_, n, err := tfs.resolve(name)
	if err != nil {
		return err
	}
	n.mode = (n.mode & fs.ModeType) | (mode &^ fs.ModeType)
	return nil
}

func (tfs *TestFileSystem) Chown(name string, uid, gid int) error {
	name = path.Clean(name)
	n, ok := tfs.nodes[name]
	if !ok {
		return &fs.PathError{Op: "chown", Path: name, Err: fs.ErrNotExist}
	}
	// Matches os.Chown: -1 leaves the id unchanged.
	if uid >= 0 {
		n.uid = uid
	}
	if gid >= 0 {
		n.gid = gid
	}
	return nil
}

func (tfs *TestFileSystem) Chtimes(name string, atime, mtime time.Time) error {
	_, n, err := tfs.resolve(name)
	if err != nil {
		return err
	}
	n.modTime = mtime
	return nil
}

func (tfs *TestFileSystem) Owner(info fs.FileInfo) (int, int, bool) {
	tfi, ok := info.(*testFileInfo)
	if !ok {
		return 0, 0, false
	}
	return tfi.node.uid, tfi.node.gid, true
}

// Exists reports whether a path is present, without following links.
func (tfs *TestFileSystem) Exists(name string) bool {
	_, ok := tfs.nodes[path.Clean(name)]
	return ok
}

// testFileInfo implements both fs.FileInfo and fs.DirEntry.
type testFileInfo struct {
	name string
	node *testNode
}

func (fi *testFileInfo) Name() string               { return fi.name }
func (fi *testFileInfo) Size() int64                { return int64(len(fi.node.data)) }
func (fi *testFileInfo) Mode() fs.FileMode          { return fi.node.mode }
func (fi *testFileInfo) ModTime() time.Time         { return fi.node.modTime }
func (fi *testFileInfo) IsDir() bool                { return fi.node.mode.IsDir() }
func (fi *testFileInfo) Sys() any                   { return nil }
func (fi *testFileInfo) Type() fs.FileMode          { return fi.node.mode.Type() }
func (fi *testFileInfo) Info() (fs.FileInfo, error) { return fi, nil }
