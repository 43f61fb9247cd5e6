package source

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// LocalClient serves listings and content from a local filesystem mount.
// The engine uses it for file-scheme sources; tests back it with an
// afero.MemMapFs, production with afero.NewOsFs() rooted at "/".
type LocalClient struct {
	fs afero.Fs
}

// NewLocalClient returns a client serving the given mount.
func NewLocalClient(fsys afero.Fs) *LocalClient {
	return &LocalClient{fs: fsys}
}

// List produces the listing for a path. Directory records use the
// same-path sentinel; regular files carry an explicit kind.
func (c *LocalClient) List(req ListRequest) (string, error) {
	info, err := c.fs.Stat(req.Path)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", req.Path, err)
	}

	var b strings.Builder
	if !info.IsDir() {
		b.WriteString("/\tfile\n")
		return b.String(), nil
	}
	b.WriteString("/\t/\n")
	if err := c.list(&b, req, req.Path, ""); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (c *LocalClient) list(b *strings.Builder, req ListRequest, dir, rel string) error {
	infos, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	for _, info := range infos {
		if ignored(info.Name(), req.Ignore) {
			continue
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			// The mount serves plain trees; links are opaque entries.
			continue
		}
		entryRel := rel + "/" + info.Name()
		if info.IsDir() {
			fmt.Fprintf(b, "%s\t%s\n", entryRel, entryRel)
			if req.Recurse {
				if err := c.list(b, req, path.Join(dir, info.Name()), entryRel); err != nil {
					return err
				}
			}
			continue
		}
		fmt.Fprintf(b, "%s\tfile\n", entryRel)
	}
	return nil
}

// Fetch reads file content from the mount.
func (c *LocalClient) Fetch(p string) ([]byte, error) {
	data, err := afero.ReadFile(c.fs, p)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p, err)
	}
	return data, nil
}

func ignored(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
