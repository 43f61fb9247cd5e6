// Package config loads the TOML manifest of file declarations consumed by
// the CLI and turns each declaration into a validated entity.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/entity"
	"github.com/convergefs/convergefs/pkg/convergefs/params"
)

// Manifest is the root of a convergefs manifest file.
type Manifest struct {
	Buckets []BucketConfig `toml:"bucket"`
	Files   []FileDecl     `toml:"file"`
}

// BucketConfig names one backup bucket and where it stores content.
// Exactly one of Dir and S3 should be set.
type BucketConfig struct {
	Name string    `toml:"name"`
	Dir  string    `toml:"dir"`
	S3   *S3Bucket `toml:"s3"`
}

// S3Bucket configures an S3/MinIO-backed bucket.
type S3Bucket struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
}

// FileDecl is one raw file declaration. Loosely typed fields (backup,
// recurse, ignore) are coerced by the params package.
type FileDecl struct {
	Path     string  `toml:"path"`
	Ensure   string  `toml:"ensure"`
	Content  *string `toml:"content"`
	Source   string  `toml:"source"`
	Target   string  `toml:"target"`
	Mode     string  `toml:"mode"`
	Owner    *int    `toml:"owner"`
	Group    *int    `toml:"group"`
	Backup   any     `toml:"backup"`
	Recurse  any     `toml:"recurse"`
	Ignore   any     `toml:"ignore"`
	Links    string  `toml:"links"`
	Checksum string  `toml:"checksum"`
	Purge    bool    `toml:"purge"`
	Replace  *bool   `toml:"replace"`
	Force    bool    `toml:"force"`
}

// Load reads and decodes a manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest load failed (%s): %w", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest parse failed (%s): %w", path, err)
	}
	return &m, nil
}

// Build validates the declaration and registers it as an entity.
func (d FileDecl) Build(env *entity.Env) (*entity.Entity, error) {
	p := params.Defaults()

	var err error
	if p.Backup, err = params.ParseBackup(d.Backup); err != nil {
		return nil, tagged(err, d.Path)
	}
	if d.Recurse != nil {
		if p.Recurse, err = params.ParseRecurse(d.Recurse); err != nil {
			return nil, tagged(err, d.Path)
		}
		p.RecurseSet = true
	}
	if p.Ignore, err = params.ParseIgnore(d.Ignore); err != nil {
		return nil, tagged(err, d.Path)
	}
	if p.LinkMode, err = params.ParseLinkMode(d.Links); err != nil {
		return nil, tagged(err, d.Path)
	}
	if p.Checksum, err = params.ParseChecksum(d.Checksum); err != nil {
		return nil, tagged(err, d.Path)
	}
	if d.Replace != nil {
		p.Replace = *d.Replace
	}
	p.Purge = d.Purge
	p.Force = d.Force

	desired := entity.Desired{
		Source:     d.Source,
		LinkTarget: d.Target,
	}
	if desired.Ensure, err = parseEnsure(d.Ensure); err != nil {
		return nil, tagged(err, d.Path)
	}
	if d.Content != nil {
		desired.Content = []byte(*d.Content)
		desired.ContentSet = true
	}
	if d.Mode != "" {
		n, err := strconv.ParseUint(d.Mode, 8, 32)
		if err != nil {
			return nil, &core.ValidationError{
				Path:   d.Path,
				Reason: fmt.Sprintf("mode must be octal, got %q", d.Mode),
				Cause:  err,
			}
		}
		mode := fs.FileMode(n)
		desired.Mode = &mode
	}
	desired.Owner = d.Owner
	desired.Group = d.Group

	return entity.New(env, d.Path, p, desired)
}

func parseEnsure(raw string) (core.Ensure, error) {
	switch core.Ensure(raw) {
	case core.EnsureUnset, core.EnsureFile, core.EnsureDirectory, core.EnsureLink, core.EnsureAbsent:
		return core.Ensure(raw), nil
	case "present":
		return core.EnsureFile, nil
	default:
		return core.EnsureUnset, &core.ValidationError{
			Reason: fmt.Sprintf("unknown ensure value %q", raw),
		}
	}
}

func tagged(err error, path string) error {
	if verr, ok := err.(*core.ValidationError); ok && verr.Path == "" {
		verr.Path = path
	}
	return err
}
