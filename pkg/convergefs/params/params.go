// Package params validates raw declared values into the typed parameters
// of a file-entity declaration. Raw values arrive loosely typed (from a
// manifest decoder); each Parse function maps the accepted literal forms
// to one strong type and rejects everything else with a typed error.
package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
)

// DefaultSuffix is the sibling-copy suffix used when backup is requested
// without naming one.
const DefaultSuffix = ".bak"

// BackupPolicy describes what happens to existing content before a write.
// At most one of Suffix and Bucket is set; neither means backups were
// explicitly disabled or never requested.
type BackupPolicy struct {
	Suffix string // local sibling copy at path+Suffix
	Bucket string // remote content-addressed store name
}

// Disabled reports whether no backup should be taken.
func (p BackupPolicy) Disabled() bool {
	return p.Suffix == "" && p.Bucket == ""
}

// Depth is the remaining recursion depth. Zero disables descent;
// DepthInfinite never decrements.
type Depth int

// DepthInfinite marks unbounded recursion.
const DepthInfinite Depth = -1

// Enabled reports whether any descent remains.
func (d Depth) Enabled() bool {
	return d == DepthInfinite || d > 0
}

// Descend returns the depth passed to the next directory level.
func (d Depth) Descend() Depth {
	if d == DepthInfinite {
		return DepthInfinite
	}
	if d > 0 {
		return d - 1
	}
	return 0
}

// Parameters is the validated configuration of one file entity.
type Parameters struct {
	Backup     BackupPolicy
	Recurse    Depth
	RecurseSet bool // whether recurse was declared at all
	LinkMode   core.LinkMode
	Ignore     []string
	Purge      bool
	Replace    bool
	Force      bool
	Checksum   core.ChecksumType
}

// Recursing reports whether recursion is in effect: the parameter must be
// declared and its resolved value truthy or strictly positive.
func (p Parameters) Recursing() bool {
	return p.RecurseSet && p.Recurse.Enabled()
}

// Defaults returns the parameter set applied before any declaration.
func Defaults() Parameters {
	return Parameters{
		LinkMode: core.LinkManage,
		Replace:  true,
		Checksum: core.ChecksumSHA256,
	}
}

// ParseBackup maps a raw backup declaration to a policy. Accepted forms:
// boolean false (disable), boolean true or "true" (default local suffix),
// a string starting with "." (local suffix), any other non-empty string
// (remote bucket name, resolved at backup time).
func ParseBackup(raw any) (BackupPolicy, error) {
	switch v := raw.(type) {
	case nil:
		return BackupPolicy{}, nil
	case bool:
		if v {
			return BackupPolicy{Suffix: DefaultSuffix}, nil
		}
		return BackupPolicy{}, nil
	case string:
		switch {
		case v == "" || v == "false":
			return BackupPolicy{}, nil
		case v == "true":
			return BackupPolicy{Suffix: DefaultSuffix}, nil
		case strings.HasPrefix(v, "."):
			return BackupPolicy{Suffix: v}, nil
		default:
			return BackupPolicy{Bucket: v}, nil
		}
	default:
		return BackupPolicy{}, &core.ValidationError{
			Reason: fmt.Sprintf("backup must be a boolean or string, got %T", raw),
		}
	}
}

// ParseRecurse maps a raw recurse declaration to a depth. Booleans and the
// unbounded markers coerce to all-or-nothing; integers (as numbers or
// numeric strings) pass through and must be non-negative.
func ParseRecurse(raw any) (Depth, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case bool:
		if v {
			return DepthInfinite, nil
		}
		return 0, nil
	case int:
		return boundedDepth(int64(v))
	case int64:
		return boundedDepth(v)
	case string:
		switch v {
		case "true", "inf", "remote":
			return DepthInfinite, nil
		case "false", "":
			return 0, nil
		}
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, &core.ValidationError{
				Reason: fmt.Sprintf("recurse must be a boolean, %q, or a non-negative integer, got %q", "inf", v),
			}
		}
		return boundedDepth(n)
	default:
		return 0, &core.ValidationError{
			Reason: fmt.Sprintf("recurse must be a boolean, string, or integer, got %T", raw),
		}
	}
}

func boundedDepth(n int64) (Depth, error) {
	if n < 0 {
		return 0, &core.ValidationError{
			Reason: fmt.Sprintf("recurse depth cannot be negative: %d", n),
		}
	}
	return Depth(n), nil
}

// ParseIgnore maps a raw ignore declaration to a pattern set. Only a
// string or a set of strings is acceptable here; any other type means an
// upstream validator failed at its job.
func ParseIgnore(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &core.InternalError{
					Reason: fmt.Sprintf("ignore entry is %T, expected string", item),
				}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &core.InternalError{
			Reason: fmt.Sprintf("ignore must be a string or string set, got %T", raw),
		}
	}
}

// ParseChecksum maps a checksum-type declaration to a known digest.
func ParseChecksum(raw string) (core.ChecksumType, error) {
	switch raw {
	case "", string(core.ChecksumSHA256):
		return core.ChecksumSHA256, nil
	case string(core.ChecksumMD5):
		return core.ChecksumMD5, nil
	default:
		return "", &core.ValidationError{
			Reason: fmt.Sprintf("unknown checksum type %q", raw),
		}
	}
}

// ParseLinkMode maps a link-handling declaration to a mode.
func ParseLinkMode(raw string) (core.LinkMode, error) {
	switch raw {
	case "", string(core.LinkManage):
		return core.LinkManage, nil
	case string(core.LinkFollow):
		return core.LinkFollow, nil
	case string(core.LinkIgnore):
		return core.LinkIgnore, nil
	default:
		return "", &core.ValidationError{
			Reason: fmt.Sprintf("unknown link mode %q", raw),
		}
	}
}

// ValidatePath rejects any declared path that is not absolute. Checked at
// declaration time, not at use time.
func ValidatePath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return &core.ValidationError{
			Path:   p,
			Reason: "path must be absolute",
		}
	}
	return nil
}
