// Package checksum computes content digests and keeps per-entity checksum
// state coherent across the attributes that can alter content.
package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
	"github.com/convergefs/convergefs/pkg/convergefs/filesystem"
)

func newHash(typ core.ChecksumType) (hash.Hash, error) {
	switch typ {
	case core.ChecksumMD5:
		return md5.New(), nil
	case core.ChecksumSHA256, "":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum type %q", typ)
	}
}

// Sum digests a byte slice.
func Sum(data []byte, typ core.ChecksumType) (string, error) {
	h, err := newHash(typ)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Compute digests the current content of a file on the given filesystem.
func Compute(fsys filesystem.ReadFS, path string, typ core.ChecksumType) (string, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return Sum(data, typ)
}
