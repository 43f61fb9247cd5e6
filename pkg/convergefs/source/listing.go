// Package source resolves content-source URIs to transport clients and
// speaks the remote listing protocol.
package source

import (
	"strings"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
)

// ListRequest describes one listing call against a transport client.
type ListRequest struct {
	Path     string
	LinkMode core.LinkMode
	Recurse  bool
	Ignore   []string
}

// Client is the transport contract the resolver binds sources to: a
// listing RPC and a content-fetch RPC.
type Client interface {
	List(req ListRequest) (string, error)
	Fetch(path string) ([]byte, error)
}

// Entry is one parsed listing record.
type Entry struct {
	Path string
	Kind core.FileKind
}

// ParseListing decodes a newline-delimited listing. Each record is
// "entryPath \t entryKind". The record whose path is "/" describes the
// listed root itself. A second field equal to the first is the sentinel
// for "directory, do not descend from this listing"; the kind names
// "file", "directory" and "link" are also recognized, and anything else
// is treated as a regular file.
//
// The equality sentinel is an assumption about the wire contract, not a
// guarantee; keep ParseListing the only place that interprets it.
func ParseListing(listing string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(listing, "\n") {
		if line == "" {
			continue
		}
		entryPath, kindField, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		entries = append(entries, Entry{Path: entryPath, Kind: parseKind(entryPath, kindField)})
	}
	return entries
}

func parseKind(entryPath, kindField string) core.FileKind {
	switch {
	case kindField == entryPath, kindField == string(core.KindDirectory):
		return core.KindDirectory
	case kindField == string(core.KindLink):
		return core.KindLink
	default:
		return core.KindFile
	}
}
