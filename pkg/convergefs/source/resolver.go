package source

import (
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
)

// SchemeFile is the local-file scheme; its mount point is fixed at the
// filesystem root.
const SchemeFile = "file"

// SchemeRemote is the remote-protocol scheme: cfs://host[:port]/mount/rest.
const SchemeRemote = "cfs"

// Resolved is a source URI bound to a transport client.
type Resolved struct {
	Client Client
	Mount  string
	// Path is rewritten relative to the mount, cleaned of double-slash
	// artifacts from the rewrite.
	Path string
}

// Resolver parses source URIs and caches one transport client per origin,
// so repeated children of a tree reuse a single connection. It is safe
// for concurrent first use.
type Resolver struct {
	logger zerolog.Logger

	// Dial builds the client for a remote origin. Overridable in tests;
	// defaults to NewHTTPClient.
	Dial func(origin string) Client

	mu      sync.Mutex
	local   Client
	localFs afero.Fs
	remotes map[string]Client
}

// NewResolver builds a resolver whose file-scheme sources are served from
// the given local mount.
func NewResolver(localFs afero.Fs, logger zerolog.Logger) *Resolver {
	return &Resolver{
		logger:  logger,
		localFs: localFs,
		remotes: make(map[string]Client),
		Dial: func(origin string) Client {
			return NewHTTPClient(origin)
		},
	}
}

// Resolve parses a source URI into a client handle. A bare absolute path
// is rewritten to a file-scheme URI with percent-encoding first.
func (r *Resolver) Resolve(raw string) (*Resolved, error) {
	uri := raw
	if strings.HasPrefix(uri, "/") {
		uri = SchemeFile + "://" + (&url.URL{Path: uri}).EscapedPath()
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, &core.SourceError{URI: raw, Reason: "unparsable URI", Cause: err}
	}

	switch u.Scheme {
	case SchemeFile:
		return &Resolved{
			Client: r.localClient(),
			Mount:  "/",
			Path:   collapse(u.Path),
		}, nil
	case SchemeRemote:
		if u.Host == "" {
			return nil, &core.SourceError{URI: raw, Reason: "missing host"}
		}
		mount, rest, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if mount == "" {
			return nil, &core.SourceError{URI: raw, Reason: "missing mount name"}
		}
		return &Resolved{
			Client: r.remoteClient(u.Host),
			Mount:  mount,
			Path:   collapse("/" + rest),
		}, nil
	default:
		return nil, &core.SourceError{URI: raw, Reason: "unsupported protocol " + u.Scheme}
	}
}

func (r *Resolver) localClient() Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.local == nil {
		r.local = NewLocalClient(r.localFs)
	}
	return r.local
}

func (r *Resolver) remoteClient(origin string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.remotes[origin]; ok {
		return c
	}
	r.logger.Debug().Str("origin", origin).Msg("opening transport client")
	c := r.Dial(origin)
	r.remotes[origin] = c
	return c
}

func collapse(p string) string {
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}
