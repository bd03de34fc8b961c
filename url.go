package cvfs

import (
	"context"
	"strings"
	"sync"
)

// Schemes is the fixed set of scheme names a URL mounts, in mount
// order, per spec.md §6.3. A host may not have a back-end available
// for every one of them — SchemeBackends simply omits the ones it
// can't serve, and URL mounts only what it was given.
var Schemes = []string{
	"file", "tmp", "ram", "home", "document", "desktop", "picture",
	"video", "music", "config", "data", "program-data", "application",
	"http", "https",
}

// SchemeBackends maps a scheme name to the assignments mounted at
// "/<scheme>/". Unknown keys (not in Schemes) are rejected by NewURL.
type SchemeBackends map[string][]Assignment

// URL is the convenience VFS of spec.md §6.3: every configured scheme
// pre-mounted at its own top-level path. It has no check of its own for
// a call whose paths lie under different schemes; such a call is routed
// as on any VFS, so a Move between schemes served by different
// back-ends fails with CodeNotSupported. Plays the role
// worldiety/vfs's package-level Default()/SetDefault() global
// FileSystem plays — kept as the one place this module still carries a
// lazily-constructed singleton, per Design Note "Global static
// instances → explicit context": callers that want the convenience use
// DefaultURL/SetDefaultURL; everyone else builds their own VFS with
// New().
type URL struct {
	*VFS
}

// NewURL builds a URL, mounting each entry of backends at "/<scheme>/".
// An unrecognized scheme name is rejected with CodePathInvalid.
func NewURL(ctx context.Context, backends SchemeBackends) (*URL, error) {
	known := map[string]bool{}
	for _, s := range Schemes {
		known[s] = true
	}
	vfs := New()
	for _, scheme := range Schemes {
		assignments, ok := backends[scheme]
		if !ok {
			continue
		}
		if err := vfs.Mount(ctx, Path("/"+scheme+"/"), assignments, nil); err != nil {
			return nil, err
		}
	}
	for scheme := range backends {
		if !known[scheme] {
			return nil, NewError("NewURL", CodePathInvalid, Path(scheme), nil)
		}
	}
	return &URL{VFS: vfs}, nil
}

// ParseURL splits raw ("scheme://path/to/thing") into its scheme and
// the Path rooted at that scheme's mountpoint. An unrecognized scheme,
// or input without a "://" separator, fails with CodePathInvalid.
func ParseURL(raw string) (scheme string, path Path, err error) {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return "", "", NewError("ParseURL", CodePathInvalid, Path(raw), nil)
	}
	scheme = raw[:idx]
	rest := raw[idx+3:]
	known := false
	for _, s := range Schemes {
		if s == scheme {
			known = true
			break
		}
	}
	if !known {
		return "", "", NewError("ParseURL", CodePathInvalid, Path(raw), nil)
	}
	return scheme, ConcatPaths(Path("/"+scheme+"/"), Path("/"+strings.TrimPrefix(rest, "/"))), nil
}

// Resolve parses raw and resolves the resulting path's entry, failing
// with CodeNotFound if raw's scheme crosses into a scheme this URL
// never mounted.
func (u *URL) Resolve(ctx context.Context, raw string, option Option) (Entry, error) {
	_, path, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	return u.GetEntry(ctx, path, option)
}

var (
	defaultURLOnce sync.Once
	defaultURL     *URL
	defaultURLErr  error
)

// DefaultURL lazily builds (once) and returns the process-wide URL
// built from backends, mirroring worldiety/vfs's own Default()/
// SetDefault() pair. Subsequent calls ignore backends and
// return the already-built instance; use SetDefaultURL to replace it
// outright.
func DefaultURL(ctx context.Context, backends SchemeBackends) (*URL, error) {
	defaultURLOnce.Do(func() {
		defaultURL, defaultURLErr = NewURL(ctx, backends)
	})
	return defaultURL, defaultURLErr
}

// SetDefaultURL overrides the process-wide default, for tests or hosts
// that need to reconfigure it after first use.
func SetDefaultURL(u *URL) {
	defaultURL = u
	defaultURLErr = nil
	defaultURLOnce = sync.Once{}
	defaultURLOnce.Do(func() {})
}
