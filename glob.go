package cvfs

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter is a compiled glob pattern over full paths, per spec.md §4.1:
// '?' matches exactly one non-separator character, '*' matches within a
// single segment, '**' crosses segment boundaries, everything else is
// literal. Matching is all-or-nothing against the whole path string —
// a Filter never matches a single segment in isolation.
//
// worldiety/vfs's closest relative, router.go's matcher, only supports
// exact segments, "{name}" captures and a single trailing "*" — too
// weak for spec.md's "**" cross-segment wildcard, so Filter is built
// directly on doublestar (github.com/bmatcuk/doublestar/v4, grounded on
// _examples/canonical-snapd/go.mod) instead of extending that matcher.
type Filter struct {
	pattern           string
	literalPrefixDepth int
}

// CompileFilter compiles pattern into a Filter. Pattern is always
// matched against the normalized path string (leading '/').
func CompileFilter(pattern string) (*Filter, error) {
	norm := normalizeFilterPattern(pattern)
	// validate by asking doublestar to match the pattern once against "/".
	if _, err := doublestar.Match(norm, "/"); err != nil {
		return nil, NewError("CompileFilter", CodePathInvalid, Path(pattern), err)
	}
	return &Filter{
		pattern:            norm,
		literalPrefixDepth: literalPrefixDepth(norm),
	}, nil
}

// MustCompileFilter is CompileFilter but panics on an invalid pattern;
// useful for filters built from Go literals (tests, examples).
func MustCompileFilter(pattern string) *Filter {
	f, err := CompileFilter(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

func normalizeFilterPattern(pattern string) string {
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	return pattern
}

// Pattern returns the normalized pattern string the Filter was compiled
// from.
func (f *Filter) Pattern() string {
	return f.pattern
}

// Match reports whether p matches the filter, per spec.md §4.1: matching
// is a full-path, all-or-nothing boolean.
func (f *Filter) Match(p Path) bool {
	candidate := p.String()
	ok, _ := doublestar.Match(f.pattern, candidate)
	return ok
}

// LiteralPrefixDepth is the number of leading path segments of the
// filter containing no wildcard character, per spec.md §4.1 / GLOSSARY.
// It is 0 when the first segment already contains a wildcard, and it
// equals the segment count when the filter has no wildcard at all, i.e.
// targets a single file/directory path.
func (f *Filter) LiteralPrefixDepth() int {
	return f.literalPrefixDepth
}

// LiteralPrefix returns the path formed by the filter's literal leading
// segments (LiteralPrefixDepth of them). It is the sub-tree root the
// filter can possibly match under.
func (f *Filter) LiteralPrefix() Path {
	segs := Path(f.pattern).Segments()
	if f.literalPrefixDepth >= len(segs) {
		return Path("/" + strings.Join(segs, "/"))
	}
	return Path("/" + strings.Join(segs[:f.literalPrefixDepth], "/"))
}

// Intersects reports whether the filter could possibly match some path
// under root — i.e. whether root and the filter's literal prefix are
// compatible (one is an ancestor of the other). The wildcard part of the
// pattern below the prefix is not examined, so the result can be true
// for a root under which nothing matches. Used by the mount tree
// (§4.5 step 3) to decide whether a new assignment needs a child
// observer for a given subscription.
func (f *Filter) Intersects(root Path) bool {
	prefix := f.LiteralPrefix()
	return prefix.StartsWith(root) || root.StartsWith(prefix)
}

func literalPrefixDepth(pattern string) int {
	segs := Path(pattern).Segments()
	depth := 0
	for _, seg := range segs {
		if strings.ContainsAny(seg, "*?") {
			break
		}
		depth++
	}
	return depth
}
