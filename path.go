package cvfs

import "strings"

// Path is a slash-delimited, forward-slash identifier, unique in its
// tree, and plays the role of a composite key exactly as
// worldiety/vfs's own Path type does. The empty string is the root. A
// trailing '/' denotes a directory; its absence denotes a file (except
// at the root, which is always a directory).
type Path string

// IsRoot reports whether p denotes the VFS root.
func (p Path) IsRoot() bool {
	return p.trimmed() == ""
}

// IsDir reports whether p denotes a directory, i.e. the root or any
// path ending in '/'.
func (p Path) IsDir() bool {
	return p.IsRoot() || strings.HasSuffix(string(p), "/")
}

func (p Path) trimmed() string {
	return strings.Trim(string(p), "/")
}

// Segments splits p into its path segments, ignoring leading and
// trailing separators; a doubled separator inside p yields an empty
// segment. Unlike worldiety/vfs's Path.Names, empty segments are not
// dropped, and SegmentsAllowEmpty keeps the boundary ones too — back-ends
// declare whether "//" is legal per spec.md §3.1, so the default
// behaviour here must not silently special-case it away.
func (p Path) Segments() []string {
	t := p.trimmed()
	if t == "" {
		return nil
	}
	return strings.Split(t, "/")
}

// SegmentsAllowEmpty splits p into segments without trimming leading or
// trailing separators first, so a doubled or boundary separator yields
// an explicit empty segment rather than being silently absorbed. Use
// this over Segments for back-ends that declare empty segments legal
// (spec.md §3.1).
func (p Path) SegmentsAllowEmpty() []string {
	s := string(p)
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

// Name returns the last segment, or "" at the root.
func (p Path) Name() string {
	segs := p.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Parent returns the path of the directory containing p, in directory
// form (with a trailing slash), or "" when p has at most one segment.
func (p Path) Parent() Path {
	segs := p.Segments()
	if len(segs) <= 1 {
		return ""
	}
	return Path("/" + strings.Join(segs[:len(segs)-1], "/") + "/")
}

// Child returns p with name appended as a child segment. If p is a
// file path (no trailing slash) it is first treated as a directory,
// mirroring worldiety/vfs's own Path.Child.
func (p Path) Child(name string) Path {
	base := strings.TrimSuffix(string(p), "/")
	name = strings.Trim(name, "/")
	if name == "" {
		return p.AsDir()
	}
	return Path(base + "/" + name)
}

// AsDir returns p with a guaranteed trailing slash.
func (p Path) AsDir() Path {
	if p.IsRoot() {
		return ""
	}
	s := string(p)
	if strings.HasSuffix(s, "/") {
		return p
	}
	return Path(s + "/")
}

// AsFile returns p with any trailing slash stripped.
func (p Path) AsFile() Path {
	return Path(strings.TrimSuffix(string(p), "/"))
}

// StartsWith reports whether p is prefix or a descendant of prefix,
// segment-wise (so "/ab" does not start with "/a").
func (p Path) StartsWith(prefix Path) bool {
	if prefix.IsRoot() {
		return true
	}
	pSegs := p.Segments()
	prefixSegs := prefix.Segments()
	if len(pSegs) < len(prefixSegs) {
		return false
	}
	for i, s := range prefixSegs {
		if pSegs[i] != s {
			return false
		}
	}
	return true
}

// TrimPrefix removes prefix's segments from the front of p, returning
// the remainder as a path rooted at "". Mirrors worldiety/vfs's own
// Path.TrimPrefix, generalized to segment-wise comparison so that
// "/ab".TrimPrefix("/a") does not incorrectly strip to "b".
func (p Path) TrimPrefix(prefix Path) Path {
	if !p.StartsWith(prefix) {
		return p
	}
	rest := p.Segments()[len(prefix.Segments()):]
	if len(rest) == 0 {
		if p.IsDir() {
			return ""
		}
		return ""
	}
	s := "/" + strings.Join(rest, "/")
	if p.IsDir() {
		s += "/"
	}
	return Path(s)
}

// String normalizes p: always rooted at a single "/", no trailing slash
// except when p denotes a directory. An empty segment inside p (from a
// doubled separator) is kept, so "/a//b" stays "/a//b".
func (p Path) String() string {
	segs := p.Segments()
	s := "/" + strings.Join(segs, "/")
	if p.IsDir() && len(segs) > 0 {
		s += "/"
	}
	return s
}

// PathConverter rewrites paths rooted at From into their counterpart
// rooted at To by prefix substitution, per spec.md §4.1. It is used to
// translate between a child back-end's namespace and the parent VFS's
// namespace, and fails the conversion when the input is not under From.
type PathConverter struct {
	From Path
	To   Path
}

// Convert rewrites p, rooted at c.From, into its counterpart rooted at
// c.To. ok is false if p is not under c.From.
func (c PathConverter) Convert(p Path) (result Path, ok bool) {
	if !p.StartsWith(c.From) {
		return "", false
	}
	rel := p.TrimPrefix(c.From)
	if rel.IsRoot() {
		return c.To, true
	}
	return ConcatPaths(c.To, rel), true
}

// Invert returns the converter that maps in the opposite direction.
func (c PathConverter) Invert() PathConverter {
	return PathConverter{From: c.To, To: c.From}
}

// ConcatPaths joins paths together segment-wise, mirroring
// worldiety/vfs's own ConcatPaths.
func ConcatPaths(paths ...Path) Path {
	var segs []string
	dir := false
	for i, p := range paths {
		segs = append(segs, p.Segments()...)
		if i == len(paths)-1 {
			dir = p.IsDir()
		}
	}
	s := "/" + strings.Join(segs, "/")
	if dir && len(segs) > 0 {
		s += "/"
	}
	return Path(s)
}
