package cvfs

import (
	"context"
	"sort"
)

// Composer routes outward operations through a MountTree's dispatch
// set in precedence order, merging browse results and intersecting
// options, per spec.md §4.6. It itself implements Backend (plus every
// capability interface except SubPathReshaper), so a fully composed VFS
// can in turn be mounted as a child inside another VFS. worldiety/vfs's closest relative,
// RootProvider.Query, merges and prefix-strips results across a flat
// `map[Path]DataProvider` but has no precedence, option algebra, or
// tree recursion; the merge-by-name/MergedEntry-fallback shape below
// generalizes that method's result-combining loop.
type Composer struct {
	tree *MountTree
}

// NewComposer wraps tree with composer routing logic.
func NewComposer(tree *MountTree) *Composer {
	return &Composer{tree: tree}
}

// Capabilities advertises the eight filesystem-operation kinds (browse,
// open, read, write, create, delete, move, observe) as available: the
// composer's actual ability to serve a given path always depends on
// what's mounted there, so it structurally supports that surface and
// returns an error per call when nothing routable exists.
func (c *Composer) Capabilities() Option {
	kinds := []Kind{KindBrowse, KindOpen, KindRead, KindWrite, KindCreate, KindDelete, KindMove, KindObserve}
	opts := make([]Option, len(kinds))
	for i, k := range kinds {
		opts[i] = NewCapabilityOption(k, true)
	}
	comp, _ := OptionComposition(CompositionKeepLast, opts...)
	return comp
}

func errSeverity(err error) int {
	switch {
	case err == nil:
		return 99
	case IsCode(err, CodeNotFound):
		return 0
	case IsCode(err, CodeUnauthorized):
		return 1
	case IsCode(err, CodeNotSupported):
		return 2
	default:
		return 3
	}
}

// pickMoreInformative keeps whichever of current/candidate ranks lower
// per errSeverity (not-found preferred over unauthorized preferred over
// not-supported, per spec.md §4.6 open()).
func pickMoreInformative(current, candidate error) error {
	if current == nil {
		return candidate
	}
	if candidate != nil && errSeverity(candidate) < errSeverity(current) {
		return candidate
	}
	return current
}

// Browse merges children from every dispatch-set member supporting
// browse, plus synthesized entries for child mountpoints, per spec.md
// §4.6.
func (c *Composer) Browse(ctx context.Context, path Path, option Option) (*DirectoryContent, error) {
	path = path.AsDir()
	dispatch := c.tree.DispatchSet(path)

	byName := map[string]Entry{}
	var order []string
	put := func(name string, e Entry) {
		if existing, has := byName[name]; has {
			byName[name] = MergedEntry{Primary: existing, Secondary: e}
			return
		}
		byName[name] = e
		order = append(order, name)
	}

	var lastErr error
	anyBrowsable := false
	for _, d := range dispatch {
		br, ok := d.Backend.(Browser)
		if !ok || !CapabilityEnabled(d.Option, KindBrowse) {
			continue
		}
		anyBrowsable = true
		merged, err := Intersection(option, d.Option)
		if err != nil {
			lastErr = err
			continue
		}
		content, err := br.Browse(ctx, d.TranslatedPath, merged)
		if err != nil {
			lastErr = err
			continue
		}
		for _, e := range content.Entries {
			name := e.Name()
			put(name, EntryWithNewFilesystemAndPath(e, c, ConcatPaths(path, Path(name))))
		}
	}

	for name, assignments := range c.tree.ChildMountpoints(path) {
		put(name, NewMountEntry(c, ConcatPaths(path, Path(name)).AsDir(), assignments))
	}

	if len(order) == 0 && !(path.IsRoot() && len(dispatch) == 0) {
		if len(dispatch) == 0 {
			return nil, errNotFound("Browse", path)
		}
		if !anyBrowsable {
			return nil, errNotSupported("Browse", path)
		}
		if lastErr != nil {
			return nil, lastErr
		}
	}

	sort.Strings(order)
	entries := make([]Entry, 0, len(order))
	for _, n := range order {
		entries = append(entries, byName[n])
	}
	return &DirectoryContent{Entries: entries}, nil
}

// GetEntry returns the first non-null result in precedence order; if
// path is itself a mountpoint, a synthesized MountEntry takes
// precedence (spec.md §4.6).
func (c *Composer) GetEntry(ctx context.Context, path Path, option Option) (Entry, error) {
	if assignments := c.tree.AssignmentsAt(path); assignments != nil || path.IsRoot() {
		return NewMountEntry(c, path.AsDir(), assignments), nil
	}

	dispatch := c.tree.DispatchSet(path)
	if len(dispatch) == 0 {
		return nil, errNotFound("GetEntry", path)
	}
	var lastErr error
	for _, d := range dispatch {
		eg, ok := d.Backend.(EntryGetter)
		if !ok || !CapabilityEnabled(d.Option, KindBrowse) {
			continue
		}
		merged, err := Intersection(option, d.Option)
		if err != nil {
			lastErr = err
			continue
		}
		e, err := eg.GetEntry(ctx, d.TranslatedPath, merged)
		if err != nil {
			lastErr = err
			continue
		}
		if e != nil {
			return EntryWithNewFilesystemAndPath(e, c, path), nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errNotFound("GetEntry", path)
}

// Open dispatches to the first supporting back-end whose capabilities
// permit the requested access; if all refuse, the most informative
// error is raised (spec.md §4.6).
func (c *Composer) Open(ctx context.Context, path Path, mode OpenMode, access AccessMode, share ShareMode, option Option) (Resource, error) {
	dispatch := c.tree.DispatchSet(path)
	if len(dispatch) == 0 {
		return nil, errNotFound("Open", path)
	}
	requiredKind := KindRead
	if access == AccessWrite || access == AccessReadWrite {
		requiredKind = KindWrite
	}
	var best error
	for _, d := range dispatch {
		op, ok := d.Backend.(Opener)
		if !ok || !CapabilityEnabled(d.Option, requiredKind) {
			continue
		}
		merged, err := Intersection(option, d.Option)
		if err != nil {
			best = pickMoreInformative(best, err)
			continue
		}
		res, err := op.Open(ctx, d.TranslatedPath, mode, access, share, merged)
		if err == nil {
			return res, nil
		}
		best = pickMoreInformative(best, err)
	}
	if best != nil {
		return nil, best
	}
	return nil, errNotSupported("Open", path)
}

// CreateDirectory dispatches to the highest-precedence writable
// back-end covering path (spec.md §4.6).
func (c *Composer) CreateDirectory(ctx context.Context, path Path, option Option) error {
	for _, d := range c.tree.DispatchSet(path) {
		dc, ok := d.Backend.(DirectoryCreator)
		if !ok || !CapabilityEnabled(d.Option, KindCreate) {
			continue
		}
		merged, err := Intersection(option, d.Option)
		if err != nil {
			return err
		}
		return dc.CreateDirectory(ctx, d.TranslatedPath, merged)
	}
	return errNotSupported("CreateDirectory", path)
}

// Delete dispatches to the highest-precedence writable back-end
// covering path (spec.md §4.6).
func (c *Composer) Delete(ctx context.Context, path Path, recurse bool, option Option) error {
	for _, d := range c.tree.DispatchSet(path) {
		del, ok := d.Backend.(Deleter)
		if !ok || !CapabilityEnabled(d.Option, KindDelete) {
			continue
		}
		merged, err := Intersection(option, d.Option)
		if err != nil {
			return err
		}
		return del.Delete(ctx, d.TranslatedPath, recurse, merged)
	}
	return errNotSupported("Delete", path)
}

// translateForBackend resolves path into b's own namespace, if b
// participates in path's dispatch set.
func (c *Composer) translateForBackend(b Backend, path Path) (Path, bool) {
	for _, d := range c.tree.DispatchSet(path) {
		if d.Backend == b {
			return d.TranslatedPath, true
		}
	}
	return "", false
}

// Move dispatches to the highest-precedence writable back-end covering
// src, provided the same back-end also covers dst — single-filesystem
// moves only; cross-filesystem moves are the operation engine's
// TransferTree (spec.md §4.6, §4.8.5).
func (c *Composer) Move(ctx context.Context, src, dst Path, option Option) error {
	for _, d := range c.tree.DispatchSet(src) {
		mv, ok := d.Backend.(Mover)
		if !ok || !CapabilityEnabled(d.Option, KindMove) {
			continue
		}
		dstTranslated, ok := c.translateForBackend(d.Backend, dst)
		if !ok {
			continue
		}
		merged, err := Intersection(option, d.Option)
		if err != nil {
			return err
		}
		return mv.Move(ctx, d.TranslatedPath, dstTranslated, merged)
	}
	return errNotSupported("Move", src)
}

// subscriptionHandle adapts a *Subscription into an ObserverHandle that
// also unlinks itself from the owning tree on Dispose.
type subscriptionHandle struct {
	tree *MountTree
	sub  *Subscription
}

func (h subscriptionHandle) Dispose() {
	h.tree.Unsubscribe(h.sub)
}

// Observe registers the subscription in the mount tree (spec.md §4.6
// observe()).
func (c *Composer) Observe(filter *Filter, observer ObserverFunc, onCompleted func(), state *ObserverState, dispatcher Dispatcher, option Option) (ObserverHandle, error) {
	sub := c.tree.Subscribe(context.Background(), Path(filter.LiteralPrefix()), filter, observer, onCompleted, dispatcher, nil)
	return subscriptionHandle{tree: c.tree, sub: sub}, nil
}

// Mount exposes the tree's Mount operation as a Backend-shaped method,
// so a Composer can itself be mounted as a child inside a parent VFS.
func (c *Composer) Mount(ctx context.Context, path Path, assignments []Assignment, option Option) error {
	return c.tree.Mount(ctx, path, assignments, option)
}

// Unmount mirrors Mount.
func (c *Composer) Unmount(ctx context.Context, path Path, option Option) error {
	return c.tree.Unmount(ctx, path, option)
}

// ListMountpoints returns a MountEntry for every node in the tree that
// carries at least one assignment.
func (c *Composer) ListMountpoints(ctx context.Context, option Option) ([]Entry, error) {
	var out []Entry
	for path, assignments := range c.tree.AllMountpoints() {
		out = append(out, NewMountEntry(c, path.AsDir(), assignments))
	}
	return out, nil
}
