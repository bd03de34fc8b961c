package cvfs

import (
	"context"
	"strings"
	"sync"
	"time"
)

// mountNode is a node in the mount tree (spec.md §3.4).
type mountNode struct {
	path        Path
	assignments []Assignment
	children    map[string]*mountNode
	observers   []*Subscription
}

func newMountNode(path Path) *mountNode {
	return &mountNode{path: path, children: map[string]*mountNode{}}
}

func (n *mountNode) child(segment string) *mountNode {
	c, ok := n.children[segment]
	if !ok {
		c = newMountNode(n.path.Child(segment))
		n.children[segment] = c
	}
	return c
}

func (n *mountNode) isEmpty() bool {
	return len(n.assignments) == 0 && len(n.children) == 0 && len(n.observers) == 0
}

// MountTree is the mutable tree of mountpoints that routes every
// operation to one or more back-ends (spec.md §3.4, §4.5). Structural
// mutations (Mount/Unmount/Subscribe/Unsubscribe) are serialized by a
// single lock, per the concurrency model of spec.md §5. worldiety/vfs
// has no recursive tree at all — its MountableFileSystem.Mount only
// ever creates one level of intermediate *virtualDir* nodes on a flat
// map — so only the walk-and-create-intermediate-nodes shape is
// grounded on it; the recursive node/child/prune structure and the
// locking strategy are new, required by spec.md §3.4's tree invariants.
type MountTree struct {
	mu   sync.Mutex
	root *mountNode
}

// NewMountTree builds an empty tree, root included.
func NewMountTree() *MountTree {
	return &MountTree{root: newMountNode("")}
}

// DispatchEntry is one element of a dispatch set (spec.md §4.5
// Lookup / GLOSSARY).
type DispatchEntry struct {
	Backend        Backend
	Option         Option
	TranslatedPath Path
}

// DispatchSet returns the ordered list of (back-end, translated-path)
// entries for q, closest (child) assignments first.
func (t *MountTree) DispatchSet(q Path) []DispatchEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dispatchSetLocked(q)
}

type nodeFrame struct {
	node *mountNode
}

func (t *MountTree) dispatchSetLocked(q Path) []DispatchEntry {
	var chain []nodeFrame
	node := t.root
	chain = append(chain, nodeFrame{node})
	for _, seg := range q.Segments() {
		c, ok := node.children[seg]
		if !ok {
			break
		}
		node = c
		chain = append(chain, nodeFrame{node})
	}
	var out []DispatchEntry
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i].node
		if len(n.assignments) == 0 {
			continue
		}
		for _, a := range n.assignments {
			out = append(out, DispatchEntry{
				Backend:        a.Backend,
				Option:         a.Option,
				TranslatedPath: translatePath(q, n.path, a.Option),
			})
		}
	}
	return out
}

func translatePath(q, nodePath Path, opt Option) Path {
	rel := q.TrimPrefix(nodePath)
	if sp, ok := valueForKind(opt, KindSubPath); ok {
		if spo, ok2 := sp.(SubPathOption); ok2 {
			return ConcatPaths(spo.Path, rel)
		}
	}
	return rel
}

func (t *MountTree) ensureNodeLocked(path Path) *mountNode {
	node := t.root
	for _, seg := range path.Segments() {
		node = node.child(seg)
	}
	return node
}

func (t *MountTree) findNodeLocked(path Path) *mountNode {
	node := t.root
	for _, seg := range path.Segments() {
		c, ok := node.children[seg]
		if !ok {
			return nil
		}
		node = c
	}
	return node
}

func collectObserversLocked(n *mountNode) []*Subscription {
	out := append([]*Subscription{}, n.observers...)
	for _, c := range n.children {
		out = append(out, collectObserversLocked(c)...)
	}
	return out
}

// Mount walks the tree from root, creating intermediate nodes for each
// segment, and replaces path's assignment list with assignments
// (mount fully supersedes any prior content there), per spec.md §4.5
// Insertion steps 1-2.
func (t *MountTree) Mount(ctx context.Context, path Path, assignments []Assignment, option Option) error {
	t.mu.Lock()
	node := t.ensureNodeLocked(path)
	node.assignments = assignments
	observers := collectObserversLocked(t.root)
	t.mu.Unlock()

	var interested []*Subscription
	for _, sub := range observers {
		if sub.Filter.Intersects(path) {
			interested = append(interested, sub)
		}
	}

	// step 3: attach a child observer inside each new back-end.
	for _, sub := range interested {
		attachChildObservers(ctx, sub, path, assignments)
	}
	// step 4: emit Mount(path, assignments, option).
	for _, sub := range interested {
		sub.Emit(NewMountEvent(sub, path, assignments, option, time.Now()))
	}
	// step 5: synthesize a Create event for every entry of the new
	// back-ends that matches the observer's filter. Entries the observer
	// was already shown are not tracked, so they are announced again.
	for _, sub := range interested {
		synthesizeCreateEvents(ctx, sub, path, assignments)
	}
	return nil
}

// Unmount is symmetric to Mount, per spec.md §4.5 Removal.
func (t *MountTree) Unmount(ctx context.Context, path Path, option Option) error {
	t.mu.Lock()
	node := t.findNodeLocked(path)
	if node == nil || len(node.assignments) == 0 {
		t.mu.Unlock()
		return errNotFound("Unmount", path)
	}
	assignments := node.assignments
	observers := collectObserversLocked(t.root)
	t.mu.Unlock()

	var interested []*Subscription
	for _, sub := range observers {
		if sub.Filter.Intersects(path) {
			interested = append(interested, sub)
		}
	}

	// step 1: Delete for every entry of the departing back-ends that
	// matches the observer's filter; which entries it was shown is not
	// tracked.
	for _, sub := range interested {
		emitDeleteForSeenEntries(ctx, sub, path, assignments)
	}
	// step 2: Unmount(path).
	for _, sub := range interested {
		sub.Emit(NewUnmountEvent(sub, path, time.Now()))
	}
	// step 3: cancel child observers attached to the departing back-ends.
	for _, sub := range interested {
		sub.DisposeChildrenUnder(path)
	}

	// step 4: remove the assignment list; prune if empty.
	t.mu.Lock()
	node.assignments = nil
	t.pruneLocked(path)
	t.mu.Unlock()
	return nil
}

func (t *MountTree) pruneLocked(path Path) {
	segs := path.Segments()
	nodes := []*mountNode{t.root}
	node := t.root
	for _, seg := range segs {
		c, ok := node.children[seg]
		if !ok {
			return
		}
		nodes = append(nodes, c)
		node = c
	}
	for i := len(nodes) - 1; i > 0; i-- {
		n := nodes[i]
		if !n.isEmpty() {
			break
		}
		parent := nodes[i-1]
		delete(parent.children, n.path.Name())
	}
}

// Subscribe registers a new subscription rooted at root, attaches child
// observers for every already-mounted back-end whose sub-tree
// intersects filter, and dispatches the synthetic Start event (spec.md
// §4.7).
func (t *MountTree) Subscribe(ctx context.Context, root Path, filter *Filter, callback ObserverFunc, onCompleted func(), dispatcher Dispatcher, errHandler func(error)) *Subscription {
	sub := NewSubscription(root, filter, callback, onCompleted, dispatcher, nil, errHandler)

	t.mu.Lock()
	node := t.ensureNodeLocked(root)
	node.observers = append(node.observers, sub)
	mounted := t.collectAssignmentsUnderLocked(root)
	for n, segs := t.root, root.Segments(); len(segs) > 0; n, segs = n.children[segs[0]], segs[1:] {
		if len(n.assignments) > 0 {
			mounted[n.path] = n.assignments
		}
	}
	t.mu.Unlock()

	sub.Start()
	for mountPath, assignments := range mounted {
		if !filter.Intersects(mountPath) {
			continue
		}
		attachChildObservers(ctx, sub, mountPath, assignments)
	}
	return sub
}

func (t *MountTree) collectAssignmentsUnderLocked(root Path) map[Path][]Assignment {
	node := t.findNodeLocked(root)
	out := map[Path][]Assignment{}
	if node == nil {
		return out
	}
	var walk func(n *mountNode)
	walk = func(n *mountNode) {
		if len(n.assignments) > 0 {
			out[n.path] = n.assignments
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(node)
	return out
}

// Unsubscribe disposes sub and removes it from the tree.
func (t *MountTree) Unsubscribe(sub *Subscription) {
	sub.Dispose()
	t.mu.Lock()
	defer t.mu.Unlock()
	node := t.findNodeLocked(sub.Root())
	if node == nil {
		return
	}
	for i, o := range node.observers {
		if o == sub {
			node.observers = append(node.observers[:i], node.observers[i+1:]...)
			break
		}
	}
	t.pruneLocked(sub.Root())
}

// ChildMountpoints returns the immediate child nodes of path that carry
// at least one assignment, keyed by segment name.
func (t *MountTree) ChildMountpoints(path Path) map[string][]Assignment {
	t.mu.Lock()
	defer t.mu.Unlock()
	node := t.findNodeLocked(path)
	out := map[string][]Assignment{}
	if node == nil {
		return out
	}
	for name, c := range node.children {
		if len(c.assignments) > 0 {
			out[name] = c.assignments
		}
	}
	return out
}

// AssignmentsAt returns the assignment list at path, or nil if path is
// not itself a mountpoint.
func (t *MountTree) AssignmentsAt(path Path) []Assignment {
	t.mu.Lock()
	defer t.mu.Unlock()
	var node *mountNode
	if path.IsRoot() {
		node = t.root
	} else {
		node = t.findNodeLocked(path)
	}
	if node == nil || len(node.assignments) == 0 {
		return nil
	}
	return node.assignments
}

// AllMountpoints returns every node in the tree carrying at least one
// assignment, keyed by its full path.
func (t *MountTree) AllMountpoints() map[Path][]Assignment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[Path][]Assignment{}
	var walk func(n *mountNode)
	walk = func(n *mountNode) {
		if len(n.assignments) > 0 {
			out[n.path] = n.assignments
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// restrictFilterToChild translates a parent-namespace filter into the
// coordinate system a child back-end mounted at mountPath (with an
// optional sub-path root) would need to match against, by substituting
// mountPath's (always-literal) segments for subPathRoot's.
func restrictFilterToChild(filter *Filter, mountPath Path, subPathRoot Path) (*Filter, bool) {
	if !filter.Intersects(mountPath) {
		return nil, false
	}
	segs := Path(filter.Pattern()).Segments()
	mountSegs := mountPath.Segments()
	var rest []string
	if len(segs) >= len(mountSegs) {
		rest = segs[len(mountSegs):]
	} else {
		rest = []string{"**"}
	}
	childPattern := ConcatPaths(subPathRoot, Path("/"+strings.Join(rest, "/")))
	f, err := CompileFilter(string(childPattern))
	if err != nil {
		return nil, false
	}
	return f, true
}

func subPathRootOf(opt Option) Path {
	if sp, ok := valueForKind(opt, KindSubPath); ok {
		if spo, ok2 := sp.(SubPathOption); ok2 {
			return spo.Path
		}
	}
	return ""
}

func attachChildObservers(ctx context.Context, sub *Subscription, mountPath Path, assignments []Assignment) {
	for _, a := range assignments {
		obs, ok := a.Backend.(Observable)
		if !ok {
			continue
		}
		subPathRoot := subPathRootOf(a.Option)
		childFilter, ok := restrictFilterToChild(sub.Filter, mountPath, subPathRoot)
		if !ok {
			continue
		}
		converter := PathConverter{From: subPathRoot, To: mountPath}
		state := &ObserverState{Converter: converter}
		adapterFn, onCompleted := newAdapterObserver(sub, state)
		handle, err := obs.Observe(childFilter, adapterFn, onCompleted, state, sub.Dispatcher(), a.Option)
		if err != nil {
			continue
		}
		sub.AddChildObserver(mountPath, handle)
	}
}

func synthesizeCreateEvents(ctx context.Context, sub *Subscription, mountPath Path, assignments []Assignment) {
	for _, a := range assignments {
		browser, ok := a.Backend.(Browser)
		if !ok {
			continue
		}
		subPathRoot := subPathRootOf(a.Option)
		walkBackendTree(ctx, browser, subPathRoot, a.Option, mountPath, subPathRoot, sub, true)
	}
}

func emitDeleteForSeenEntries(ctx context.Context, sub *Subscription, mountPath Path, assignments []Assignment) {
	for _, a := range assignments {
		browser, ok := a.Backend.(Browser)
		if !ok {
			continue
		}
		subPathRoot := subPathRootOf(a.Option)
		walkBackendTree(ctx, browser, subPathRoot, a.Option, mountPath, subPathRoot, sub, false)
	}
}

// walkBackendTree walks a back-end's tree starting at dir (in the
// back-end's own namespace), converting each visited entry's path back
// into the parent-VFS namespace via converter(mountPath, subPathRoot)
// and, for entries matching sub's filter, emitting a Create (create=
// true) or Delete (create=false) event.
func walkBackendTree(ctx context.Context, b Browser, dir Path, option Option, mountPath, subPathRoot Path, sub *Subscription, create bool) {
	content, err := b.Browse(ctx, dir, option)
	if err != nil {
		return
	}
	converter := PathConverter{From: subPathRoot, To: mountPath}
	for _, e := range content.Entries {
		parentPath, ok := converter.Convert(e.Path())
		if !ok {
			continue
		}
		isDir := false
		if dr, ok := e.(DirectoryRole); ok {
			isDir = dr.IsDirectory()
		}
		if sub.Filter.Match(parentPath) {
			if create {
				sub.Emit(NewCreateEvent(sub, parentPath, time.Now()))
			} else {
				sub.Emit(NewDeleteEvent(sub, parentPath, time.Now()))
			}
		}
		if isDir {
			walkBackendTree(ctx, b, e.Path(), option, mountPath, subPathRoot, sub, create)
		}
	}
}
