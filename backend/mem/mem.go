// Package mem is an in-memory Backend: every scenario in spec.md §8
// that mentions "RAM" is this package. Grounded on worldiety/vfs's
// LocalFileSystem for the overall CRUD-method shape
// (Resolve/Open/Delete/MkDirs/Rename/ReadDir), with os.* calls replaced
// by operations on an in-memory node tree instead; worldiety/vfs has no
// memory-backed FileSystem of its own to adapt more directly.
package mem

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/worldiety/cvfs"
)

type node struct {
	name     string
	isDir    bool
	data     []byte
	modified time.Time
	children map[string]*node
}

func newDirNode(name string) *node {
	return &node{name: name, isDir: true, modified: time.Now(), children: map[string]*node{}}
}

// Backend is an in-memory filesystem. The zero value is not usable;
// build one with New.
type Backend struct {
	mu   sync.Mutex
	root *node

	obsMu     sync.Mutex
	observers []*subscription
}

type subscription struct {
	filter      *cvfs.Filter
	deliver     cvfs.ObserverFunc
	onCompleted func()
	dispatcher  cvfs.Dispatcher
	disposed    bool
}

func (s *subscription) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.onCompleted != nil {
		s.onCompleted()
	}
}

// New builds an empty in-memory Backend.
func New() *Backend {
	return &Backend{root: newDirNode("")}
}

// Capabilities advertises full read/write/observe support.
func (b *Backend) Capabilities() cvfs.Option {
	comp, _ := cvfs.OptionComposition(cvfs.CompositionKeepLast,
		cvfs.NewCapabilityOption(cvfs.KindBrowse, true),
		cvfs.NewCapabilityOption(cvfs.KindOpen, true),
		cvfs.NewCapabilityOption(cvfs.KindRead, true),
		cvfs.NewCapabilityOption(cvfs.KindWrite, true),
		cvfs.NewCapabilityOption(cvfs.KindCreate, true),
		cvfs.NewCapabilityOption(cvfs.KindDelete, true),
		cvfs.NewCapabilityOption(cvfs.KindMove, true),
		cvfs.NewCapabilityOption(cvfs.KindObserve, true),
	)
	return comp
}

func (b *Backend) walk(path cvfs.Path) (*node, bool) {
	n := b.root
	for _, seg := range path.Segments() {
		if !n.isDir {
			return nil, false
		}
		child, ok := n.children[seg]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

func (b *Backend) parentOf(path cvfs.Path) (*node, string, bool) {
	parent, ok := b.walk(path.Parent())
	if !ok || !parent.isDir {
		return nil, "", false
	}
	return parent, path.Name(), true
}

func entryFor(fs cvfs.Backend, path cvfs.Path, n *node) cvfs.Entry {
	if n.isDir {
		return cvfs.NewDirectoryEntry(fs, path.AsDir(), "", n.modified, n.modified)
	}
	return cvfs.NewFileEntry(fs, path.AsFile(), int64(len(n.data)), 0, "", n.modified, n.modified)
}

// Browse lists path's immediate children.
func (b *Backend) Browse(ctx context.Context, path cvfs.Path, option cvfs.Option) (*cvfs.DirectoryContent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.walk(path)
	if !ok || !n.isDir {
		return nil, cvfs.NewError("Browse", cvfs.CodeNotFound, path, nil)
	}
	content := &cvfs.DirectoryContent{}
	for name, child := range n.children {
		content.Entries = append(content.Entries, entryFor(b, path.Child(name), child))
	}
	return content, nil
}

// GetEntry resolves a single node.
func (b *Backend) GetEntry(ctx context.Context, path cvfs.Path, option cvfs.Option) (cvfs.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if path.IsRoot() {
		return entryFor(b, "", b.root), nil
	}
	n, ok := b.walk(path)
	if !ok {
		return nil, cvfs.NewError("GetEntry", cvfs.CodeNotFound, path, nil)
	}
	return entryFor(b, path, n), nil
}

// memResource is an in-memory Resource backed by a byte buffer shared
// with the owning node.
type memResource struct {
	mu     *sync.Mutex
	n      *node
	offset int64
	notify func(n int)
}

func (r *memResource) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offset >= int64(len(r.n.data)) {
		return 0, io.EOF
	}
	c := copy(p, r.n.data[r.offset:])
	r.offset += int64(c)
	return c, nil
}

func (r *memResource) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := r.offset + int64(len(p))
	if end > int64(len(r.n.data)) {
		grown := make([]byte, end)
		copy(grown, r.n.data)
		r.n.data = grown
	}
	c := copy(r.n.data[r.offset:end], p)
	r.offset += int64(c)
	r.n.modified = time.Now()
	if r.notify != nil {
		r.notify(c)
	}
	return c, nil
}

func (r *memResource) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off >= int64(len(r.n.data)) {
		return 0, io.EOF
	}
	return copy(p, r.n.data[off:]), nil
}

func (r *memResource) WriteAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(r.n.data)) {
		grown := make([]byte, end)
		copy(grown, r.n.data)
		r.n.data = grown
	}
	c := copy(r.n.data[off:end], p)
	r.n.modified = time.Now()
	return c, nil
}

func (r *memResource) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch whence {
	case io.SeekStart:
		r.offset = offset
	case io.SeekCurrent:
		r.offset += offset
	case io.SeekEnd:
		r.offset = int64(len(r.n.data)) + offset
	}
	return r.offset, nil
}

func (r *memResource) Close() error { return nil }

// Open opens path as a byte stream, creating it per mode if it's
// missing.
func (b *Backend) Open(ctx context.Context, path cvfs.Path, mode cvfs.OpenMode, access cvfs.AccessMode, share cvfs.ShareMode, option cvfs.Option) (cvfs.Resource, error) {
	b.mu.Lock()
	n, ok := b.walk(path)
	if !ok {
		if mode == cvfs.OpenExisting {
			b.mu.Unlock()
			return nil, cvfs.NewError("Open", cvfs.CodeNotFound, path, nil)
		}
		parent, name, ok := b.parentOf(path)
		if !ok {
			b.mu.Unlock()
			return nil, cvfs.NewError("Open", cvfs.CodeNotFound, path.Parent(), nil)
		}
		n = &node{name: name, modified: time.Now()}
		parent.children[name] = n
	} else if mode == cvfs.OpenTruncate {
		n.data = nil
	} else if mode == cvfs.OpenCreateNew {
		b.mu.Unlock()
		return nil, cvfs.NewError("Open", cvfs.CodeFileExists, path, nil)
	}
	mu := &b.mu
	b.mu.Unlock()
	return &memResource{mu: mu, n: n, notify: func(written int) { b.notifyChange(path) }}, nil
}

// CreateDirectory creates a single directory segment at path.
func (b *Backend) CreateDirectory(ctx context.Context, path cvfs.Path, option cvfs.Option) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.walk(path); ok {
		return cvfs.NewError("CreateDirectory", cvfs.CodeDirectoryExists, path, nil)
	}
	parent, name, ok := b.parentOf(path)
	if !ok {
		return cvfs.NewError("CreateDirectory", cvfs.CodeNotFound, path.Parent(), nil)
	}
	parent.children[name] = newDirNode(name)
	b.notifyCreate(path.AsDir())
	return nil
}

// Delete removes path, refusing a non-empty directory unless recurse.
func (b *Backend) Delete(ctx context.Context, path cvfs.Path, recurse bool, option cvfs.Option) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.walk(path)
	if !ok {
		return cvfs.NewError("Delete", cvfs.CodeNotFound, path, nil)
	}
	if n.isDir && len(n.children) > 0 && !recurse {
		return cvfs.NewError("Delete", cvfs.CodeNotEmpty, path, nil)
	}
	parent, ok := b.walk(path.Parent())
	if !ok {
		return cvfs.NewError("Delete", cvfs.CodeNotFound, path.Parent(), nil)
	}
	delete(parent.children, path.Name())
	b.notifyDelete(path)
	return nil
}

// Move renames src to dst within this backend.
func (b *Backend) Move(ctx context.Context, src, dst cvfs.Path, option cvfs.Option) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.walk(src)
	if !ok {
		return cvfs.NewError("Move", cvfs.CodeNotFound, src, nil)
	}
	srcParent, ok := b.walk(src.Parent())
	if !ok {
		return cvfs.NewError("Move", cvfs.CodeNotFound, src.Parent(), nil)
	}
	dstParent, name, ok := b.parentOf(dst)
	if !ok {
		return cvfs.NewError("Move", cvfs.CodeNotFound, dst.Parent(), nil)
	}
	delete(srcParent.children, src.Name())
	n.name = name
	dstParent.children[name] = n
	return nil
}

func (b *Backend) notifyCreate(path cvfs.Path) { b.broadcast(cvfs.EventCreate, path) }
func (b *Backend) notifyDelete(path cvfs.Path) { b.broadcast(cvfs.EventDelete, path) }
func (b *Backend) notifyChange(path cvfs.Path) { b.broadcast(cvfs.EventChange, path) }

func (b *Backend) broadcast(kind cvfs.EventKind, path cvfs.Path) {
	b.obsMu.Lock()
	subs := append([]*subscription{}, b.observers...)
	b.obsMu.Unlock()
	for _, s := range subs {
		if s.disposed || !s.filter.Match(path) {
			continue
		}
		var ev cvfs.Event
		switch kind {
		case cvfs.EventCreate:
			ev = cvfs.NewCreateEvent(nil, path, time.Now())
		case cvfs.EventChange:
			ev = cvfs.NewChangeEvent(nil, path, time.Now())
		case cvfs.EventDelete:
			ev = cvfs.NewDeleteEvent(nil, path, time.Now())
		default:
			continue
		}
		s.dispatcher.Dispatch(ev, s.deliver, nil)
	}
}

// Observe registers observer for every change matching filter.
func (b *Backend) Observe(filter *cvfs.Filter, observer cvfs.ObserverFunc, onCompleted func(), state *cvfs.ObserverState, dispatcher cvfs.Dispatcher, option cvfs.Option) (cvfs.ObserverHandle, error) {
	s := &subscription{filter: filter, deliver: observer, onCompleted: onCompleted, dispatcher: dispatcher}
	b.obsMu.Lock()
	b.observers = append(b.observers, s)
	b.obsMu.Unlock()
	return s, nil
}

var _ cvfs.Backend = (*Backend)(nil)
var _ cvfs.Browser = (*Backend)(nil)
var _ cvfs.EntryGetter = (*Backend)(nil)
var _ cvfs.Opener = (*Backend)(nil)
var _ cvfs.DirectoryCreator = (*Backend)(nil)
var _ cvfs.Deleter = (*Backend)(nil)
var _ cvfs.Mover = (*Backend)(nil)
var _ cvfs.Observable = (*Backend)(nil)
