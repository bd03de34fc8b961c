// Package osfs is a Backend over the local filesystem. Grounded on
// worldiety/vfs's LocalFileSystem: the same resolve-then-os-call shape,
// the same retry-on-missing-parent-directory fallback in Open, and the
// same delete-then-retry-rename fallback in Move. Observe has no
// precedent there — its FileSystem has no watch capability at all — and
// is built on fsnotify (github.com/fsnotify/fsnotify, already in the
// corpus's dependency set) instead.
package osfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/worldiety/cvfs"
)

// Backend roots a cvfs namespace at a directory on the local disk.
type Backend struct {
	root string

	watchOnce sync.Once
	watcher   *fsnotify.Watcher

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

// New roots a Backend at root, an existing directory on the local
// filesystem.
func New(root string) *Backend {
	return &Backend{root: filepath.Clean(root)}
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

// resolve turns path, relative to this backend's root, into a native
// filesystem path. Mirrors LocalFileSystem.Resolve.
func (b *Backend) resolve(path cvfs.Path) string {
	return filepath.Join(append([]string{b.root}, path.Segments()...)...)
}

func wrapOSErr(op string, path cvfs.Path, err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return cvfs.NewError(op, cvfs.CodeNotFound, path, err)
	}
	if os.IsExist(err) {
		return cvfs.NewError(op, cvfs.CodeFileExists, path, err)
	}
	return cvfs.NewError(op, cvfs.CodeIO, path, err)
}

func entryFor(b *Backend, path cvfs.Path, info os.FileInfo) cvfs.Entry {
	if info.IsDir() {
		return cvfs.NewDirectoryEntry(b, path.AsDir(), b.resolve(path), info.ModTime(), info.ModTime())
	}
	return cvfs.NewFileEntry(b, path.AsFile(), info.Size(), uint32(info.Mode().Perm()), b.resolve(path), info.ModTime(), info.ModTime())
}

// Browse lists path's immediate children.
func (b *Backend) Browse(ctx context.Context, path cvfs.Path, option cvfs.Option) (*cvfs.DirectoryContent, error) {
	entries, err := os.ReadDir(b.resolve(path))
	if err != nil {
		return nil, wrapOSErr("Browse", path, err)
	}
	content := &cvfs.DirectoryContent{}
	for _, de := range entries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		content.Entries = append(content.Entries, entryFor(b, path.Child(de.Name()), info))
	}
	return content, nil
}

// GetEntry stats path.
func (b *Backend) GetEntry(ctx context.Context, path cvfs.Path, option cvfs.Option) (cvfs.Entry, error) {
	info, err := os.Stat(b.resolve(path))
	if err != nil {
		return nil, wrapOSErr("GetEntry", path, err)
	}
	return entryFor(b, path, info), nil
}

func osFlags(mode cvfs.OpenMode, access cvfs.AccessMode) int {
	var flag int
	switch access {
	case cvfs.AccessRead:
		flag = os.O_RDONLY
	case cvfs.AccessWrite:
		flag = os.O_WRONLY
	case cvfs.AccessReadWrite:
		flag = os.O_RDWR
	}
	switch mode {
	case cvfs.OpenCreate:
		flag |= os.O_CREATE
	case cvfs.OpenCreateNew:
		flag |= os.O_CREATE | os.O_EXCL
	case cvfs.OpenTruncate:
		flag |= os.O_CREATE | os.O_TRUNC
	}
	return flag
}

// Open opens path as a native file, retrying once after recreating a
// missing parent directory, the same fallback worldiety/vfs's
// LocalFileSystem.Open performs.
func (b *Backend) Open(ctx context.Context, path cvfs.Path, mode cvfs.OpenMode, access cvfs.AccessMode, share cvfs.ShareMode, option cvfs.Option) (cvfs.Resource, error) {
	native := b.resolve(path)
	flag := osFlags(mode, access)
	file, err := os.OpenFile(native, flag, 0o644)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok && mode != cvfs.OpenExisting {
			if mkErr := os.MkdirAll(filepath.Dir(native), 0o755); mkErr == nil {
				file, err = os.OpenFile(native, flag, 0o644)
			}
		}
	}
	if err != nil {
		return nil, wrapOSErr("Open", path, err)
	}
	if mode != cvfs.OpenExisting {
		b.notify(cvfs.EventCreate, path)
	}
	return file, nil
}

// CreateDirectory creates a single directory segment.
func (b *Backend) CreateDirectory(ctx context.Context, path cvfs.Path, option cvfs.Option) error {
	if err := os.Mkdir(b.resolve(path), 0o755); err != nil {
		if os.IsExist(err) {
			return cvfs.NewError("CreateDirectory", cvfs.CodeDirectoryExists, path, err)
		}
		return wrapOSErr("CreateDirectory", path, err)
	}
	b.notify(cvfs.EventCreate, path.AsDir())
	return nil
}

// Delete removes path, refusing a non-empty directory unless recurse.
func (b *Backend) Delete(ctx context.Context, path cvfs.Path, recurse bool, option cvfs.Option) error {
	native := b.resolve(path)
	var err error
	if recurse {
		err = os.RemoveAll(native)
	} else {
		err = os.Remove(native)
	}
	if err != nil {
		if pe, ok := err.(*os.PathError); ok && !recurse && isNotEmpty(pe) {
			return cvfs.NewError("Delete", cvfs.CodeNotEmpty, path, err)
		}
		return wrapOSErr("Delete", path, err)
	}
	b.notify(cvfs.EventDelete, path)
	return nil
}

func isNotEmpty(pe *os.PathError) bool {
	return pe.Err != nil && (os.IsExist(pe.Err) || pe.Err.Error() == "directory not empty")
}

// Move renames src to dst, retrying via delete-then-rename if the
// first attempt fails, the same fallback worldiety/vfs's
// LocalFileSystem.Rename performs.
func (b *Backend) Move(ctx context.Context, src, dst cvfs.Path, option cvfs.Option) error {
	nativeSrc, nativeDst := b.resolve(src), b.resolve(dst)
	err := os.Rename(nativeSrc, nativeDst)
	if err != nil {
		if delErr := os.RemoveAll(nativeDst); delErr == nil {
			err = os.Rename(nativeSrc, nativeDst)
		}
	}
	if err != nil {
		return wrapOSErr("Move", src, err)
	}
	return nil
}

func (b *Backend) toPath(native string) (cvfs.Path, bool) {
	rel, err := filepath.Rel(b.root, native)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return cvfs.Path("/" + filepath.ToSlash(rel)), true
}

func (b *Backend) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	b.watcher = w
	_ = filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = w.Add(p)
		}
		return nil
	})
	go b.watchLoop()
}

func (b *Backend) watchLoop() {
	for {
		select {
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleFSEvent(ev)
		case _, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (b *Backend) handleFSEvent(ev fsnotify.Event) {
	path, ok := b.toPath(ev.Name)
	if !ok {
		return
	}
	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = b.watcher.Add(ev.Name)
		}
		b.notify(cvfs.EventCreate, path)
	case ev.Op&fsnotify.Write != 0:
		b.notify(cvfs.EventChange, path)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		b.notify(cvfs.EventDelete, path)
	}
}

func (b *Backend) notify(kind cvfs.EventKind, path cvfs.Path) {
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

// Observe starts (lazily) a recursive fsnotify watch over this
// backend's root and registers observer for every change matching
// filter.
func (b *Backend) Observe(filter *cvfs.Filter, observer cvfs.ObserverFunc, onCompleted func(), state *cvfs.ObserverState, dispatcher cvfs.Dispatcher, option cvfs.Option) (cvfs.ObserverHandle, error) {
	b.watchOnce.Do(b.startWatcher)
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
