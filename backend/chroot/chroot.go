// Package chroot restricts a Backend to one of its own sub-trees,
// exposing that sub-tree as if it were the delegate's root. Grounded on
// worldiety/vfs's ChRoot: the same prefix-then-delegate shape for every
// operation, and the same prefix-trimming its chrootListener performs
// on inbound events, generalized from a single FileSystem-wide
// interface to this module's per-capability interfaces.
package chroot

import (
	"context"

	"github.com/worldiety/cvfs"
)

// Backend exposes Delegate's sub-tree rooted at Prefix as its own root.
type Backend struct {
	Prefix   cvfs.Path
	Delegate cvfs.Backend
}

// New builds a Backend exposing delegate's Prefix sub-tree as root.
func New(prefix cvfs.Path, delegate cvfs.Backend) *Backend {
	return &Backend{Prefix: prefix, Delegate: delegate}
}

func (b *Backend) resolve(path cvfs.Path) cvfs.Path {
	return cvfs.ConcatPaths(b.Prefix, path)
}

// Capabilities forwards the delegate's own advertised capabilities.
func (b *Backend) Capabilities() cvfs.Option {
	return b.Delegate.Capabilities()
}

// ReshapeSubPath narrows this chroot further, composing prefixes rather
// than nesting decorators (spec.md §3.4, §4.5 invariant 3).
func (b *Backend) ReshapeSubPath(subPath cvfs.Path) cvfs.Backend {
	return &Backend{Prefix: cvfs.ConcatPaths(b.Prefix, subPath), Delegate: b.Delegate}
}

func (b *Backend) stripEntry(e cvfs.Entry, apparentPath cvfs.Path) cvfs.Entry {
	return cvfs.EntryWithNewFilesystemAndPath(e, b, apparentPath)
}

// Browse delegates at Prefix-prefixed path, trimming Prefix back off of
// every child entry's own path.
func (b *Backend) Browse(ctx context.Context, path cvfs.Path, option cvfs.Option) (*cvfs.DirectoryContent, error) {
	br, ok := b.Delegate.(cvfs.Browser)
	if !ok {
		return nil, cvfs.NewError("Browse", cvfs.CodeNotSupported, path, nil)
	}
	content, err := br.Browse(ctx, b.resolve(path), option)
	if err != nil {
		return nil, err
	}
	out := &cvfs.DirectoryContent{Entries: make([]cvfs.Entry, 0, len(content.Entries))}
	for _, e := range content.Entries {
		apparent := e.Path().TrimPrefix(b.Prefix)
		out.Entries = append(out.Entries, b.stripEntry(e, apparent))
	}
	return out, nil
}

// GetEntry delegates at the Prefix-prefixed path.
func (b *Backend) GetEntry(ctx context.Context, path cvfs.Path, option cvfs.Option) (cvfs.Entry, error) {
	eg, ok := b.Delegate.(cvfs.EntryGetter)
	if !ok {
		return nil, cvfs.NewError("GetEntry", cvfs.CodeNotSupported, path, nil)
	}
	e, err := eg.GetEntry(ctx, b.resolve(path), option)
	if err != nil {
		return nil, err
	}
	return b.stripEntry(e, path), nil
}

// Open delegates at the Prefix-prefixed path.
func (b *Backend) Open(ctx context.Context, path cvfs.Path, mode cvfs.OpenMode, access cvfs.AccessMode, share cvfs.ShareMode, option cvfs.Option) (cvfs.Resource, error) {
	op, ok := b.Delegate.(cvfs.Opener)
	if !ok {
		return nil, cvfs.NewError("Open", cvfs.CodeNotSupported, path, nil)
	}
	return op.Open(ctx, b.resolve(path), mode, access, share, option)
}

// CreateDirectory delegates at the Prefix-prefixed path.
func (b *Backend) CreateDirectory(ctx context.Context, path cvfs.Path, option cvfs.Option) error {
	dc, ok := b.Delegate.(cvfs.DirectoryCreator)
	if !ok {
		return cvfs.NewError("CreateDirectory", cvfs.CodeNotSupported, path, nil)
	}
	return dc.CreateDirectory(ctx, b.resolve(path), option)
}

// Delete delegates at the Prefix-prefixed path.
func (b *Backend) Delete(ctx context.Context, path cvfs.Path, recurse bool, option cvfs.Option) error {
	del, ok := b.Delegate.(cvfs.Deleter)
	if !ok {
		return cvfs.NewError("Delete", cvfs.CodeNotSupported, path, nil)
	}
	return del.Delete(ctx, b.resolve(path), recurse, option)
}

// Move delegates with both src and dst Prefix-prefixed, so a move can
// never cross out of this chroot's own sub-tree.
func (b *Backend) Move(ctx context.Context, src, dst cvfs.Path, option cvfs.Option) error {
	mv, ok := b.Delegate.(cvfs.Mover)
	if !ok {
		return cvfs.NewError("Move", cvfs.CodeNotSupported, src, nil)
	}
	return mv.Move(ctx, b.resolve(src), b.resolve(dst), option)
}

// Observe subscribes on the delegate under Prefix, rewriting every
// delivered event's path(s) back to this chroot's own apparent
// namespace before forwarding — the same trimming worldiety/vfs's
// chrootListener performs inline.
func (b *Backend) Observe(filter *cvfs.Filter, observer cvfs.ObserverFunc, onCompleted func(), state *cvfs.ObserverState, dispatcher cvfs.Dispatcher, option cvfs.Option) (cvfs.ObserverHandle, error) {
	obs, ok := b.Delegate.(cvfs.Observable)
	if !ok {
		return nil, cvfs.NewError("Observe", cvfs.CodeNotSupported, "", nil)
	}
	childFilter, err := cvfs.CompileFilter(string(cvfs.ConcatPaths(b.Prefix, cvfs.Path(filter.Pattern()))))
	if err != nil {
		return nil, err
	}
	wrapped := func(ev cvfs.Event) {
		observer(b.rewrite(ev))
	}
	return obs.Observe(childFilter, wrapped, onCompleted, state, dispatcher, option)
}

func (b *Backend) rewrite(ev cvfs.Event) cvfs.Event {
	switch e := ev.(type) {
	case cvfs.RenameEvent:
		return cvfs.EventWithRenamePaths(e, e.OldPath().TrimPrefix(b.Prefix), e.NewPath().TrimPrefix(b.Prefix))
	case cvfs.PathEvent:
		return cvfs.EventWithPath(e, e.Path().TrimPrefix(b.Prefix))
	case cvfs.ErrorEvent:
		if e.Path().IsRoot() {
			return e
		}
		return cvfs.EventWithPath(e, e.Path().TrimPrefix(b.Prefix))
	default:
		return ev
	}
}

var _ cvfs.Backend = (*Backend)(nil)
var _ cvfs.Browser = (*Backend)(nil)
var _ cvfs.EntryGetter = (*Backend)(nil)
var _ cvfs.Opener = (*Backend)(nil)
var _ cvfs.DirectoryCreator = (*Backend)(nil)
var _ cvfs.Deleter = (*Backend)(nil)
var _ cvfs.Mover = (*Backend)(nil)
var _ cvfs.Observable = (*Backend)(nil)
var _ cvfs.SubPathReshaper = (*Backend)(nil)
