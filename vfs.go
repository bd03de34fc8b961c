package cvfs

import "context"

// VFS is a composable virtual filesystem: a mount tree, the composer
// routing through it, and a Lifecycle scope for owned resources
// (spec.md §6.2). Plays the role worldiety/vfs's package-level
// Default()/SetDefault() single global FileSystem plays, generalized
// per Design Note "Global static instances → explicit context" into an
// explicitly constructed value — callers that do want a shared
// instance build one and pass it around,
// rather than the module maintaining hidden global state.
type VFS struct {
	tree     *MountTree
	composer *Composer
	life     *Lifecycle
}

// New constructs an empty virtual filesystem.
func New() *VFS {
	tree := NewMountTree()
	return &VFS{
		tree:     tree,
		composer: NewComposer(tree),
		life:     NewLifecycle(),
	}
}

// Composer exposes the underlying Composer, e.g. so this VFS can be
// mounted as a child inside another (Composer implements Backend,
// Mounter, and every other capability interface).
func (v *VFS) Composer() *Composer { return v.composer }

// Mount grafts assignments onto path (spec.md §4.5, §6.2).
func (v *VFS) Mount(ctx context.Context, path Path, assignments []Assignment, option Option) error {
	return v.tree.Mount(ctx, path, assignments, option)
}

// Unmount removes every assignment at path (spec.md §4.5, §6.2).
func (v *VFS) Unmount(ctx context.Context, path Path, option Option) error {
	return v.tree.Unmount(ctx, path, option)
}

// ListMountpoints enumerates every live mountpoint in the tree.
func (v *VFS) ListMountpoints(ctx context.Context, option Option) ([]Entry, error) {
	return v.composer.ListMountpoints(ctx, option)
}

// Browse lists path's directory content across every mounted back-end
// that covers it (spec.md §4.6, §6.2).
func (v *VFS) Browse(ctx context.Context, path Path, option Option) (*DirectoryContent, error) {
	return v.composer.Browse(ctx, path, option)
}

// GetEntry resolves a single entry snapshot at path.
func (v *VFS) GetEntry(ctx context.Context, path Path, option Option) (Entry, error) {
	return v.composer.GetEntry(ctx, path, option)
}

// Open opens a byte stream at path.
func (v *VFS) Open(ctx context.Context, path Path, mode OpenMode, access AccessMode, share ShareMode, option Option) (Resource, error) {
	return v.composer.Open(ctx, path, mode, access, share, option)
}

// CreateDirectory creates a single directory segment at path (use
// NewCreateDirectoryOp for the intermediate-segment-creating
// operation-engine variant).
func (v *VFS) CreateDirectory(ctx context.Context, path Path, option Option) error {
	return v.composer.CreateDirectory(ctx, path, option)
}

// Delete removes a single entry at path.
func (v *VFS) Delete(ctx context.Context, path Path, recurse bool, option Option) error {
	return v.composer.Delete(ctx, path, recurse, option)
}

// Move renames src to dst within a single back-end.
func (v *VFS) Move(ctx context.Context, src, dst Path, option Option) error {
	return v.composer.Move(ctx, src, dst, option)
}

// Observe subscribes callback to every change under filter's root.
func (v *VFS) Observe(filter *Filter, callback ObserverFunc, onCompleted func(), state *ObserverState, dispatcher Dispatcher, option Option) (ObserverHandle, error) {
	return v.composer.Observe(filter, callback, onCompleted, state, dispatcher, option)
}

// AddDisposable registers d for release when this VFS is disposed
// (spec.md §5, §6.2).
func (v *VFS) AddDisposable(d Disposable) { v.life.AddDisposable(d) }

// AddDisposeAction registers f to run at dispose time.
func (v *VFS) AddDisposeAction(f func()) { v.life.AddDisposeAction(f) }

// BelateDispose postpones this VFS's teardown until the returned handle
// is itself released.
func (v *VFS) BelateDispose() Disposable { return v.life.BelateDispose() }

// Dispose releases every resource this VFS owns.
func (v *VFS) Dispose() { v.life.Dispose() }

// IsDisposed reports whether Dispose has completed.
func (v *VFS) IsDisposed() bool { return v.life.IsDisposed() }

// NewCopyFileOp builds a CopyFileOp bound to this VFS (spec.md §4.8.3,
// §6.2).
func (v *VFS) NewCopyFileOp(session *Session, src, dst Path, override PolicyOverride) *CopyFileOp {
	return newCopyFileOp(v, session, src, dst, override)
}

// NewCopyTreeOp builds a CopyTreeOp bound to this VFS (spec.md §4.8.4).
func (v *VFS) NewCopyTreeOp(session *Session, src, dst Path, override PolicyOverride) *CopyTreeOp {
	return newCopyTreeOp(v, session, src, dst, override)
}

// NewMoveOp builds a MoveOp bound to this VFS (spec.md §4.8.5).
func (v *VFS) NewMoveOp(session *Session, src, dst Path, override PolicyOverride) *MoveOp {
	return newMoveOp(v, session, src, dst, override)
}

// NewTransferTreeOp builds a TransferTreeOp bound to this VFS (spec.md
// §4.8.5).
func (v *VFS) NewTransferTreeOp(session *Session, src, dst Path, override PolicyOverride) *TransferTreeOp {
	return newTransferTreeOp(v, session, src, dst, override)
}

// NewDeleteOp builds a DeleteOp bound to this VFS (spec.md §4.8.6).
func (v *VFS) NewDeleteOp(session *Session, path Path, override PolicyOverride) *DeleteOp {
	return newDeleteOp(v, session, path, override)
}

// NewDeleteTreeOp builds a DeleteTreeOp bound to this VFS (spec.md
// §4.8.8).
func (v *VFS) NewDeleteTreeOp(session *Session, path Path, override PolicyOverride) *DeleteTreeOp {
	return newDeleteTreeOp(v, session, path, override)
}

// NewCreateDirectoryOp builds a CreateDirectoryOp bound to this VFS
// (spec.md §4.8.7).
func (v *VFS) NewCreateDirectoryOp(session *Session, path Path, override PolicyOverride) *CreateDirectoryOp {
	return newCreateDirectoryOp(v, session, path, override)
}

// NewBatchOp builds a BatchOp bound to this VFS (spec.md §4.8.9).
func (v *VFS) NewBatchOp(session *Session, children []Operation, override PolicyOverride) *BatchOp {
	return newBatchOp(v, session, children, override)
}
