package cvfs

import (
	"context"
	"io"
)

// Resource is a handle to an open byte stream, composing the stdlib
// I/O interfaces the same way worldiety/vfs's own Resource interface
// does.
type Resource interface {
	io.Reader
	io.Writer
	io.ReaderAt
	io.WriterAt
	io.Seeker
	io.Closer
}

// OpenMode selects how Open treats an existing/missing destination.
type OpenMode int

const (
	OpenExisting OpenMode = iota
	OpenCreate
	OpenCreateNew
	OpenTruncate
)

// AccessMode selects the byte-level access Open requests.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
	AccessReadWrite
)

// ShareMode selects what concurrent access Open permits other callers.
type ShareMode int

const (
	ShareNone ShareMode = iota
	ShareRead
	ShareWrite
	ShareReadWrite
	ShareDelete
)

// DirectoryContent is the result of a successful Browse.
type DirectoryContent struct {
	Entries []Entry
}

// Backend is the minimal surface every back-end must implement: it
// advertises, via Capabilities, which of the interfaces below it
// additionally satisfies. Capability detection is a direct feature
// probe (a type assertion against the interfaces below), never
// reflection, per Design Note "Runtime type queries → polymorphic
// variants". Merges the roles worldiety/vfs splits across its
// FileSystem and DataProvider types into one capability-gated contract.
type Backend interface {
	// Capabilities returns the option describing which operations this
	// back-end advertises support for. The composer does not call it:
	// before dispatching to the matching interface below it consults the
	// Option of the Assignment the back-end was mounted with (spec.md
	// §4.4), which callers commonly build from this value.
	Capabilities() Option
}

// Browser is implemented by back-ends that can list directory content.
type Browser interface {
	Backend
	Browse(ctx context.Context, path Path, option Option) (*DirectoryContent, error)
}

// EntryGetter is implemented by back-ends that can resolve a single
// entry snapshot.
type EntryGetter interface {
	Backend
	GetEntry(ctx context.Context, path Path, option Option) (Entry, error)
}

// Opener is implemented by back-ends that can open a byte stream.
type Opener interface {
	Backend
	Open(ctx context.Context, path Path, mode OpenMode, access AccessMode, share ShareMode, option Option) (Resource, error)
}

// DirectoryCreator is implemented by back-ends that can create
// directories.
type DirectoryCreator interface {
	Backend
	CreateDirectory(ctx context.Context, path Path, option Option) error
}

// Deleter is implemented by back-ends that can delete entries.
type Deleter interface {
	Backend
	Delete(ctx context.Context, path Path, recurse bool, option Option) error
}

// Mover is implemented by back-ends that can atomically rename an
// entry within their own namespace.
type Mover interface {
	Backend
	Move(ctx context.Context, src, dst Path, option Option) error
}

// Observable is implemented by back-ends that can dispatch change
// events under a glob filter. onCompleted is invoked exactly once, when
// the returned handle's Dispose has finished releasing the back-end's
// own resources (spec.md §4.7 step 4).
type Observable interface {
	Backend
	Observe(filter *Filter, observer ObserverFunc, onCompleted func(), state *ObserverState, dispatcher Dispatcher, option Option) (ObserverHandle, error)
}

// Mounter is implemented by back-ends that themselves host further
// mountpoints (i.e. a nested VFS).
type Mounter interface {
	Backend
	Mount(ctx context.Context, path Path, assignments []Assignment, option Option) error
	Unmount(ctx context.Context, path Path, option Option) error
	ListMountpoints(ctx context.Context, option Option) ([]Entry, error)
}

// SubPathReshaper is implemented by back-ends that can return a copy of
// themselves narrowed to a sub-path (spec.md §3.4, §4.5 invariant 3).
// The mount tree does not consult it: it applies a sub-path option by
// translating paths itself.
type SubPathReshaper interface {
	Backend
	ReshapeSubPath(subPath Path) Backend
}
