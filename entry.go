package cvfs

import "time"

// Entry is an immutable snapshot of a path at a point in time, mirroring
// worldiety/vfs's ResourceInfo/DefaultEntry pair but reshaped per
// Design Note "Runtime type
// queries → polymorphic variants": a back-end exposes whichever roles it
// has data for by returning an Entry that additionally satisfies the
// corresponding role interface below. Callers probe with a type
// assertion (e.g. `fr, ok := e.(FileRole)`), never reflection.
type Entry interface {
	// Filesystem returns the owning filesystem, i.e. the Backend (or
	// composed VFS) this entry was produced by.
	Filesystem() Backend
	// Path is the entry's full path.
	Path() Path
	// Name is the leaf segment of Path, or "" at the root.
	Name() string
	// LastModified is the entry's modification time, zero if unknown.
	LastModified() time.Time
	// LastAccess is the entry's last-access time, zero if unknown.
	LastAccess() time.Time
}

// FileRole is implemented by entries describing a file.
type FileRole interface {
	Entry
	// Length is the file's byte length, or -1 if unknown.
	Length() int64
	// FileAttributes are back-end-defined attribute bits, 0 if none.
	FileAttributes() uint32
	// PhysicalPath is the underlying storage path, "" if not applicable.
	PhysicalPath() string
}

// DirectoryRole is implemented by entries describing a directory. A
// directory entry may also carry PhysicalPath, so it is expressed as
// its own minimal interface rather than reusing FileRole.
type DirectoryRole interface {
	Entry
	IsDirectory() bool
	PhysicalPath() string
}

// DriveType classifies a DriveRole entry's underlying medium.
type DriveType int

const (
	DriveTypeUnknown DriveType = iota
	DriveTypeFixed
	DriveTypeRemovable
	DriveTypeRemote
	DriveTypeMemory
)

// DriveRole is implemented by entries describing a storage volume.
type DriveRole interface {
	Entry
	DriveType() DriveType
	FreeSpace() int64
	TotalSize() int64
	Label() string
	Format() string
}

// Assignment pairs a back-end with the mount-option active for it at a
// particular mount node, per spec.md §3.4.
type Assignment struct {
	Backend Backend
	Option  Option
}

// MountRole is implemented by entries synthesized for a mountpoint,
// carrying the assignments active there.
type MountRole interface {
	Entry
	Assignments() []Assignment
}

// OptionRole is implemented by entries that carry a per-entry option
// override, e.g. a back-end reporting capability restrictions specific
// to one path.
type OptionRole interface {
	Entry
	EntryOption() Option
}

// baseEntry is the common field set every concrete Entry embeds,
// analogous to worldiety/vfs's own DefaultEntry.
type baseEntry struct {
	fs           Backend
	path         Path
	lastModified time.Time
	lastAccess   time.Time
}

func (e baseEntry) Filesystem() Backend      { return e.fs }
func (e baseEntry) Path() Path               { return e.path }
func (e baseEntry) Name() string             { return e.path.Name() }
func (e baseEntry) LastModified() time.Time  { return e.lastModified }
func (e baseEntry) LastAccess() time.Time    { return e.lastAccess }

// FileEntry is a plain FileRole implementation.
type FileEntry struct {
	baseEntry
	length         int64
	fileAttributes uint32
	physicalPath   string
}

// NewFileEntry builds a FileEntry. Pass length -1 when unknown.
func NewFileEntry(fs Backend, path Path, length int64, attrs uint32, physicalPath string, modified, accessed time.Time) *FileEntry {
	return &FileEntry{
		baseEntry:      baseEntry{fs: fs, path: path, lastModified: modified, lastAccess: accessed},
		length:         length,
		fileAttributes: attrs,
		physicalPath:   physicalPath,
	}
}

func (e *FileEntry) Length() int64           { return e.length }
func (e *FileEntry) FileAttributes() uint32  { return e.fileAttributes }
func (e *FileEntry) PhysicalPath() string    { return e.physicalPath }

// DirectoryEntry is a plain DirectoryRole implementation.
type DirectoryEntry struct {
	baseEntry
	physicalPath string
}

// NewDirectoryEntry builds a DirectoryEntry.
func NewDirectoryEntry(fs Backend, path Path, physicalPath string, modified, accessed time.Time) *DirectoryEntry {
	return &DirectoryEntry{
		baseEntry:    baseEntry{fs: fs, path: path, lastModified: modified, lastAccess: accessed},
		physicalPath: physicalPath,
	}
}

func (e *DirectoryEntry) IsDirectory() bool     { return true }
func (e *DirectoryEntry) PhysicalPath() string  { return e.physicalPath }

// DriveEntry is a plain DriveRole implementation.
type DriveEntry struct {
	baseEntry
	driveType DriveType
	freeSpace int64
	totalSize int64
	label     string
	format    string
}

// NewDriveEntry builds a DriveEntry.
func NewDriveEntry(fs Backend, path Path, driveType DriveType, free, total int64, label, format string) *DriveEntry {
	return &DriveEntry{
		baseEntry: baseEntry{fs: fs, path: path},
		driveType: driveType,
		freeSpace: free,
		totalSize: total,
		label:     label,
		format:    format,
	}
}

func (e *DriveEntry) DriveType() DriveType { return e.driveType }
func (e *DriveEntry) FreeSpace() int64     { return e.freeSpace }
func (e *DriveEntry) TotalSize() int64     { return e.totalSize }
func (e *DriveEntry) Label() string        { return e.label }
func (e *DriveEntry) Format() string       { return e.format }

// MountEntry is synthesized by the composer for a mountpoint (spec.md
// §4.6 get_entry); it is always a directory and carries the live
// assignment list.
type MountEntry struct {
	baseEntry
	assignments []Assignment
}

// NewMountEntry builds a MountEntry.
func NewMountEntry(fs Backend, path Path, assignments []Assignment) *MountEntry {
	return &MountEntry{
		baseEntry:   baseEntry{fs: fs, path: path},
		assignments: assignments,
	}
}

func (e *MountEntry) IsDirectory() bool          { return true }
func (e *MountEntry) PhysicalPath() string       { return "" }
func (e *MountEntry) Assignments() []Assignment  { return e.assignments }

// entryWithNewFilesystem decorates an Entry, overriding its Filesystem.
// Mirrors worldiety/vfs's own path/fs re-identification done inline on
// namedEntry; here it is a single reusable decorator per
// Design Note "Decorated inheritance chains → composition + field
// overrides".
type entryWithNewFilesystem struct {
	Entry
	fs Backend
}

func (e entryWithNewFilesystem) Filesystem() Backend { return e.fs }

// EntryWithNewFilesystem re-publishes e as if produced by fs.
func EntryWithNewFilesystem(e Entry, fs Backend) Entry {
	return entryWithNewFilesystem{Entry: e, fs: fs}
}

type entryWithNewFilesystemAndPath struct {
	Entry
	fs   Backend
	path Path
}

func (e entryWithNewFilesystemAndPath) Filesystem() Backend { return e.fs }
func (e entryWithNewFilesystemAndPath) Path() Path           { return e.path }
func (e entryWithNewFilesystemAndPath) Name() string         { return e.path.Name() }

// EntryWithNewFilesystemAndPath re-publishes e under fs and path.
// *FileEntry, *DirectoryEntry and *MountEntry values are copied with the
// new filesystem and path, so they keep their role interfaces; an entry
// of any other type is wrapped and exposes only the Entry methods.
func EntryWithNewFilesystemAndPath(e Entry, fs Backend, path Path) Entry {
	switch v := e.(type) {
	case *FileEntry:
		c := *v
		c.fs, c.path = fs, path
		return &c
	case *DirectoryEntry:
		c := *v
		c.fs, c.path = fs, path
		return &c
	case *MountEntry:
		c := *v
		c.fs, c.path = fs, path
		return &c
	}
	return entryWithNewFilesystemAndPath{Entry: e, fs: fs, path: path}
}

type entryWithOptionModifier struct {
	Entry
	fs     Backend
	path   Path
	optMod Option
}

func (e entryWithOptionModifier) Filesystem() Backend { return e.fs }
func (e entryWithOptionModifier) Path() Path           { return e.path }
func (e entryWithOptionModifier) Name() string         { return e.path.Name() }

func (e entryWithOptionModifier) EntryOption() Option {
	var base Option
	if or, ok := e.Entry.(OptionRole); ok {
		base = or.EntryOption()
	}
	result, err := Intersection(e.optMod, base)
	if err != nil {
		return e.optMod
	}
	return result
}

// EntryWithNewFilesystemPathAndOptionModifier re-publishes e under fs
// and path, exposing an option that is the intersection of optMod and
// whatever option e itself already carried, per spec.md §4.2.
func EntryWithNewFilesystemPathAndOptionModifier(e Entry, fs Backend, path Path, optMod Option) Entry {
	return entryWithOptionModifier{Entry: e, fs: fs, path: path, optMod: optMod}
}

// MergedEntry takes field values from a (the primary), falling back to
// b's Entry fields where a leaves them zero, and exposes the union of
// both's role interfaces: probing for FileRole/DirectoryRole/etc. tries
// a first, then b. Grounds the composer's browse() duplicate-merge step
// (spec.md §4.6).
type MergedEntry struct {
	Primary   Entry
	Secondary Entry
}

func (m MergedEntry) Filesystem() Backend {
	if m.Primary != nil {
		return m.Primary.Filesystem()
	}
	return m.Secondary.Filesystem()
}

func (m MergedEntry) Path() Path {
	if m.Primary != nil {
		return m.Primary.Path()
	}
	return m.Secondary.Path()
}

func (m MergedEntry) Name() string {
	if m.Primary != nil {
		return m.Primary.Name()
	}
	return m.Secondary.Name()
}

func (m MergedEntry) LastModified() time.Time {
	if m.Primary != nil {
		if t := m.Primary.LastModified(); !t.IsZero() {
			return t
		}
	}
	if m.Secondary != nil {
		return m.Secondary.LastModified()
	}
	return time.Time{}
}

func (m MergedEntry) LastAccess() time.Time {
	if m.Primary != nil {
		if t := m.Primary.LastAccess(); !t.IsZero() {
			return t
		}
	}
	if m.Secondary != nil {
		return m.Secondary.LastAccess()
	}
	return time.Time{}
}

func (m MergedEntry) Length() int64 {
	if fr, ok := m.Primary.(FileRole); ok {
		if l := fr.Length(); l >= 0 {
			return l
		}
	}
	if fr, ok := m.Secondary.(FileRole); ok {
		return fr.Length()
	}
	return -1
}

func (m MergedEntry) FileAttributes() uint32 {
	if fr, ok := m.Primary.(FileRole); ok && fr.FileAttributes() != 0 {
		return fr.FileAttributes()
	}
	if fr, ok := m.Secondary.(FileRole); ok {
		return fr.FileAttributes()
	}
	return 0
}

func (m MergedEntry) PhysicalPath() string {
	if fr, ok := m.Primary.(interface{ PhysicalPath() string }); ok && fr.PhysicalPath() != "" {
		return fr.PhysicalPath()
	}
	if fr, ok := m.Secondary.(interface{ PhysicalPath() string }); ok {
		return fr.PhysicalPath()
	}
	return ""
}

func (m MergedEntry) IsDirectory() bool {
	if dr, ok := m.Primary.(DirectoryRole); ok {
		return dr.IsDirectory()
	}
	if dr, ok := m.Secondary.(DirectoryRole); ok {
		return dr.IsDirectory()
	}
	return false
}

// Assignments forwards MountRole, preferring the primary's.
func (m MergedEntry) Assignments() []Assignment {
	if mr, ok := m.Primary.(MountRole); ok {
		return mr.Assignments()
	}
	if mr, ok := m.Secondary.(MountRole); ok {
		return mr.Assignments()
	}
	return nil
}

// EntryOption forwards OptionRole, intersecting both sides when both
// carry one.
func (m MergedEntry) EntryOption() Option {
	primaryOpt, primaryOK := m.Primary.(OptionRole)
	secondaryOpt, secondaryOK := m.Secondary.(OptionRole)
	switch {
	case primaryOK && secondaryOK:
		merged, err := Intersection(primaryOpt.EntryOption(), secondaryOpt.EntryOption())
		if err != nil {
			return primaryOpt.EntryOption()
		}
		return merged
	case primaryOK:
		return primaryOpt.EntryOption()
	case secondaryOK:
		return secondaryOpt.EntryOption()
	default:
		return nil
	}
}
