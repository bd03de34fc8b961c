package cvfs

import "context"

// Visitor is called once per entry during Walk. Returning an error
// aborts the walk with that error.
type Visitor func(entry Entry) error

// walkBrowser is the minimal capability Walk needs: anything exposing
// Browse, which Composer, VFS and a raw Backend all satisfy.
type walkBrowser interface {
	Browse(ctx context.Context, path Path, option Option) (*DirectoryContent, error)
}

// Walk recursively visits every descendant of root reachable through
// Browse (root itself is not visited), pre-order (a directory before
// its children), mirroring
// worldiety/vfs's own Walk/ReadDirs helpers generalized from a single
// concrete FileSystem to anything exposing Browse (Composer, VFS, or a
// raw Backend). A directory entry whose own path repeats an ancestor
// already open on the current branch is rejected with
// CodeCycleDetected instead of being descended into, guarding against a
// back-end (e.g. a Composer mounted as its own descendant) that would
// otherwise recurse forever (spec.md §4.8.4 "children that would be
// their own ancestor").
func Walk(ctx context.Context, b walkBrowser, root Path, visit Visitor) error {
	return walkTree(ctx, b, root, visit, nil, map[Path]bool{})
}

func walkTree(ctx context.Context, b walkBrowser, root Path, visit Visitor, descend func(Entry) bool, ancestors map[Path]bool) error {
	dirPath := root.AsDir()
	if ancestors[dirPath] {
		return errCycle("Walk", dirPath)
	}
	content, err := b.Browse(ctx, dirPath, nil)
	if err != nil {
		return err
	}
	ancestors[dirPath] = true
	defer delete(ancestors, dirPath)
	for _, e := range content.Entries {
		if err := visit(e); err != nil {
			return err
		}
		dr, ok := e.(DirectoryRole)
		if !ok || !dr.IsDirectory() {
			continue
		}
		if descend != nil && !descend(e) {
			continue
		}
		if err := walkTree(ctx, b, e.Path(), visit, descend, ancestors); err != nil {
			return err
		}
	}
	return nil
}

// walkedEntry pairs a discovered entry with its path relative to the
// tree root being walked, used by CopyTreeOp/TransferTreeOp/DeleteTreeOp
// to translate between a source tree and its destination counterpart.
type walkedEntry struct {
	entry   Entry
	relPath Path
	isDir   bool
}

// collectTree walks root and returns every descendant paired with its
// path relative to root, pre-order. If omitMounted is set, entries that
// are themselves mountpoint roots are excluded from the result and
// never descended into, per spec.md §4.8.4's omit_mounted_packages
// flag.
func collectTree(ctx context.Context, vfs *VFS, root Path, omitMounted bool) ([]walkedEntry, error) {
	isMountRoot := func(e Entry) bool {
		return vfs.tree.AssignmentsAt(e.Path()) != nil
	}
	var out []walkedEntry
	err := walkTree(ctx, vfs, root, func(e Entry) error {
		if omitMounted && isMountRoot(e) {
			return nil
		}
		isDir := false
		if dr, ok := e.(DirectoryRole); ok {
			isDir = dr.IsDirectory()
		}
		out = append(out, walkedEntry{entry: e, relPath: e.Path().TrimPrefix(root), isDir: isDir})
		return nil
	}, func(e Entry) bool {
		return !omitMounted || !isMountRoot(e)
	}, map[Path]bool{})
	return out, err
}
