package cvfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubBackend struct{ name string }

func (s stubBackend) Capabilities() Option { return nil }

func TestFileEntryRoles(t *testing.T) {
	fs := stubBackend{name: "a"}
	now := time.Now()
	e := NewFileEntry(fs, "/a/b.txt", 42, 0, "", now, now)

	var _ Entry = e
	var _ FileRole = e
	assert.Equal(t, int64(42), e.Length())
	assert.Equal(t, "b.txt", e.Name())
}

func TestEntryWithNewFilesystemAndPath(t *testing.T) {
	fsA := stubBackend{name: "a"}
	fsB := stubBackend{name: "b"}
	now := time.Now()
	inner := NewFileEntry(fsA, "/src/f", 1, 0, "", now, now)

	rewritten := EntryWithNewFilesystemAndPath(inner, fsB, "/dst/f")
	assert.Equal(t, fsB, rewritten.Filesystem())
	assert.Equal(t, Path("/dst/f"), rewritten.Path())
	assert.Equal(t, "f", rewritten.Name())

	fr, ok := rewritten.(FileRole)
	assert.True(t, ok)
	assert.Equal(t, int64(1), fr.Length())
}

func TestMergedEntryPrecedenceAndFallback(t *testing.T) {
	fs := stubBackend{}
	now := time.Now()
	primary := NewFileEntry(fs, "/a/f", -1, 0, "", time.Time{}, time.Time{})
	secondary := NewFileEntry(fs, "/a/f", 99, 7, "", now, now)

	merged := MergedEntry{Primary: primary, Secondary: secondary}
	assert.Equal(t, int64(99), merged.Length())
	assert.Equal(t, uint32(7), merged.FileAttributes())
	assert.Equal(t, now, merged.LastModified())
}

func TestMergedEntryAssignmentsForwarding(t *testing.T) {
	fs := stubBackend{}
	assignments := []Assignment{{Backend: fs}}
	mount := NewMountEntry(fs, "/m/", assignments)
	other := NewFileEntry(fs, "/m/f", 1, 0, "", time.Time{}, time.Time{})

	merged := MergedEntry{Primary: other, Secondary: mount}
	assert.Equal(t, assignments, merged.Assignments())
}
