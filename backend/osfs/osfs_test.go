package osfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldiety/cvfs"
)

func TestOpenWriteReadRoundTrip(t *testing.T) {
	b := New(t.TempDir())
	ctx := context.Background()

	res, err := b.Open(ctx, "/f.txt", cvfs.OpenCreateNew, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	_, err = res.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, res.Close())

	readRes, err := b.Open(ctx, "/f.txt", cvfs.OpenExisting, cvfs.AccessRead, cvfs.ShareRead, nil)
	require.NoError(t, err)
	defer readRes.Close()
	buf := make([]byte, 5)
	n, err := readRes.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestOpenRetriesAfterMissingParentDirectory(t *testing.T) {
	b := New(t.TempDir())
	ctx := context.Background()

	res, err := b.Open(ctx, "/a/b/c.txt", cvfs.OpenCreate, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	_, err = res.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, res.Close())

	e, err := b.GetEntry(ctx, "/a/b/c.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "c.txt", e.Name())
}

func TestOpenExistingDoesNotCreateParent(t *testing.T) {
	b := New(t.TempDir())
	ctx := context.Background()

	_, err := b.Open(ctx, "/missing/c.txt", cvfs.OpenExisting, cvfs.AccessRead, cvfs.ShareRead, nil)
	assert.True(t, cvfs.IsCode(err, cvfs.CodeNotFound))
}

func TestBrowseAndGetEntryReflectDiskState(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("payload"), 0o644))

	b := New(root)
	ctx := context.Background()

	content, err := b.Browse(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, content.Entries, 2)

	e, err := b.GetEntry(ctx, "/f.txt", nil)
	require.NoError(t, err)
	fr, ok := e.(cvfs.FileRole)
	require.True(t, ok)
	assert.Equal(t, int64(len("payload")), fr.Length())
}

func TestDeleteRefusesNonEmptyDirectoryWithoutRecurse(t *testing.T) {
	b := New(t.TempDir())
	ctx := context.Background()
	require.NoError(t, b.CreateDirectory(ctx, "/dir/", nil))
	res, err := b.Open(ctx, "/dir/f.txt", cvfs.OpenCreateNew, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	require.NoError(t, res.Close())

	err = b.Delete(ctx, "/dir/", false, nil)
	assert.True(t, cvfs.IsCode(err, cvfs.CodeNotEmpty))

	require.NoError(t, b.Delete(ctx, "/dir/", true, nil))
	_, err = b.GetEntry(ctx, "/dir/", nil)
	assert.True(t, cvfs.IsCode(err, cvfs.CodeNotFound))
}

func TestMoveFallsBackToDeleteThenRenameOverExistingDestination(t *testing.T) {
	b := New(t.TempDir())
	ctx := context.Background()

	res, err := b.Open(ctx, "/a.txt", cvfs.OpenCreateNew, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	_, err = res.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, res.Close())

	require.NoError(t, b.CreateDirectory(ctx, "/dst/", nil))

	require.NoError(t, b.Move(ctx, "/a.txt", "/dst", nil))
	_, err = b.GetEntry(ctx, "/a.txt", nil)
	assert.True(t, cvfs.IsCode(err, cvfs.CodeNotFound))
}

func TestObserveReportsWriteAsChangeEvent(t *testing.T) {
	b := New(t.TempDir())
	ctx := context.Background()

	res, err := b.Open(ctx, "/watched.txt", cvfs.OpenCreateNew, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	require.NoError(t, res.Close())

	kinds := make(chan cvfs.EventKind, 8)
	filter := cvfs.MustCompileFilter("/*.txt")
	dispatcher := cvfs.NewInlineDispatcher()
	_, err = b.Observe(filter, func(ev cvfs.Event) {
		kinds <- ev.Kind()
	}, nil, nil, dispatcher, nil)
	require.NoError(t, err)

	rw, err := b.Open(ctx, "/watched.txt", cvfs.OpenExisting, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	_, err = rw.Write([]byte("changed"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	select {
	case k := <-kinds:
		assert.Equal(t, cvfs.EventChange, k)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestCapabilitiesAdvertiseFullSupport(t *testing.T) {
	b := New(t.TempDir())
	caps := b.Capabilities()
	for _, k := range []cvfs.Kind{cvfs.KindBrowse, cvfs.KindOpen, cvfs.KindRead, cvfs.KindWrite, cvfs.KindCreate, cvfs.KindDelete, cvfs.KindMove, cvfs.KindObserve} {
		assert.True(t, cvfs.CapabilityEnabled(caps, k))
	}
}
