package chroot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldiety/cvfs"
	"github.com/worldiety/cvfs/backend/mem"
)

func TestBrowseTranslatesPathsBothWays(t *testing.T) {
	ctx := context.Background()
	delegate := mem.New()
	require.NoError(t, delegate.CreateDirectory(ctx, "/data/", nil))
	res, err := delegate.Open(ctx, "/data/f.txt", cvfs.OpenCreateNew, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	require.NoError(t, res.Close())

	root := New("/data", delegate)

	content, err := root.Browse(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, content.Entries, 1)
	assert.Equal(t, Path("f.txt"), Path(content.Entries[0].Name()))

	e, err := root.GetEntry(ctx, "/f.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, Path("/f.txt"), e.Path())
}

type Path = cvfs.Path

func TestOpenDelegatesUnderPrefix(t *testing.T) {
	ctx := context.Background()
	delegate := mem.New()
	require.NoError(t, delegate.CreateDirectory(ctx, "/sandbox/", nil))
	root := New("/sandbox", delegate)

	res, err := root.Open(ctx, "/new.txt", cvfs.OpenCreateNew, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	_, err = res.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, res.Close())

	_, err = delegate.GetEntry(ctx, "/sandbox/new.txt", nil)
	require.NoError(t, err)
	_, err = delegate.GetEntry(ctx, "/new.txt", nil)
	assert.True(t, cvfs.IsCode(err, cvfs.CodeNotFound))
}

func TestReshapeSubPathComposesPrefixes(t *testing.T) {
	delegate := mem.New()
	root := New("/a", delegate)
	narrowed := root.ReshapeSubPath("/b")

	ch, ok := narrowed.(*Backend)
	require.True(t, ok)
	assert.Equal(t, Path("/a/b"), ch.Prefix)
}

func TestObserveRewritesEventPathsOutOfPrefix(t *testing.T) {
	ctx := context.Background()
	delegate := mem.New()
	require.NoError(t, delegate.CreateDirectory(ctx, "/sandbox/", nil))
	root := New("/sandbox", delegate)

	var paths []Path
	filter := cvfs.MustCompileFilter("/*.txt")
	dispatcher := cvfs.NewInlineDispatcher()
	_, err := root.Observe(filter, func(ev cvfs.Event) {
		if pe, ok := ev.(interface{ Path() cvfs.Path }); ok {
			paths = append(paths, pe.Path())
		}
	}, nil, nil, dispatcher, nil)
	require.NoError(t, err)

	res, err := delegate.Open(ctx, "/sandbox/note.txt", cvfs.OpenCreateNew, cvfs.AccessWrite, cvfs.ShareNone, nil)
	require.NoError(t, err)
	_, err = res.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, res.Close())

	require.Contains(t, paths, Path("/note.txt"))
}

func TestDeleteDelegatesUnderPrefix(t *testing.T) {
	ctx := context.Background()
	delegate := mem.New()
	require.NoError(t, delegate.CreateDirectory(ctx, "/sandbox/", nil))
	root := New("/sandbox", delegate)

	require.NoError(t, root.CreateDirectory(ctx, "/dir/", nil))
	_, err := delegate.GetEntry(ctx, "/sandbox/dir/", nil)
	require.NoError(t, err)

	require.NoError(t, root.Delete(ctx, "/dir/", false, nil))
	_, err = delegate.GetEntry(ctx, "/sandbox/dir/", nil)
	assert.True(t, cvfs.IsCode(err, cvfs.CodeNotFound))
}
