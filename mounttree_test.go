package cvfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldiety/cvfs/backend/mem"
)

// TestSubscriptionStartPrecedesEverything covers spec.md §8 invariant 2:
// exactly one Start event is delivered before any other event on a
// subscription.
func TestSubscriptionStartPrecedesEverything(t *testing.T) {
	v := New()
	be := mem.New()

	var kinds []EventKind
	dispatcher := NewInlineDispatcher()
	filter := MustCompileFilter("/**")
	_, err := v.Observe(filter, func(ev Event) {
		kinds = append(kinds, ev.Kind())
	}, nil, nil, dispatcher, nil)
	require.NoError(t, err)

	require.NoError(t, v.Mount(context.Background(), "/", []Assignment{{Backend: be, Option: be.Capabilities()}}, nil))
	require.NoError(t, v.CreateDirectory(context.Background(), "/d/", nil))

	require.NotEmpty(t, kinds)
	assert.Equal(t, EventStart, kinds[0])
	startCount := 0
	for _, k := range kinds {
		if k == EventStart {
			startCount++
		}
	}
	assert.Equal(t, 1, startCount)
}

// TestMountSynthesizesCreateForPreExistingEntries covers spec.md §8
// invariant 1: mounting a back-end that already has content dispatches
// a Create event for every entry an interested subscriber has not seen
// yet, by the time Mount returns.
func TestMountSynthesizesCreateForPreExistingEntries(t *testing.T) {
	v := New()
	be := mem.New()
	require.NoError(t, be.CreateDirectory(context.Background(), "/sub/", nil))
	res, err := be.Open(context.Background(), "/pre.txt", OpenCreateNew, AccessWrite, ShareNone, nil)
	require.NoError(t, err)
	_, err = res.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, res.Close())

	var created []Path
	dispatcher := NewInlineDispatcher()
	filter := MustCompileFilter("/**")
	_, err = v.Observe(filter, func(ev Event) {
		if ev.Kind() == EventCreate {
			created = append(created, ev.(PathEvent).Path())
		}
	}, nil, nil, dispatcher, nil)
	require.NoError(t, err)

	require.NoError(t, v.Mount(context.Background(), "/", []Assignment{{Backend: be, Option: be.Capabilities()}}, nil))

	assert.Contains(t, created, Path("/pre.txt"))
	assert.Contains(t, created, Path("/sub/"))

	preCount := 0
	for _, p := range created {
		if p == Path("/pre.txt") {
			preCount++
		}
	}
	assert.Equal(t, 1, preCount)
}

// TestUnmountEmitsDeleteThenUnmount covers spec.md §8 invariant 6:
// unmounting emits Delete for every entry the subscriber had been shown,
// followed by Unmount, and GetEntry on the vacated path fails afterward.
func TestUnmountEmitsDeleteThenUnmount(t *testing.T) {
	v := New()
	be := mem.New()
	res, err := be.Open(context.Background(), "/f.txt", OpenCreateNew, AccessWrite, ShareNone, nil)
	require.NoError(t, err)
	require.NoError(t, res.Close())

	var kinds []EventKind
	var deletedPaths []Path
	dispatcher := NewInlineDispatcher()
	filter := MustCompileFilter("/**")
	_, err = v.Observe(filter, func(ev Event) {
		kinds = append(kinds, ev.Kind())
		if ev.Kind() == EventDelete {
			deletedPaths = append(deletedPaths, ev.(PathEvent).Path())
		}
	}, nil, nil, dispatcher, nil)
	require.NoError(t, err)

	require.NoError(t, v.Mount(context.Background(), "/", []Assignment{{Backend: be, Option: be.Capabilities()}}, nil))
	require.NoError(t, v.Unmount(context.Background(), "/", nil))

	assert.Contains(t, deletedPaths, Path("/f.txt"))

	deleteIdx, unmountIdx := -1, -1
	for i, k := range kinds {
		if k == EventDelete && deleteIdx == -1 {
			deleteIdx = i
		}
		if k == EventUnmount {
			unmountIdx = i
		}
	}
	require.NotEqual(t, -1, deleteIdx)
	require.NotEqual(t, -1, unmountIdx)
	assert.Less(t, deleteIdx, unmountIdx)

	_, err = v.GetEntry(context.Background(), "/f.txt", nil)
	assert.True(t, IsCode(err, CodeNotFound))
}

// TestMountUnmountRoundTripRestoresTree covers the round-trip property
// that mounting then unmounting a back-end leaves the tree with no
// remaining mountpoints or intermediate nodes.
func TestMountUnmountRoundTripRestoresTree(t *testing.T) {
	tree := NewMountTree()
	be := mem.New()

	before := tree.AllMountpoints()
	assert.Empty(t, before)

	require.NoError(t, tree.Mount(context.Background(), "/a/b/", []Assignment{{Backend: be, Option: be.Capabilities()}}, nil))
	assert.NotEmpty(t, tree.AllMountpoints())

	require.NoError(t, tree.Unmount(context.Background(), "/a/b/", nil))
	after := tree.AllMountpoints()
	assert.Empty(t, after)

	assert.Empty(t, tree.ChildMountpoints(""))
}

// TestSubscriptionOnCompletedFiresExactlyOnce covers spec.md §8
// invariant 2's other half: OnCompleted fires exactly once, after
// disposal, even if Dispose is called more than once.
func TestSubscriptionOnCompletedFiresExactlyOnce(t *testing.T) {
	completions := 0
	sub := NewSubscription("", MustCompileFilter("/**"), func(Event) {}, func() {
		completions++
	}, NewInlineDispatcher(), nil, nil)

	sub.Dispose()
	sub.Dispose()

	assert.Equal(t, 1, completions)
	assert.True(t, sub.IsDisposed())
}
