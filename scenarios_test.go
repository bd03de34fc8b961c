package cvfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldiety/cvfs/backend/mem"
)

// TestScenarioEmptyVFS covers spec.md §8 concrete scenario 1.
func TestScenarioEmptyVFS(t *testing.T) {
	v := New()

	root, err := v.GetEntry(context.Background(), "", nil)
	require.NoError(t, err)
	_, ok := root.(DirectoryRole)
	assert.True(t, ok)

	content, err := v.Browse(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Empty(t, content.Entries)

	_, err = v.Browse(context.Background(), "anything/", nil)
	assert.True(t, IsCode(err, CodeNotFound))
}

// TestScenarioLayeredMount covers spec.md §8 concrete scenario 2.
func TestScenarioLayeredMount(t *testing.T) {
	v := New()
	ram := mem.New()
	ramPrime := mem.New()

	require.NoError(t, v.Mount(context.Background(), "/", []Assignment{{Backend: ram, Option: ram.Capabilities()}}, nil))
	require.NoError(t, v.Mount(context.Background(), "/tmp/", []Assignment{{Backend: ramPrime, Option: ramPrime.Capabilities()}}, nil))

	writeMemFile(t, ramPrime, "/a", []byte("from-prime"))

	content, err := v.Browse(context.Background(), "/tmp/", nil)
	require.NoError(t, err)
	require.Len(t, content.Entries, 1)
	assert.Equal(t, "a", content.Entries[0].Name())

	require.NoError(t, ram.CreateDirectory(context.Background(), "/tmp/", nil))
	writeMemFile(t, ram, "/tmp/b", []byte("from-ram"))

	content, err = v.Browse(context.Background(), "/tmp/", nil)
	require.NoError(t, err)
	names := map[string]Entry{}
	for _, e := range content.Entries {
		names[e.Name()] = e
	}
	require.Contains(t, names, "a")
	require.Contains(t, names, "b")

	a, ok := names["a"].(FileRole)
	require.True(t, ok)
	assert.Equal(t, int64(len("from-prime")), a.Length())
}

// TestScenarioObserverUnderMount covers spec.md §8 concrete scenario 3.
func TestScenarioObserverUnderMount(t *testing.T) {
	v := New()
	ram := mem.New()
	require.NoError(t, ram.CreateDirectory(context.Background(), "/dir/", nil))
	writeMemFile(t, ram, "/dir/file.txt", []byte("x"))
	writeMemFile(t, ram, "/dir/file.dat", []byte("x"))

	var kinds []EventKind
	var created []Path
	dispatcher := NewInlineDispatcher()
	filter := MustCompileFilter("/dir/*.txt")
	_, err := v.Observe(filter, func(ev Event) {
		kinds = append(kinds, ev.Kind())
		if ev.Kind() == EventCreate {
			created = append(created, ev.(PathEvent).Path())
		}
	}, nil, nil, dispatcher, nil)
	require.NoError(t, err)

	require.NoError(t, v.Mount(context.Background(), "", []Assignment{{Backend: ram, Option: ram.Capabilities()}}, nil))

	require.GreaterOrEqual(t, len(kinds), 3)
	assert.Equal(t, EventStart, kinds[0])
	assert.Equal(t, EventMount, kinds[1])
	assert.Equal(t, EventCreate, kinds[2])
	assert.Equal(t, []Path{"/dir/file.txt"}, created)

	require.NoError(t, v.Unmount(context.Background(), "", nil))

	last := kinds[len(kinds)-2:]
	assert.Equal(t, EventDelete, last[0])
	assert.Equal(t, EventUnmount, last[1])
}

// TestScenarioCopyTree covers spec.md §8 concrete scenario 4.
func TestScenarioCopyTree(t *testing.T) {
	v, _ := vfsWithMem(t)
	require.NoError(t, v.CreateDirectory(context.Background(), "/a/", nil))
	require.NoError(t, v.CreateDirectory(context.Background(), "/a/b/", nil))
	writeFile(t, v, "/a/b/c.txt", []byte("hi"))

	session := NewSession(Policy{}, NewBlockPool(1024, 64), 0)
	op := v.NewCopyTreeOp(session, "/a/", "/dst/a/", PolicyOverride{})

	require.NoError(t, op.Estimate(context.Background()))
	assert.GreaterOrEqual(t, op.Progress().Total, int64(3))

	require.NoError(t, op.Run(context.Background()))
	assert.Equal(t, []byte("hi"), readFile(t, v, "/dst/a/b/c.txt"))

	rb, err := op.Rollback(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rb)
	require.NoError(t, rb.Run(context.Background()))

	_, err = v.GetEntry(context.Background(), "/dst/a/", nil)
	assert.True(t, IsCode(err, CodeNotFound))
}

// TestScenarioQuotaExhaustion covers spec.md §8 concrete scenario 5.
func TestScenarioQuotaExhaustion(t *testing.T) {
	v, _ := vfsWithMem(t)
	content := make([]byte, 3072)
	writeFile(t, v, "/src.bin", content)

	rollback := RollbackEnabled
	session := NewSession(Policy{}, NewBlockPool(1024, 2), 0)
	op := v.NewCopyFileOp(session, "/src.bin", "/dst.bin", PolicyOverride{Rollback: &rollback})

	err := op.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeOutOfDiskSpace))

	_, err = v.GetEntry(context.Background(), "/dst.bin", nil)
	assert.True(t, IsCode(err, CodeNotFound))
}

// TestScenarioSubPathOption covers spec.md §8 concrete scenario 6.
func TestScenarioSubPathOption(t *testing.T) {
	v := New()
	be := mem.New()
	require.NoError(t, be.CreateDirectory(context.Background(), "/opt/", nil))
	require.NoError(t, be.CreateDirectory(context.Background(), "/opt/app/", nil))
	writeMemFile(t, be, "/opt/app/config.ini", []byte("answer=42"))

	assignmentOption, err := OptionComposition(CompositionKeepLast,
		be.Capabilities(),
		SubPathOption{Path: "/opt/app/"},
	)
	require.NoError(t, err)

	require.NoError(t, v.Mount(context.Background(), "/app/", []Assignment{{Backend: be, Option: assignmentOption}}, nil))

	res, err := v.Open(context.Background(), "/app/config.ini", OpenExisting, AccessRead, ShareRead, nil)
	require.NoError(t, err)
	defer res.Close()

	buf := make([]byte, 16)
	n, _ := res.Read(buf)
	assert.Equal(t, "answer=42", string(buf[:n]))
}
