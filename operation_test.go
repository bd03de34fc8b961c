package cvfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldiety/cvfs/backend/mem"
)

func vfsWithMem(t *testing.T) (*VFS, *mem.Backend) {
	t.Helper()
	v := New()
	be := mem.New()
	err := v.Mount(context.Background(), "/", []Assignment{{Backend: be, Option: be.Capabilities()}}, nil)
	require.NoError(t, err)
	return v, be
}

func writeFile(t *testing.T, v *VFS, path Path, content []byte) {
	t.Helper()
	res, err := v.Open(context.Background(), path, OpenCreateNew, AccessWrite, ShareNone, nil)
	require.NoError(t, err)
	_, err = res.Write(content)
	require.NoError(t, err)
	require.NoError(t, res.Close())
}

func readFile(t *testing.T, v *VFS, path Path) []byte {
	t.Helper()
	res, err := v.Open(context.Background(), path, OpenExisting, AccessRead, ShareRead, nil)
	require.NoError(t, err)
	defer res.Close()
	buf := make([]byte, 0, 64)
	chunk := make([]byte, 64)
	for {
		n, err := res.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return buf
}

// TestCopyFileByteEqualityAndMonotonicProgress covers spec.md §8 invariant
// 3: a completed CopyFile leaves Dst byte-for-byte equal to Src, and
// Progress().Done only ever increases, ending at Progress().Total.
func TestCopyFileByteEqualityAndMonotonicProgress(t *testing.T) {
	v, _ := vfsWithMem(t)
	content := []byte("the quick brown fox jumps over the lazy dog")
	writeFile(t, v, "/src.txt", content)

	session := NewSession(Policy{}, NewBlockPool(8, 64), 0)
	op := v.NewCopyFileOp(session, "/src.txt", "/dst.txt", PolicyOverride{})

	var seenDone []int64
	session.Subscribe(func(ev OperationEvent) {
		if ev.Op == Operation(op) {
			seenDone = append(seenDone, ev.Progress.Done)
		}
	})

	require.NoError(t, op.Run(context.Background()))
	assert.Equal(t, StateCompleted, op.State())

	for i := 1; i < len(seenDone); i++ {
		assert.GreaterOrEqual(t, seenDone[i], seenDone[i-1])
	}

	progress := op.Progress()
	assert.Equal(t, progress.Total, progress.Done)
	assert.Equal(t, content, readFile(t, v, "/dst.txt"))
}

// TestCopyFileQuotaExhaustion covers spec.md §8 scenario 5: a 2-block
// pool of 1024 bytes each cannot satisfy a 3072-byte copy, the copy
// fails with CodeOutOfDiskSpace, and the destination it created is
// rolled back.
func TestCopyFileQuotaExhaustion(t *testing.T) {
	v, _ := vfsWithMem(t)
	content := make([]byte, 3072)
	for i := range content {
		content[i] = byte(i % 256)
	}
	writeFile(t, v, "/src.bin", content)

	rollback := RollbackEnabled
	session := NewSession(Policy{}, NewBlockPool(1024, 2), 0)
	op := v.NewCopyFileOp(session, "/src.bin", "/dst.bin", PolicyOverride{Rollback: &rollback})

	err := op.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeOutOfDiskSpace))
	assert.Equal(t, StateError, op.State())

	_, getErr := v.GetEntry(context.Background(), "/dst.bin", nil)
	assert.True(t, IsCode(getErr, CodeNotFound))
}

// TestCopyFileRollbackSparesOverwrittenDestination locks in that
// rollback never deletes a destination the operation did not itself
// create (spec.md §8 scenario 5).
func TestCopyFileRollbackSparesOverwrittenDestination(t *testing.T) {
	v, _ := vfsWithMem(t)
	writeFile(t, v, "/src.txt", []byte("new"))
	writeFile(t, v, "/dst.txt", []byte("old"))

	overwrite := DestinationOverwrite
	session := NewSession(Policy{}, NewBlockPool(1024, 64), 0)
	op := v.NewCopyFileOp(session, "/src.txt", "/dst.txt", PolicyOverride{Destination: &overwrite})
	require.NoError(t, op.Run(context.Background()))

	rb, err := op.Rollback(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rb)
}

// TestBatchStopsAtFirstErrorWithoutContinueFlag covers spec.md §8
// invariant 4: with FlagBatchContinueOnError unset, a failing child
// stops the batch, leaving earlier children Completed, the failing child
// Error, and later children Initialized.
func TestBatchStopsAtFirstErrorWithoutContinueFlag(t *testing.T) {
	v, _ := vfsWithMem(t)

	ok1 := v.NewCreateDirectoryOp(nil, "/a", PolicyOverride{})
	bad := v.NewCopyFileOp(nil, "/missing-src", "/dst", PolicyOverride{})
	ok2 := v.NewCreateDirectoryOp(nil, "/b", PolicyOverride{})

	session := NewSession(Policy{}, nil, 0)
	batch := v.NewBatchOp(session, []Operation{ok1, bad, ok2}, PolicyOverride{})

	err := batch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateCompleted, ok1.State())
	assert.Equal(t, StateError, bad.State())
	assert.Equal(t, StateInitialized, ok2.State())
	assert.Equal(t, StateError, batch.State())
}

// TestBatchContinueOnErrorFlag covers the FlagBatchContinueOnError case:
// every child runs regardless of earlier failures, and the batch's own
// error aggregates every failure.
func TestBatchContinueOnErrorFlag(t *testing.T) {
	v, _ := vfsWithMem(t)

	ok1 := v.NewCreateDirectoryOp(nil, "/a", PolicyOverride{})
	bad := v.NewCopyFileOp(nil, "/missing-src", "/dst", PolicyOverride{})
	ok2 := v.NewCreateDirectoryOp(nil, "/b", PolicyOverride{})

	session := NewSession(Policy{Flags: FlagBatchContinueOnError}, nil, 0)
	batch := v.NewBatchOp(session, []Operation{ok1, bad, ok2}, PolicyOverride{})

	err := batch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateCompleted, ok1.State())
	assert.Equal(t, StateError, bad.State())
	assert.Equal(t, StateCompleted, ok2.State())
}

// TestCreateDirectoryRollbackOrdering covers the round-trip property
// that rolling back a CreateDirectoryOp which created several missing
// ancestors removes them leaf-first and restores the pre-operation tree.
func TestCreateDirectoryRollbackOrdering(t *testing.T) {
	v, _ := vfsWithMem(t)

	rollback := RollbackEnabled
	op := v.NewCreateDirectoryOp(nil, "/a/b/c", PolicyOverride{Rollback: &rollback})
	require.NoError(t, op.Run(context.Background()))
	assert.Equal(t, StateCompleted, op.State())

	_, err := v.GetEntry(context.Background(), "/a/b/c/", nil)
	require.NoError(t, err)

	rb, err := op.Rollback(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rb)
	require.NoError(t, rb.Run(context.Background()))

	_, err = v.GetEntry(context.Background(), "/a/", nil)
	assert.True(t, IsCode(err, CodeNotFound))
}

// TestCopyTreeFlattensIntoChildren covers CopyTreeOp composing
// CreateDirectoryOp/CopyFileOp children and preserving directory
// structure and file bytes.
func TestCopyTreeFlattensIntoChildren(t *testing.T) {
	v, _ := vfsWithMem(t)
	require.NoError(t, v.CreateDirectory(context.Background(), "/src/", nil))
	require.NoError(t, v.CreateDirectory(context.Background(), "/src/sub/", nil))
	writeFile(t, v, "/src/a.txt", []byte("aaa"))
	writeFile(t, v, "/src/sub/b.txt", []byte("bbb"))

	session := NewSession(Policy{}, NewBlockPool(1024, 64), 0)
	op := v.NewCopyTreeOp(session, "/src/", "/dst/", PolicyOverride{})

	require.NoError(t, op.Run(context.Background()))
	assert.Equal(t, StateCompleted, op.State())

	assert.Equal(t, []byte("aaa"), readFile(t, v, "/dst/a.txt"))
	assert.Equal(t, []byte("bbb"), readFile(t, v, "/dst/sub/b.txt"))
}

// TestMoveThenCopyFileRoundTrip covers the round-trip property that
// Move followed by a subsequent CopyFile of the moved file back to the
// original location preserves byte content.
func TestMoveThenCopyFileRoundTrip(t *testing.T) {
	v, _ := vfsWithMem(t)
	content := []byte("round trip payload")
	writeFile(t, v, "/a.txt", content)

	session := NewSession(Policy{}, NewBlockPool(1024, 64), 0)
	move := v.NewMoveOp(session, "/a.txt", "/b.txt", PolicyOverride{})
	require.NoError(t, move.Run(context.Background()))
	assert.Equal(t, content, readFile(t, v, "/b.txt"))

	back := v.NewCopyFileOp(session, "/b.txt", "/a.txt", PolicyOverride{})
	require.NoError(t, back.Run(context.Background()))
	assert.Equal(t, content, readFile(t, v, "/a.txt"))
}
