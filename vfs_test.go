package cvfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingDisposable struct{ n *int }

func (d countingDisposable) Dispose() { *d.n++ }

func TestVFSDisposeReleasesOwnedResourcesInReverseOrder(t *testing.T) {
	v := New()
	var order []int
	v.AddDisposeAction(func() { order = append(order, 1) })
	v.AddDisposeAction(func() { order = append(order, 2) })
	v.AddDisposeAction(func() { order = append(order, 3) })

	assert.False(t, v.IsDisposed())
	v.Dispose()

	assert.True(t, v.IsDisposed())
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestVFSDisposeIsIdempotent(t *testing.T) {
	v := New()
	n := 0
	v.AddDisposable(countingDisposable{n: &n})

	v.Dispose()
	v.Dispose()

	assert.Equal(t, 1, n)
}

func TestVFSAddDisposableAfterDisposeReleasesImmediately(t *testing.T) {
	v := New()
	v.Dispose()

	n := 0
	v.AddDisposable(countingDisposable{n: &n})
	assert.Equal(t, 1, n)
}

func TestVFSBelateDisposePostponesTeardown(t *testing.T) {
	v := New()
	n := 0
	v.AddDisposable(countingDisposable{n: &n})

	handle := v.BelateDispose()
	v.Dispose()
	assert.False(t, v.IsDisposed())
	assert.Equal(t, 0, n)

	handle.Dispose()
	assert.True(t, v.IsDisposed())
	assert.Equal(t, 1, n)
}
