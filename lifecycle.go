package cvfs

import (
	"sync"
	"sync/atomic"
)

// Disposable is anything that owns a resource requiring explicit
// release, playing the role worldiety/vfs's Cancelable plays for
// cancellation; Lifecycle generalizes the same atomic
// compare-and-swap-guarded one-shot release pattern to arbitrary owned
// resources (spec.md §5 "Scoped resource management", §4.9).
type Disposable interface {
	Dispose()
}

// DisposeAction adapts a plain func() into a Disposable.
type DisposeAction func()

func (a DisposeAction) Dispose() { a() }

// Lifecycle is a scope that owns zero or more Disposables and releases
// them, in reverse registration order, exactly once. A VFS holds one
// for the resources it owns (spec.md §5).
type Lifecycle struct {
	mu               sync.Mutex
	disposables      []Disposable
	disposed         int32
	belateCount      int32
	disposeRequested int32
}

// NewLifecycle builds an empty Lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// AddDisposable registers d for release when the Lifecycle is
// disposed. If the Lifecycle has already been disposed, d is released
// immediately instead, the same as worldiety/vfs's
// DefaultCancelable.Add: a resource handed in after teardown is never
// silently dropped.
func (l *Lifecycle) AddDisposable(d Disposable) {
	if d == nil {
		return
	}
	l.mu.Lock()
	if atomic.LoadInt32(&l.disposed) != 0 {
		l.mu.Unlock()
		d.Dispose()
		return
	}
	l.disposables = append(l.disposables, d)
	l.mu.Unlock()
}

// AddDisposeAction registers f to run at release time.
func (l *Lifecycle) AddDisposeAction(f func()) {
	l.AddDisposable(DisposeAction(f))
}

// Dispose releases every registered Disposable in reverse order,
// exactly once, unless outstanding belate-dispose handles postpone it
// (spec.md §5, Design Note "Belate-dispose → reference-counted
// disposal").
func (l *Lifecycle) Dispose() {
	if atomic.LoadInt32(&l.belateCount) > 0 {
		atomic.StoreInt32(&l.disposeRequested, 1)
		return
	}
	l.disposeNow()
}

func (l *Lifecycle) disposeNow() {
	if !atomic.CompareAndSwapInt32(&l.disposed, 0, 1) {
		return
	}
	l.mu.Lock()
	disposables := l.disposables
	l.disposables = nil
	l.mu.Unlock()
	for i := len(disposables) - 1; i >= 0; i-- {
		disposables[i].Dispose()
	}
}

// IsDisposed reports whether the Lifecycle has finished releasing its
// resources.
func (l *Lifecycle) IsDisposed() bool {
	return atomic.LoadInt32(&l.disposed) != 0
}

// belateHandle is the Disposable returned by BelateDispose.
type belateHandle struct {
	owner    *Lifecycle
	released int32
}

func (h *belateHandle) Dispose() {
	if !atomic.CompareAndSwapInt32(&h.released, 0, 1) {
		return
	}
	if atomic.AddInt32(&h.owner.belateCount, -1) == 0 && atomic.LoadInt32(&h.owner.disposeRequested) != 0 {
		h.owner.disposeNow()
	}
}

// BelateDispose postpones the effective release of l until every
// outstanding belate handle has itself been released, enabling
// hand-off to worker threads without a race against Dispose (spec.md
// §5, Design Note "Belate-dispose → reference-counted disposal").
func (l *Lifecycle) BelateDispose() Disposable {
	atomic.AddInt32(&l.belateCount, 1)
	return &belateHandle{owner: l}
}
