package cvfs

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/worldiety/cvfs/internal/vfslog"
)

// ObserverFunc receives events delivered to a subscription's user
// callback.
type ObserverFunc func(Event)

// ObserverState is the per-child-observer context an adapter observer
// carries: the converter from the child back-end's namespace back into
// the parent VFS namespace, and arbitrary back-end-supplied state.
// Plays the role worldiety/vfs's mountpointListener closes over
// inline; here it is passed explicitly so the adapter is a single
// reusable type.
type ObserverState struct {
	Converter PathConverter
	User      interface{}
}

// ObserverHandle is returned by Backend.Observe (and by Subscribe); its
// Dispose ends the corresponding subscription (spec.md §4.7
// Cancellation).
type ObserverHandle interface {
	Dispose()
}

// Dispatcher delivers events to a subscription's callback. Two
// implementations are required by spec.md §4.7.
type Dispatcher interface {
	// Dispatch delivers ev, invoking errHandler (if non-nil) should the
	// callback panic; the panic is recovered into an error.
	Dispatch(ev Event, callback ObserverFunc, errHandler func(error))
	// Close releases dispatcher-owned resources (e.g. the task
	// dispatcher's worker goroutine). Safe to call more than once.
	Close()
}

// InlineDispatcher delivers on the calling goroutine. Errors raised by
// the callback (via a panic recovered into an error) are reported to
// errHandler if supplied, otherwise aggregated and made available via
// Errors() for the caller to re-raise.
type InlineDispatcher struct {
	mu   sync.Mutex
	errs []error
}

// NewInlineDispatcher builds an InlineDispatcher.
func NewInlineDispatcher() *InlineDispatcher {
	return &InlineDispatcher{}
}

func (d *InlineDispatcher) Dispatch(ev Event, callback ObserverFunc, errHandler func(error)) {
	err := invokeObserver(callback, ev)
	if err == nil {
		return
	}
	if errHandler != nil {
		errHandler(err)
		return
	}
	d.mu.Lock()
	d.errs = append(d.errs, err)
	d.mu.Unlock()
}

// Errors returns every error aggregated since the last call, clearing
// the buffer.
func (d *InlineDispatcher) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := d.errs
	d.errs = nil
	return errs
}

func (d *InlineDispatcher) Close() {}

func invokeObserver(callback ObserverFunc, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError("Dispatch", CodeIO, "", asError(r))
			vfslog.Errorf("observer callback panicked on %s event: %v", ev.Kind(), r)
		}
	}()
	callback(ev)
	return nil
}

func asError(r interface{}) error {
	if e, ok := r.(error); ok {
		return e
	}
	return NewError("Dispatch", CodeIO, "", nil)
}

// taskDispatchItem is one scheduled delivery.
type taskDispatchItem struct {
	event      Event
	callback   ObserverFunc
	errHandler func(error)
}

// TaskDispatcher schedules each event onto a single background worker
// goroutine, preserving the relative order events were submitted in
// (spec.md §4.7: "events from the same logical change may be coalesced
// into batches to preserve relative order within a batch" — this
// implementation's queue already is that ordering boundary, since every
// event submitted between two Close-synchronized points is delivered
// strictly in submission order).
type TaskDispatcher struct {
	queue  chan taskDispatchItem
	done   chan struct{}
	closed int32
}

// NewTaskDispatcher starts a TaskDispatcher with the given queue
// capacity.
func NewTaskDispatcher(queueCapacity int) *TaskDispatcher {
	d := &TaskDispatcher{
		queue: make(chan taskDispatchItem, queueCapacity),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *TaskDispatcher) run() {
	defer close(d.done)
	for item := range d.queue {
		err := invokeObserver(item.callback, item.event)
		if err != nil && item.errHandler != nil {
			item.errHandler(err)
		}
	}
}

func (d *TaskDispatcher) Dispatch(ev Event, callback ObserverFunc, errHandler func(error)) {
	if atomic.LoadInt32(&d.closed) != 0 {
		return
	}
	d.queue <- taskDispatchItem{event: ev, callback: callback, errHandler: errHandler}
}

// Close stops accepting further events and waits for the queue to
// drain.
func (d *TaskDispatcher) Close() {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return
	}
	close(d.queue)
	<-d.done
}

// Subscription is the handle returned by Observe/Subscribe — it is the
// {filter, callback, state, dispatcher, filesystem_ref,
// child_observer_count, disposed_flag} tuple of spec.md §4.7.
type Subscription struct {
	// ID uniquely identifies this subscription, e.g. for correlating it
	// across adapter observers attached to several child back-ends.
	ID uuid.UUID

	Filter      *Filter
	root        Path
	callback    ObserverFunc
	onCompleted func()
	dispatcher  Dispatcher
	filesystem  Backend
	errHandler  func(error)

	mu               sync.Mutex
	children         map[Path][]ObserverHandle
	childObserverCnt int32
	disposed         int32
	completedOnce    sync.Once
}

// NewSubscription builds a Subscription rooted at root with the given
// filter and callback, to be populated with child observer handles by
// the mount tree as it walks existing assignments (spec.md §4.7 step
// 2). onCompleted, if non-nil, is invoked exactly once when the
// subscription finishes disposing (spec.md §4.7 Cancellation) — it is
// not itself an Event, since OnCompleted is not one of the sealed
// variants in spec.md §3.5.
func NewSubscription(root Path, filter *Filter, callback ObserverFunc, onCompleted func(), dispatcher Dispatcher, fs Backend, errHandler func(error)) *Subscription {
	return &Subscription{
		ID:          uuid.New(),
		Filter:      filter,
		root:        root,
		callback:    callback,
		onCompleted: onCompleted,
		dispatcher:  dispatcher,
		filesystem:  fs,
		errHandler:  errHandler,
	}
}

// Root is the path the subscription was attached at.
func (s *Subscription) Root() Path { return s.root }

// Dispatcher returns the dispatcher this subscription delivers events
// through, so the mount tree can attach child observers reusing it.
func (s *Subscription) Dispatcher() Dispatcher { return s.dispatcher }

// Start dispatches the synthetic Start event required before any other
// event (spec.md §4.7 step 3, invariant §8.2).
func (s *Subscription) Start() {
	s.emit(NewStartEvent(s, time.Now()))
}

// Emit delivers ev through the subscription's dispatcher, unless the
// subscription has already been disposed.
func (s *Subscription) Emit(ev Event) {
	if atomic.LoadInt32(&s.disposed) != 0 {
		return
	}
	s.emit(ev)
}

func (s *Subscription) emit(ev Event) {
	s.dispatcher.Dispatch(ev, s.callback, s.errHandler)
}

// AddChildObserver registers a child observer handle obtained from a
// back-end's Observe call at mountPath and increments
// child_observer_count (spec.md §4.7 step 2).
func (s *Subscription) AddChildObserver(mountPath Path, h ObserverHandle) {
	s.mu.Lock()
	if s.children == nil {
		s.children = map[Path][]ObserverHandle{}
	}
	s.children[mountPath] = append(s.children[mountPath], h)
	s.mu.Unlock()
	atomic.AddInt32(&s.childObserverCnt, 1)
}

// DisposeChildrenUnder disposes every child observer handle that was
// attached for the assignments at mountPath (spec.md §4.5 Removal step
// 3: "cancel child observers attached to the departing back-ends").
func (s *Subscription) DisposeChildrenUnder(mountPath Path) {
	s.mu.Lock()
	handles := s.children[mountPath]
	delete(s.children, mountPath)
	s.mu.Unlock()
	for _, h := range handles {
		h.Dispose()
	}
}

// childCompleted decrements child_observer_count; once it reaches zero
// and disposal has been requested, the parent's OnCompleted fires
// (spec.md §4.7 step 4 / Cancellation).
func (s *Subscription) childCompleted() {
	if atomic.AddInt32(&s.childObserverCnt, -1) == 0 && atomic.LoadInt32(&s.disposed) != 0 {
		s.fireCompleted()
	}
}

func (s *Subscription) fireCompleted() {
	s.completedOnce.Do(func() {
		if s.onCompleted != nil {
			s.onCompleted()
		}
	})
}

// Dispose stops forwarding further events, disposes every child
// observer handle, emits OnCompleted exactly once, and removes the
// subscription from the mount tree (the last step is the caller's
// responsibility — the mount tree calls Dispose then unlinks itself;
// spec.md §4.7 Cancellation).
func (s *Subscription) Dispose() {
	if !atomic.CompareAndSwapInt32(&s.disposed, 0, 1) {
		return
	}
	s.mu.Lock()
	children := s.children
	s.children = nil
	s.mu.Unlock()
	for _, handles := range children {
		for _, c := range handles {
			c.Dispose()
		}
	}
	if atomic.LoadInt32(&s.childObserverCnt) == 0 {
		s.fireCompleted()
	}
}

// IsDisposed reports whether Dispose has been called.
func (s *Subscription) IsDisposed() bool {
	return atomic.LoadInt32(&s.disposed) != 0
}

// adapterObserver is the per-child-back-end observer the mount tree
// attaches when a subscription's filter intersects a newly mounted
// sub-tree. It recovers ObserverState from its closure, rewrites paths
// child-root to parent-VFS-root, and re-identifies the event's observer
// as the parent subscription before forwarding — exactly the splicing
// worldiety/vfs's mountpointListener and chrootListener each perform
// inline, generalized here into one reusable adapter (spec.md §4.7
// "Event splicing").
type adapterObserver struct {
	parent *Subscription
	state  *ObserverState
}

// newAdapterObserver returns the (ObserverFunc, onCompleted) pair
// suitable for passing as the observer and onCompleted arguments to
// Backend.Observe.
func newAdapterObserver(parent *Subscription, state *ObserverState) (ObserverFunc, func()) {
	a := &adapterObserver{parent: parent, state: state}
	return a.handle, parent.childCompleted
}

func (a *adapterObserver) handle(ev Event) {
	rewritten, ok := a.rewrite(ev)
	if !ok {
		return
	}
	a.parent.Emit(EventWithObserver(rewritten, a.parent))
}

func (a *adapterObserver) rewrite(ev Event) (Event, bool) {
	switch e := ev.(type) {
	case PathEvent:
		p, ok := a.state.Converter.Convert(e.Path())
		if !ok {
			return nil, false
		}
		return EventWithPath(e, p), true
	case RenameEvent:
		oldP, ok1 := a.state.Converter.Convert(e.OldPath())
		newP, ok2 := a.state.Converter.Convert(e.NewPath())
		if !ok1 || !ok2 {
			return nil, false
		}
		return EventWithRenamePaths(e, oldP, newP), true
	case ErrorEvent:
		if e.Path().IsRoot() {
			return e, true
		}
		p, ok := a.state.Converter.Convert(e.Path())
		if !ok {
			return e, true
		}
		return eventWithPath{Event: e, path: p}, true
	default:
		return ev, true
	}
}
