package cvfs

import "time"

// EventKind identifies one variant of the sealed Event set (spec.md
// §3.5).
type EventKind int

const (
	EventStart EventKind = iota
	EventCreate
	EventChange
	EventDelete
	EventRename
	EventError
	EventMount
	EventUnmount
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventCreate:
		return "create"
	case EventChange:
		return "change"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	case EventError:
		return "error"
	case EventMount:
		return "mount"
	case EventUnmount:
		return "unmount"
	default:
		return "unknown"
	}
}

// Event is the common surface of every variant in the sealed set.
// Events are value types; Observer/Path/NewPath may be rewritten by a
// decorator without copying the underlying value (spec.md §3.5).
type Event interface {
	Kind() EventKind
	Observer() *Subscription
	Time() time.Time
}

type baseEvent struct {
	observer *Subscription
	time     time.Time
}

func (e baseEvent) Observer() *Subscription { return e.observer }
func (e baseEvent) Time() time.Time         { return e.time }

// StartEvent is delivered exactly once per subscription, before any
// other event (invariant §8.2).
type StartEvent struct {
	baseEvent
}

func (StartEvent) Kind() EventKind { return EventStart }

// NewStartEvent builds a StartEvent for obs.
func NewStartEvent(obs *Subscription, at time.Time) StartEvent {
	return StartEvent{baseEvent{observer: obs, time: at}}
}

// PathEvent is the shape shared by Create/Change/Delete.
type PathEvent struct {
	baseEvent
	kind EventKind
	path Path
}

func (e PathEvent) Kind() EventKind { return e.kind }
func (e PathEvent) Path() Path      { return e.path }

// NewCreateEvent builds a Create(path) event.
func NewCreateEvent(obs *Subscription, path Path, at time.Time) PathEvent {
	return PathEvent{baseEvent{observer: obs, time: at}, EventCreate, path}
}

// NewChangeEvent builds a Change(path) event.
func NewChangeEvent(obs *Subscription, path Path, at time.Time) PathEvent {
	return PathEvent{baseEvent{observer: obs, time: at}, EventChange, path}
}

// NewDeleteEvent builds a Delete(path) event.
func NewDeleteEvent(obs *Subscription, path Path, at time.Time) PathEvent {
	return PathEvent{baseEvent{observer: obs, time: at}, EventDelete, path}
}

// RenameEvent carries both the old and new path.
type RenameEvent struct {
	baseEvent
	oldPath Path
	newPath Path
}

func (RenameEvent) Kind() EventKind  { return EventRename }
func (e RenameEvent) OldPath() Path  { return e.oldPath }
func (e RenameEvent) NewPath() Path  { return e.newPath }

// NewRenameEvent builds a Rename(oldPath, newPath) event.
func NewRenameEvent(obs *Subscription, oldPath, newPath Path, at time.Time) RenameEvent {
	return RenameEvent{baseEvent{observer: obs, time: at}, oldPath, newPath}
}

// ErrorEvent carries a failure and an optional associated path.
type ErrorEvent struct {
	baseEvent
	err  error
	path Path
}

func (ErrorEvent) Kind() EventKind { return EventError }
func (e ErrorEvent) Err() error    { return e.err }
func (e ErrorEvent) Path() Path    { return e.path }

// NewErrorEvent builds an Error(err, path) event. path may be "".
func NewErrorEvent(obs *Subscription, err error, path Path, at time.Time) ErrorEvent {
	return ErrorEvent{baseEvent{observer: obs, time: at}, err, path}
}

// MountEvent is delivered when assignments change at path.
type MountEvent struct {
	baseEvent
	path        Path
	assignments []Assignment
	option      Option
}

func (MountEvent) Kind() EventKind              { return EventMount }
func (e MountEvent) Path() Path                 { return e.path }
func (e MountEvent) Assignments() []Assignment  { return e.assignments }
func (e MountEvent) Option() Option             { return e.option }

// NewMountEvent builds a Mount(path, assignments, option) event.
func NewMountEvent(obs *Subscription, path Path, assignments []Assignment, option Option, at time.Time) MountEvent {
	return MountEvent{baseEvent{observer: obs, time: at}, path, assignments, option}
}

// UnmountEvent is delivered when a mountpoint's assignments are removed.
type UnmountEvent struct {
	baseEvent
	path Path
}

func (UnmountEvent) Kind() EventKind { return EventUnmount }
func (e UnmountEvent) Path() Path    { return e.path }

// NewUnmountEvent builds an Unmount(path) event.
func NewUnmountEvent(obs *Subscription, path Path, at time.Time) UnmountEvent {
	return UnmountEvent{baseEvent{observer: obs, time: at}, path}
}

// pathLike is implemented by every Event variant that carries a
// rewritable Path field (everything except Start/Rename).
type pathLike interface {
	Event
	Path() Path
}

// eventWithObserver overrides Observer() without copying the wrapped
// event's own fields. Grounds the re-identification worldiety/vfs's
// mountpointListener performs inline as a reusable decorator, per
// Design Note "Decorated inheritance chains →
// composition + field overrides".
type eventWithObserver struct {
	Event
	observer *Subscription
}

func (e eventWithObserver) Observer() *Subscription { return e.observer }

// EventWithObserver re-publishes ev as if emitted by obs. An event that
// carries a Path keeps its Path method; the other variant-specific
// methods (Err, OldPath/NewPath, Assignments, Option) are not exposed by
// the result.
func EventWithObserver(ev Event, obs *Subscription) Event {
	if pl, ok := ev.(pathLike); ok {
		return eventWithPath{Event: eventWithObserver{Event: ev, observer: obs}, path: pl.Path()}
	}
	return eventWithObserver{Event: ev, observer: obs}
}

// eventWithPath overrides Path() on an event that supports it.
type eventWithPath struct {
	Event
	path Path
}

func (e eventWithPath) Path() Path { return e.path }

// EventWithPath re-publishes ev, rewriting its Path field. ev must
// satisfy pathLike; Start and Rename events are returned unchanged
// since neither exposes a single rewritable Path.
func EventWithPath(ev Event, path Path) Event {
	if _, ok := ev.(pathLike); !ok {
		return ev
	}
	return eventWithPath{Event: ev, path: path}
}

// eventWithRenamePaths overrides both OldPath/NewPath on a RenameEvent.
type eventWithRenamePaths struct {
	RenameEvent
	oldPath Path
	newPath Path
}

func (e eventWithRenamePaths) OldPath() Path { return e.oldPath }
func (e eventWithRenamePaths) NewPath() Path { return e.newPath }

// EventWithRenamePaths re-publishes a RenameEvent with both paths
// rewritten, used when splicing a rename event from a child back-end's
// namespace into the parent VFS namespace (spec.md §4.7).
func EventWithRenamePaths(ev RenameEvent, oldPath, newPath Path) Event {
	return eventWithRenamePaths{RenameEvent: ev, oldPath: oldPath, newPath: newPath}
}
