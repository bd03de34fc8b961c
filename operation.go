package cvfs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// OpState is a position in the operation lifecycle (spec.md §3.6,
// §4.8.1).
type OpState int32

const (
	StateInitialized OpState = iota
	StateEstimating
	StateEstimated
	StateRunning
	StateCompleted
	StateSkipped
	StateCancelled
	StateError
)

func (s OpState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateEstimating:
		return "estimating"
	case StateEstimated:
		return "estimated"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateSkipped:
		return "skipped"
	case StateCancelled:
		return "cancelled"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Progress is a (done, total) byte pair; either may be -1 (unknown),
// per spec.md §3.6.
type Progress struct {
	Done  int64
	Total int64
}

// SourcePolicy governs how an operation reacts to a missing source.
type SourcePolicy int

const (
	SourceThrow SourcePolicy = iota
	SourceSkip
)

// DestinationPolicy governs how an operation reacts to an existing
// destination.
type DestinationPolicy int

const (
	DestinationThrow DestinationPolicy = iota
	DestinationSkip
	DestinationOverwrite
)

// RollbackPolicy toggles rollback synthesis.
type RollbackPolicy int

const (
	RollbackDisabled RollbackPolicy = iota
	RollbackEnabled
)

// EstimateTiming governs when Estimate is (re-)run.
type EstimateTiming int

const (
	EstimateUpfront EstimateTiming = iota
	EstimateOnRun
	EstimateReEstimate
)

// Flags are independent policy bits, unioned (never overridden) between
// session and operation level (spec.md §4.8.2).
type Flags uint32

const (
	FlagBatchContinueOnError Flags = 1 << iota
	FlagSuppressException
	FlagCancelOnError
	FlagLogEvents
	FlagDispatchEvents
	FlagOmitMountedPackages
)

// Policy is the session- or operation-level policy bitmask of spec.md
// §4.8.2.
type Policy struct {
	Source      SourcePolicy
	Destination DestinationPolicy
	Rollback    RollbackPolicy
	Estimate    EstimateTiming
	Flags       Flags
}

func (p Policy) Has(f Flags) bool { return p.Flags&f != 0 }

// PolicyOverride is an operation's own policy, each category optional
// (nil meaning "inherit the session's value"); Flags is always unioned
// regardless (spec.md §4.8.2: "operation-level bits overriding session
// defaults for source/dst/rollback/estimate categories, and the union
// for standalone flags").
type PolicyOverride struct {
	Source      *SourcePolicy
	Destination *DestinationPolicy
	Rollback    *RollbackPolicy
	Estimate    *EstimateTiming
	Flags       Flags
}

// Effective computes the operation's effective policy from the
// session default and this override.
func (o PolicyOverride) Effective(session Policy) Policy {
	eff := session
	if o.Source != nil {
		eff.Source = *o.Source
	}
	if o.Destination != nil {
		eff.Destination = *o.Destination
	}
	if o.Rollback != nil {
		eff.Rollback = *o.Rollback
	}
	if o.Estimate != nil {
		eff.Estimate = *o.Estimate
	}
	eff.Flags |= o.Flags
	return eff
}

// Operation is any node of the operation engine's state machine:
// Batch, CopyFile, CopyTree, Move, TransferTree, Delete, DeleteTree,
// CreateDirectory (spec.md §3.6, §4.8).
type Operation interface {
	State() OpState
	Progress() Progress
	Estimate(ctx context.Context) error
	Run(ctx context.Context) error
	// Rollback returns a fresh Operation reversing this one's effect, or
	// nil if none is synthesizable (spec.md §3.6).
	Rollback(ctx context.Context) (Operation, error)
}

// BlockPool is the byte-block pool shared by every concurrent CopyFile
// in a session (spec.md §3.7, §5). Acquire never blocks: once its block
// budget is exhausted it fails immediately with CodeOutOfDiskSpace,
// modeling a back-end whose quota cannot be replenished mid-session
// (spec.md §8 scenario 5). Blocks acquired by one CopyFile are held for
// the lifetime of that single file's copy rather than recycled after
// every chunk — the alternative (reuse after every write) would make a
// capped pool never actually exhaustible by a single sequential copy,
// contradicting scenario 5's "2 blocks of 1024 bytes" failing a
// 3072-byte copy; see DESIGN.md.
type BlockPool struct {
	blockSize int
	remaining int64
}

// NewBlockPool builds a pool of blockCount blocks of blockSize bytes
// each.
func NewBlockPool(blockSize, blockCount int) *BlockPool {
	return &BlockPool{blockSize: blockSize, remaining: int64(blockCount)}
}

// BlockSize is the fixed size of every block this pool hands out.
func (p *BlockPool) BlockSize() int { return p.blockSize }

// Acquire reserves one block's worth of capacity.
func (p *BlockPool) Acquire() ([]byte, error) {
	for {
		cur := atomic.LoadInt64(&p.remaining)
		if cur <= 0 {
			return nil, NewError("Acquire", CodeOutOfDiskSpace, "", nil)
		}
		if atomic.CompareAndSwapInt64(&p.remaining, cur, cur-1) {
			return make([]byte, p.blockSize), nil
		}
	}
}

// Release returns blockCount blocks' worth of capacity to the pool.
func (p *BlockPool) Release(blockCount int) {
	atomic.AddInt64(&p.remaining, int64(blockCount))
}

// Session is a coherent grouping of operations sharing cancellation,
// policy, block pool, and event log (spec.md §3.7).
type Session struct {
	// ID uniquely identifies this session for logging/correlation
	// across its whole operation set (spec.md §3.7).
	ID uuid.UUID

	Policy Policy

	ctx    context.Context
	cancel context.CancelFunc

	Pool                   *BlockPool
	ProgressIntervalBytes  int64

	mu        sync.Mutex
	eventLog  []OperationEvent
	observers []func(OperationEvent)
}

// OperationEvent is an entry in a session's append-only operation event
// log: a state transition, a progress update, or an error (spec.md
// §3.7, §4.8.1, §4.8.9).
type OperationEvent struct {
	Op       Operation
	State    OpState
	Progress Progress
	Err      error
	Time     time.Time
}

// NewSession builds a Session with its own cancellation source.
func NewSession(policy Policy, pool *BlockPool, progressIntervalBytes int64) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:                    uuid.New(),
		Policy:                policy,
		ctx:                   ctx,
		cancel:                cancel,
		Pool:                  pool,
		ProgressIntervalBytes: progressIntervalBytes,
	}
}

// Context is the session's cancellation context; operations select on
// Context().Done() between sub-steps (spec.md §5 Cancellation).
func (s *Session) Context() context.Context { return s.ctx }

// Cancel requests cancellation of every operation running under this
// session.
func (s *Session) Cancel() { s.cancel() }

// IsCancelled reports whether Cancel has been called.
func (s *Session) IsCancelled() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// Subscribe registers f to receive every OperationEvent logged from
// now on.
func (s *Session) Subscribe(f func(OperationEvent)) {
	s.mu.Lock()
	s.observers = append(s.observers, f)
	s.mu.Unlock()
}

// EventLog returns a snapshot of every event logged so far.
func (s *Session) EventLog() []OperationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OperationEvent, len(s.eventLog))
	copy(out, s.eventLog)
	return out
}

func (s *Session) log(ev OperationEvent) {
	s.mu.Lock()
	s.eventLog = append(s.eventLog, ev)
	observers := append([]func(OperationEvent){}, s.observers...)
	s.mu.Unlock()
	for _, f := range observers {
		f(ev)
	}
}

// opBase is the common field set every concrete Operation embeds: the
// atomic state machine, byte progress counters, and the session/policy
// an operation runs under.
type opBase struct {
	// ID uniquely identifies this operation instance, e.g. for
	// correlating its OperationEvents in a session's event log.
	ID uuid.UUID

	vfs      *VFS
	session  *Session
	override PolicyOverride

	state int32
	done  int64
	total int64
}

func newOpBase(vfs *VFS, session *Session, override PolicyOverride) opBase {
	return opBase{ID: uuid.New(), vfs: vfs, session: session, override: override, total: -1}
}

func (b *opBase) State() OpState { return OpState(atomic.LoadInt32(&b.state)) }

func (b *opBase) Progress() Progress {
	return Progress{Done: atomic.LoadInt64(&b.done), Total: atomic.LoadInt64(&b.total)}
}

func (b *opBase) setTotal(t int64) { atomic.StoreInt64(&b.total, t) }
func (b *opBase) addDone(n int64)  { atomic.AddInt64(&b.done, n) }

// transition performs a compare-and-set state change and, if policy
// requests it, logs the transition to the session (spec.md §4.8.1).
func (b *opBase) transition(op Operation, from, to OpState) bool {
	if !atomic.CompareAndSwapInt32(&b.state, int32(from), int32(to)) {
		return false
	}
	if b.session != nil && b.effectivePolicy().Has(FlagLogEvents) {
		b.session.log(OperationEvent{Op: op, State: to, Progress: b.Progress(), Time: time.Now()})
	}
	return true
}

func (b *opBase) forceState(op Operation, to OpState) {
	atomic.StoreInt32(&b.state, int32(to))
	if b.session != nil && b.effectivePolicy().Has(FlagLogEvents) {
		b.session.log(OperationEvent{Op: op, State: to, Progress: b.Progress(), Time: time.Now()})
	}
}

func (b *opBase) effectivePolicy() Policy {
	var sessionPolicy Policy
	if b.session != nil {
		sessionPolicy = b.session.Policy
	}
	return b.override.Effective(sessionPolicy)
}

func (b *opBase) checkCancelled() error {
	if b.session == nil {
		return nil
	}
	if b.session.IsCancelled() {
		return errCancelled("Run", "")
	}
	return nil
}

func (b *opBase) reportError(op Operation, err error) {
	if b.session != nil {
		b.session.log(OperationEvent{Op: op, State: StateError, Progress: b.Progress(), Err: err, Time: time.Now()})
	}
}

// runChildren runs each child's Run in order, honoring
// FlagBatchContinueOnError and FlagCancelOnError, and aggregates every
// failure with github.com/hashicorp/go-multierror instead of returning
// only the first (spec.md §4.8.2, §4.8.9). Shared by BatchOp, CopyTreeOp
// and DeleteTreeOp, which are all "run a list of operations in
// sequence" at heart.
func runChildren(ctx context.Context, session *Session, children []Operation, policy Policy) error {
	var errs *multierror.Error
	for _, child := range children {
		if session != nil && session.IsCancelled() {
			errs = multierror.Append(errs, errCancelled("Run", ""))
			break
		}
		if err := child.Run(ctx); err != nil {
			errs = multierror.Append(errs, err)
			if policy.Has(FlagCancelOnError) && session != nil {
				session.Cancel()
			}
			if !policy.Has(FlagBatchContinueOnError) {
				break
			}
		}
	}
	if errs.ErrorOrNil() == nil {
		return nil
	}
	return errs.ErrorOrNil()
}
