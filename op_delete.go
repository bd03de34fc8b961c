package cvfs

import "context"

// DeleteOp removes a single entry (spec.md §4.8.6). Non-recursive: a
// non-empty directory fails with CodeNotEmpty unless the caller wants
// DeleteTree instead.
type DeleteOp struct {
	opBase
	Path Path

	deletedEntry Entry
}

func newDeleteOp(vfs *VFS, session *Session, path Path, override PolicyOverride) *DeleteOp {
	return &DeleteOp{opBase: newOpBase(vfs, session, override), Path: path}
}

// Estimate resolves the target entry, confirming that it exists (a
// missing entry is tolerated under SourceSkip).
func (o *DeleteOp) Estimate(ctx context.Context) error {
	if !o.transition(o, StateInitialized, StateEstimating) {
		return nil
	}
	entry, err := o.vfs.GetEntry(ctx, o.Path, nil)
	if err != nil {
		if IsCode(err, CodeNotFound) && o.effectivePolicy().Source == SourceSkip {
			o.transition(o, StateEstimating, StateEstimated)
			return nil
		}
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}
	o.deletedEntry = entry
	o.setTotal(1)
	o.transition(o, StateEstimating, StateEstimated)
	return nil
}

// Run deletes Path.
func (o *DeleteOp) Run(ctx context.Context) error {
	policy := o.effectivePolicy()
	cur := o.State()
	if cur != StateInitialized && cur != StateEstimated {
		return NewError("Run", CodeNotSupported, o.Path, nil)
	}
	o.forceState(o, StateRunning)

	if err := o.checkCancelled(); err != nil {
		o.forceState(o, StateCancelled)
		return err
	}

	if o.deletedEntry == nil {
		entry, err := o.vfs.GetEntry(ctx, o.Path, nil)
		if err != nil {
			if IsCode(err, CodeNotFound) && policy.Source == SourceSkip {
				o.forceState(o, StateSkipped)
				return nil
			}
			o.forceState(o, StateError)
			o.reportError(o, err)
			return err
		}
		o.deletedEntry = entry
	}

	if err := o.vfs.Delete(ctx, o.Path, false, nil); err != nil {
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}
	o.addDone(1)
	o.transition(o, StateRunning, StateCompleted)
	return nil
}

// Rollback is not synthesizable for a plain delete: recreating a file's
// exact byte content isn't something the engine can do without having
// copied it first (spec.md §3.6 "or nil if none is synthesizable").
func (o *DeleteOp) Rollback(ctx context.Context) (Operation, error) {
	return nil, nil
}
