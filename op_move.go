package cvfs

import "context"

// MoveOp renames Src to Dst within a single back-end (spec.md §4.8.5).
// Cross-back-end moves are TransferTreeOp's job.
type MoveOp struct {
	opBase
	Src, Dst Path
}

func newMoveOp(vfs *VFS, session *Session, src, dst Path, override PolicyOverride) *MoveOp {
	return &MoveOp{opBase: newOpBase(vfs, session, override), Src: src, Dst: dst}
}

// Estimate confirms Src exists.
func (o *MoveOp) Estimate(ctx context.Context) error {
	if !o.transition(o, StateInitialized, StateEstimating) {
		return nil
	}
	if _, err := o.vfs.GetEntry(ctx, o.Src, nil); err != nil {
		if !(IsCode(err, CodeNotFound) && o.effectivePolicy().Source == SourceSkip) {
			o.forceState(o, StateError)
			o.reportError(o, err)
			return err
		}
	}
	o.setTotal(1)
	o.transition(o, StateEstimating, StateEstimated)
	return nil
}

// Run performs the rename.
func (o *MoveOp) Run(ctx context.Context) error {
	policy := o.effectivePolicy()
	cur := o.State()
	if cur != StateInitialized && cur != StateEstimated {
		return NewError("Run", CodeNotSupported, o.Src, nil)
	}
	o.forceState(o, StateRunning)

	if err := o.checkCancelled(); err != nil {
		o.forceState(o, StateCancelled)
		return err
	}

	if _, err := o.vfs.GetEntry(ctx, o.Src, nil); err != nil {
		if IsCode(err, CodeNotFound) && policy.Source == SourceSkip {
			o.forceState(o, StateSkipped)
			return nil
		}
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}

	if _, err := o.vfs.GetEntry(ctx, o.Dst, nil); err == nil {
		switch policy.Destination {
		case DestinationThrow:
			err := NewError("Run", CodeEntryExists, o.Dst, nil)
			o.forceState(o, StateError)
			o.reportError(o, err)
			return err
		case DestinationSkip:
			o.forceState(o, StateSkipped)
			return nil
		case DestinationOverwrite:
			if err := o.vfs.Delete(ctx, o.Dst, true, nil); err != nil {
				o.forceState(o, StateError)
				o.reportError(o, err)
				return err
			}
		}
	}

	if err := o.vfs.Move(ctx, o.Src, o.Dst, nil); err != nil {
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}
	o.addDone(1)
	o.transition(o, StateRunning, StateCompleted)
	return nil
}

// Rollback reverses the rename by moving Dst back to Src.
func (o *MoveOp) Rollback(ctx context.Context) (Operation, error) {
	if o.State() != StateCompleted {
		return nil, nil
	}
	return newMoveOp(o.vfs, o.session, o.Dst, o.Src, PolicyOverride{}), nil
}
