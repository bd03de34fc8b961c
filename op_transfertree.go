package cvfs

import "context"

// TransferTreeOp moves an entire subtree from Src to Dst across
// back-end boundaries, where a single Mover can't handle both ends in
// one atomic rename (spec.md §4.8.5). It composes a CopyTreeOp followed
// by a DeleteTreeOp of Src, succeeding only if both complete.
type TransferTreeOp struct {
	opBase
	Src, Dst Path

	copy   *CopyTreeOp
	delete *DeleteTreeOp
}

func newTransferTreeOp(vfs *VFS, session *Session, src, dst Path, override PolicyOverride) *TransferTreeOp {
	return &TransferTreeOp{opBase: newOpBase(vfs, session, override), Src: src, Dst: dst}
}

// Estimate delegates to the inner CopyTreeOp's estimate and takes over
// its total, the number of child operations of the copy.
func (o *TransferTreeOp) Estimate(ctx context.Context) error {
	if !o.transition(o, StateInitialized, StateEstimating) {
		return nil
	}
	o.copy = newCopyTreeOp(o.vfs, o.session, o.Src, o.Dst, o.override)
	if err := o.copy.Estimate(ctx); err != nil {
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}
	o.setTotal(o.copy.Progress().Total)
	o.transition(o, StateEstimating, StateEstimated)
	return nil
}

// Run copies Src to Dst, then deletes Src, only if the copy succeeded.
func (o *TransferTreeOp) Run(ctx context.Context) error {
	cur := o.State()
	if cur != StateInitialized && cur != StateEstimated {
		return NewError("Run", CodeNotSupported, o.Src, nil)
	}
	if o.copy == nil {
		o.copy = newCopyTreeOp(o.vfs, o.session, o.Src, o.Dst, o.override)
	}
	o.forceState(o, StateRunning)

	if err := o.copy.Run(ctx); err != nil {
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}
	o.addDone(o.copy.Progress().Done)

	o.delete = newDeleteTreeOp(o.vfs, o.session, o.Src, PolicyOverride{})
	if err := o.delete.Run(ctx); err != nil {
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}

	o.transition(o, StateRunning, StateCompleted)
	return nil
}

// Rollback reverses a completed transfer: copy Dst back to Src, then
// remove Dst.
func (o *TransferTreeOp) Rollback(ctx context.Context) (Operation, error) {
	if o.State() != StateCompleted {
		return nil, nil
	}
	children := []Operation{
		newCopyTreeOp(o.vfs, o.session, o.Dst, o.Src, PolicyOverride{}),
		newDeleteTreeOp(o.vfs, o.session, o.Dst, PolicyOverride{}),
	}
	return newBatchOp(o.vfs, o.session, children, PolicyOverride{}), nil
}
