package cvfs

import "context"

// CopyTreeOp recursively copies every entry under Src to its
// counterpart under Dst, without removing anything at Src (spec.md
// §4.8.4). Internally it flattens the source tree into a sequence of
// CreateDirectoryOp/CopyFileOp children and reuses the same
// continue-on-error loop as BatchOp.
type CopyTreeOp struct {
	opBase
	Src, Dst Path

	children []Operation
}

func newCopyTreeOp(vfs *VFS, session *Session, src, dst Path, override PolicyOverride) *CopyTreeOp {
	return &CopyTreeOp{opBase: newOpBase(vfs, session, override), Src: src, Dst: dst}
}

func (o *CopyTreeOp) buildChildren(ctx context.Context) error {
	entries, err := collectTree(ctx, o.vfs, o.Src, o.effectivePolicy().Has(FlagOmitMountedPackages))
	if err != nil {
		return err
	}
	o.children = make([]Operation, 0, len(entries)+1)
	o.children = append(o.children, newCreateDirectoryOp(o.vfs, o.session, o.Dst, o.override))
	for _, we := range entries {
		dstPath := ConcatPaths(o.Dst, we.relPath)
		if we.isDir {
			o.children = append(o.children, newCreateDirectoryOp(o.vfs, o.session, dstPath, o.override))
		} else {
			o.children = append(o.children, newCopyFileOp(o.vfs, o.session, we.entry.Path(), dstPath, o.override))
		}
	}
	o.setTotal(int64(len(o.children)))
	return nil
}

// Estimate flattens Src into its child operation list so Progress can
// report a count of entries.
func (o *CopyTreeOp) Estimate(ctx context.Context) error {
	if !o.transition(o, StateInitialized, StateEstimating) {
		return nil
	}
	if err := o.buildChildren(ctx); err != nil {
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}
	o.transition(o, StateEstimating, StateEstimated)
	return nil
}

// Run executes every child operation in order.
func (o *CopyTreeOp) Run(ctx context.Context) error {
	policy := o.effectivePolicy()
	cur := o.State()
	if cur != StateInitialized && cur != StateEstimated {
		return NewError("Run", CodeNotSupported, o.Src, nil)
	}
	if o.children == nil {
		if err := o.buildChildren(ctx); err != nil {
			o.forceState(o, StateError)
			o.reportError(o, err)
			return err
		}
	}
	o.forceState(o, StateRunning)

	err := runChildren(ctx, o.session, o.children, policy)
	for _, c := range o.children {
		o.addDone(c.Progress().Done)
	}
	if err != nil {
		o.forceState(o, StateError)
		o.reportError(o, err)
		if policy.Rollback == RollbackEnabled {
			_ = o.vfs.Delete(context.Background(), o.Dst, true, nil)
		}
		return err
	}
	o.transition(o, StateRunning, StateCompleted)
	return nil
}

// Rollback undoes, in reverse child order, what each child operation
// itself created (the directories it made and the files it copied onto
// previously missing paths); it returns nil when there is nothing to
// undo.
func (o *CopyTreeOp) Rollback(ctx context.Context) (Operation, error) {
	var undo []Operation
	for i := len(o.children) - 1; i >= 0; i-- {
		rb, err := o.children[i].Rollback(ctx)
		if err != nil {
			return nil, err
		}
		if rb != nil {
			undo = append(undo, rb)
		}
	}
	if len(undo) == 0 {
		return nil, nil
	}
	return newBatchOp(o.vfs, o.session, undo, PolicyOverride{}), nil
}
