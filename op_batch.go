package cvfs

import "context"

// BatchOp runs a fixed list of child operations as one unit, optionally
// continuing past a failing child and aggregating every error rather
// than stopping at the first (spec.md §4.8.9, FlagBatchContinueOnError).
// Grounded on worldiety/vfs's BatchFileSystem and BatchDataProvider —
// both a bare optional contract (BatchDelete/BatchReadAttrs/
// BatchWriteAttrs) with no
// per-item state or progress of their own — generalized here into a
// slice of full Operations each carrying their own state/progress/
// rollback.
type BatchOp struct {
	opBase
	Children []Operation
}

func newBatchOp(vfs *VFS, session *Session, children []Operation, override PolicyOverride) *BatchOp {
	return &BatchOp{opBase: newOpBase(vfs, session, override), Children: children}
}

// Estimate runs Estimate on every child, tallying their totals.
func (o *BatchOp) Estimate(ctx context.Context) error {
	if !o.transition(o, StateInitialized, StateEstimating) {
		return nil
	}
	var total int64
	for _, c := range o.Children {
		if err := c.Estimate(ctx); err != nil {
			o.forceState(o, StateError)
			o.reportError(o, err)
			return err
		}
		if t := c.Progress().Total; t > 0 {
			total += t
		}
	}
	o.setTotal(total)
	o.transition(o, StateEstimating, StateEstimated)
	return nil
}

// Run executes every child in order.
func (o *BatchOp) Run(ctx context.Context) error {
	policy := o.effectivePolicy()
	cur := o.State()
	if cur != StateInitialized && cur != StateEstimated {
		return NewError("Run", CodeNotSupported, "", nil)
	}
	o.forceState(o, StateRunning)

	err := runChildren(ctx, o.session, o.Children, policy)
	for _, c := range o.Children {
		o.addDone(c.Progress().Done)
	}
	if err != nil {
		o.forceState(o, StateError)
		o.reportError(o, err)
		return err
	}
	o.transition(o, StateRunning, StateCompleted)
	return nil
}

// Rollback builds a batch that rolls back every child capable of it, in
// reverse completion order.
func (o *BatchOp) Rollback(ctx context.Context) (Operation, error) {
	var reversed []Operation
	for i := len(o.Children) - 1; i >= 0; i-- {
		rb, err := o.Children[i].Rollback(ctx)
		if err != nil {
			return nil, err
		}
		if rb != nil {
			reversed = append(reversed, rb)
		}
	}
	if len(reversed) == 0 {
		return nil, nil
	}
	return newBatchOp(o.vfs, o.session, reversed, PolicyOverride{}), nil
}
