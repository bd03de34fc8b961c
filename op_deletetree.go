package cvfs

import "context"

// DeleteTreeOp recursively removes Path and everything under it
// (spec.md §4.8.8). Entries are deleted leaf-first so a directory is
// always empty by the time its own delete runs.
type DeleteTreeOp struct {
	opBase
	Path Path

	children []Operation
}

func newDeleteTreeOp(vfs *VFS, session *Session, path Path, override PolicyOverride) *DeleteTreeOp {
	return &DeleteTreeOp{opBase: newOpBase(vfs, session, override), Path: path}
}

func (o *DeleteTreeOp) buildChildren(ctx context.Context) error {
	entries, err := collectTree(ctx, o.vfs, o.Path, false)
	if err != nil {
		if IsCode(err, CodeNotFound) && o.effectivePolicy().Source == SourceSkip {
			o.children = nil
			return nil
		}
		return err
	}
	o.children = make([]Operation, 0, len(entries)+1)
	for i := len(entries) - 1; i >= 0; i-- {
		o.children = append(o.children, newDeleteOp(o.vfs, o.session, entries[i].entry.Path(), o.override))
	}
	o.children = append(o.children, newDeleteOp(o.vfs, o.session, o.Path, o.override))
	o.setTotal(int64(len(o.children)))
	return nil
}

// Estimate flattens Path's subtree into a leaf-first delete sequence.
func (o *DeleteTreeOp) Estimate(ctx context.Context) error {
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

// Run deletes every collected child in order (deepest entries first,
// Path itself last).
func (o *DeleteTreeOp) Run(ctx context.Context) error {
	policy := o.effectivePolicy()
	cur := o.State()
	if cur != StateInitialized && cur != StateEstimated {
		return NewError("Run", CodeNotSupported, o.Path, nil)
	}
	if o.children == nil {
		if err := o.buildChildren(ctx); err != nil {
			o.forceState(o, StateError)
			o.reportError(o, err)
			return err
		}
	}
	o.forceState(o, StateRunning)

	if len(o.children) == 0 {
		o.forceState(o, StateSkipped)
		return nil
	}

	err := runChildren(ctx, o.session, o.children, policy)
	for _, c := range o.children {
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

// Rollback is not synthesizable: recreating an entire deleted subtree
// would require having copied it first (spec.md §3.6).
func (o *DeleteTreeOp) Rollback(ctx context.Context) (Operation, error) {
	return nil, nil
}
