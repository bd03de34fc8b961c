package cvfs

import "context"

// CreateDirectoryOp creates a directory at Path, including any missing
// intermediate ancestors (spec.md §4.8.7).
type CreateDirectoryOp struct {
	opBase
	Path Path

	created []Path
}

func newCreateDirectoryOp(vfs *VFS, session *Session, path Path, override PolicyOverride) *CreateDirectoryOp {
	return &CreateDirectoryOp{opBase: newOpBase(vfs, session, override), Path: path}
}

// Estimate counts how many ancestor segments are missing, to give
// Progress().Total a meaning.
func (o *CreateDirectoryOp) Estimate(ctx context.Context) error {
	if !o.transition(o, StateInitialized, StateEstimating) {
		return nil
	}
	missing := int64(0)
	for p := o.Path.AsDir(); !p.IsRoot(); p = p.Parent() {
		if _, err := o.vfs.GetEntry(ctx, p, nil); err != nil {
			missing++
			continue
		}
		break
	}
	o.setTotal(missing)
	o.transition(o, StateEstimating, StateEstimated)
	return nil
}

// Run walks from the root (well, from the nearest existing ancestor)
// down to Path, creating each missing segment in turn.
func (o *CreateDirectoryOp) Run(ctx context.Context) error {
	policy := o.effectivePolicy()
	cur := o.State()
	if cur != StateInitialized && cur != StateEstimated {
		return NewError("Run", CodeNotSupported, o.Path, nil)
	}
	o.forceState(o, StateRunning)

	if _, err := o.vfs.GetEntry(ctx, o.Path.AsDir(), nil); err == nil {
		if policy.Destination == DestinationThrow {
			err := NewError("Run", CodeDirectoryExists, o.Path, nil)
			o.forceState(o, StateError)
			o.reportError(o, err)
			return err
		}
		o.forceState(o, StateSkipped)
		return nil
	}

	var missing []Path
	for p := o.Path.AsDir(); !p.IsRoot(); p = p.Parent() {
		if _, err := o.vfs.GetEntry(ctx, p, nil); err == nil {
			break
		}
		missing = append(missing, p)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := o.checkCancelled(); err != nil {
			o.forceState(o, StateCancelled)
			return err
		}
		if err := o.vfs.CreateDirectory(ctx, missing[i], nil); err != nil {
			o.forceState(o, StateError)
			o.reportError(o, err)
			if policy.Rollback == RollbackEnabled {
				for _, created := range o.created {
					_ = o.vfs.Delete(context.Background(), created, false, nil)
				}
			}
			return err
		}
		o.created = append(o.created, missing[i])
		o.addDone(1)
	}

	o.transition(o, StateRunning, StateCompleted)
	return nil
}

// Rollback deletes every directory segment this operation created, in
// reverse order (leaf first).
func (o *CreateDirectoryOp) Rollback(ctx context.Context) (Operation, error) {
	if len(o.created) == 0 {
		return nil, nil
	}
	children := make([]Operation, 0, len(o.created))
	for i := len(o.created) - 1; i >= 0; i-- {
		children = append(children, newDeleteOp(o.vfs, o.session, o.created[i], PolicyOverride{}))
	}
	return newBatchOp(o.vfs, o.session, children, PolicyOverride{}), nil
}
