package cvfs

// Kind is one of the enumerated option categories the algebra is defined
// over (spec.md §3.3 / GLOSSARY). Grounded on Design Note "Option bag by
// type key → tagged variant registry" — an enum-keyed map from kind to
// value replaces the "type-object as dictionary key" pattern, with a
// registry of per-kind flatten/union/intersect operations populated at
// init(), the same construction-time field-population shape
// worldiety/vfs's Builder uses for its F* function fields (§
// "Attribute-driven operation dispatch → static registry").
type Kind int

const (
	KindBrowse Kind = iota
	KindOpen
	KindRead
	KindWrite
	KindCreate
	KindDelete
	KindMove
	KindObserve
	KindMount
	KindUnmount
	KindListMountpoints
	KindSubPath
	KindToken
	KindAutoMount
)

func (k Kind) String() string {
	switch k {
	case KindBrowse:
		return "browse"
	case KindOpen:
		return "open"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindCreate:
		return "create"
	case KindDelete:
		return "delete"
	case KindMove:
		return "move"
	case KindObserve:
		return "observe"
	case KindMount:
		return "mount"
	case KindUnmount:
		return "unmount"
	case KindListMountpoints:
		return "list-mountpoints"
	case KindSubPath:
		return "sub-path"
	case KindToken:
		return "token"
	case KindAutoMount:
		return "auto-mount"
	default:
		return "unknown"
	}
}

// Option is an opaque value classified by one or more option kinds
// (spec.md §3.3).
type Option interface {
	Kinds() []Kind
}

// AdaptableOption additionally speaks for kinds other than its own
// declared Kinds(), via an explicit kind-to-value mapping, enabling a
// single composite value to answer for several kinds at once.
type AdaptableOption interface {
	Option
	Adapt() map[Kind]Option
}

func valueForKind(o Option, k Kind) (Option, bool) {
	if o == nil {
		return nil, false
	}
	for _, ok := range o.Kinds() {
		if ok == k {
			return o, true
		}
	}
	if a, ok := o.(AdaptableOption); ok {
		if v, present := a.Adapt()[k]; present {
			return v, true
		}
	}
	return nil, false
}

type kindAlgebra struct {
	flatten   func(Option) Option
	union     func(a, b Option) (Option, error)
	intersect func(a, b Option) (Option, error)
}

var kindRegistry = map[Kind]kindAlgebra{}

func registerKind(k Kind, alg kindAlgebra) {
	kindRegistry[k] = alg
}

func init() {
	for _, k := range []Kind{
		KindBrowse, KindOpen, KindRead, KindWrite, KindCreate, KindDelete,
		KindMove, KindObserve, KindUnmount, KindListMountpoints, KindAutoMount,
	} {
		registerKind(k, boolAlgebra(k))
	}
	registerKind(KindMount, mountAlgebra())
	registerKind(KindSubPath, subPathAlgebra())
	registerKind(KindToken, tokenAlgebra())
}

// CapabilityOption is a simple boolean capability value for every kind
// whose algebra is plain OR/AND (every kind except mount, sub-path and
// token).
type CapabilityOption struct {
	kind  Kind
	value bool
}

// NewCapabilityOption builds a CapabilityOption for kind.
func NewCapabilityOption(kind Kind, value bool) CapabilityOption {
	return CapabilityOption{kind: kind, value: value}
}

func (o CapabilityOption) Kinds() []Kind { return []Kind{o.kind} }
func (o CapabilityOption) Bool() bool    { return o.value }

func asBool(o Option) bool {
	if o == nil {
		return false
	}
	if c, ok := o.(CapabilityOption); ok {
		return c.value
	}
	return false
}

func boolAlgebra(k Kind) kindAlgebra {
	return kindAlgebra{
		flatten: func(o Option) Option {
			return NewCapabilityOption(k, asBool(o))
		},
		union: func(a, b Option) (Option, error) {
			return NewCapabilityOption(k, asBool(a) || asBool(b)), nil
		},
		intersect: func(a, b Option) (Option, error) {
			return NewCapabilityOption(k, asBool(a) && asBool(b)), nil
		},
	}
}

// MountOption gates the mount/unmount/list-mountpoints capability
// family's own re-mountability, distinct from the booleans governing
// ordinary filesystem operations.
type MountOption struct {
	enabled bool
}

// NewMountOption builds a MountOption.
func NewMountOption(enabled bool) MountOption {
	return MountOption{enabled: enabled}
}

func (o MountOption) Kinds() []Kind { return []Kind{KindMount} }
func (o MountOption) Bool() bool    { return o.enabled }

func asMountBool(o Option) bool {
	if o == nil {
		return false
	}
	if m, ok := o.(MountOption); ok {
		return m.enabled
	}
	return false
}

// mountAlgebra implements the Open Question left by spec.md §9: the
// source's MountOption.intersection uses `||` while its union uses
// `&&`, inverted relative to every other kind. This implementation
// treats the inversion as deliberate rather than a bug to fix — a union
// grants mount capability only when both sides grant it (so it narrows
// whenever *either* side disallows remounting), while an intersection
// grants it when either side does. Remounting is the more dangerous
// capability and a descendant assignment should not be able to
// silently reopen it. The decision is recorded in DESIGN.md.
func mountAlgebra() kindAlgebra {
	return kindAlgebra{
		flatten: func(o Option) Option {
			return NewMountOption(asMountBool(o))
		},
		union: func(a, b Option) (Option, error) {
			return NewMountOption(asMountBool(a) && asMountBool(b)), nil
		},
		intersect: func(a, b Option) (Option, error) {
			return NewMountOption(asMountBool(a) || asMountBool(b)), nil
		},
	}
}

// SubPathOption shifts a child back-end's apparent root within the
// parent namespace (spec.md §3.4, §8 scenario 6).
type SubPathOption struct {
	Path Path
}

func (o SubPathOption) Kinds() []Kind { return []Kind{KindSubPath} }

// subPathAlgebra implements the Open Question fix left by spec.md §9:
// the source's intersection compares c1.SubPath == c1.SubPath (a
// self-compare, always true); the semantic intent is a cross-compare,
// which this implements — equal sub-paths pass through unchanged,
// differing ones raise CodeOptionOperationNotSupported.
func subPathAlgebra() kindAlgebra {
	return kindAlgebra{
		flatten: func(o Option) Option { return o },
		union: func(a, b Option) (Option, error) {
			sa, okA := a.(SubPathOption)
			sb, okB := b.(SubPathOption)
			switch {
			case okA && sa.Path != "":
				return sa, nil
			case okB:
				return sb, nil
			default:
				return sa, nil
			}
		},
		intersect: func(a, b Option) (Option, error) {
			sa, okA := a.(SubPathOption)
			sb, okB := b.(SubPathOption)
			if !okA {
				return b, nil
			}
			if !okB {
				return a, nil
			}
			if sa.Path != sb.Path {
				return nil, NewError("Intersection", CodeOptionOperationNotSupported, sa.Path, nil)
			}
			return sa, nil
		},
	}
}

// TokenOption carries an opaque, back-end-interpreted value (spec.md
// §1 Non-goals: this module implements no permission/ACL system of its
// own — tokens are inspected only by back-ends). Composition always
// keeps the most specific (later / caller-supplied) value.
type TokenOption struct {
	Value interface{}
}

func (o TokenOption) Kinds() []Kind { return []Kind{KindToken} }

func tokenAlgebra() kindAlgebra {
	keepMostSpecific := func(a, b Option) (Option, error) {
		if tb, ok := b.(TokenOption); ok && tb.Value != nil {
			return tb, nil
		}
		return a, nil
	}
	return kindAlgebra{
		flatten:   func(o Option) Option { return o },
		union:     keepMostSpecific,
		intersect: keepMostSpecific,
	}
}

// compositeOption is the result of combining values across more than
// one kind; it is itself an AdaptableOption so it can take part in
// further compositions. It declares no kind of its own and answers for
// each kind only through Adapt, so valueForKind, Flatten and
// OptionComposition resolve a kind to its slot value rather than to the
// composite as a whole.
type compositeOption struct {
	slots map[Kind]Option
}

func (c compositeOption) Kinds() []Kind { return nil }

func (c compositeOption) Adapt() map[Kind]Option { return c.slots }

// At returns the composite's value for kind k, if present.
func (c compositeOption) At(k Kind) (Option, bool) {
	v, ok := c.slots[k]
	return v, ok
}

func singleOrComposite(slots map[Kind]Option) Option {
	if len(slots) == 1 {
		for _, v := range slots {
			return v
		}
	}
	return compositeOption{slots: slots}
}

// Flatten collapses o to its canonical form, per kind, per spec.md
// §3.3.
func Flatten(o Option) Option {
	if o == nil {
		return nil
	}
	slots := map[Kind]Option{}
	for _, k := range o.Kinds() {
		if alg, ok := kindRegistry[k]; ok {
			slots[k] = alg.flatten(o)
		}
	}
	if a, ok := o.(AdaptableOption); ok {
		for k, v := range a.Adapt() {
			if _, already := slots[k]; already {
				continue
			}
			if alg, ok := kindRegistry[k]; ok {
				slots[k] = alg.flatten(v)
			}
		}
	}
	return singleOrComposite(slots)
}

func unionKinds(a, b Option) []Kind {
	seen := map[Kind]bool{}
	var out []Kind
	add := func(o Option) {
		if o == nil {
			return
		}
		for _, k := range o.Kinds() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		if ao, ok := o.(AdaptableOption); ok {
			for k := range ao.Adapt() {
				if !seen[k] {
					seen[k] = true
					out = append(out, k)
				}
			}
		}
	}
	add(a)
	add(b)
	return out
}

func combine(a, b Option, apply func(kindAlgebra, Option, Option) (Option, error)) (Option, error) {
	slots := map[Kind]Option{}
	for _, k := range unionKinds(a, b) {
		alg, ok := kindRegistry[k]
		if !ok {
			continue
		}
		va, hasA := valueForKind(a, k)
		vb, hasB := valueForKind(b, k)
		switch {
		case hasA && hasB:
			res, err := apply(alg, va, vb)
			if err != nil {
				return nil, err
			}
			slots[k] = res
		case hasA:
			slots[k] = alg.flatten(va)
		case hasB:
			slots[k] = alg.flatten(vb)
		}
	}
	return singleOrComposite(slots), nil
}

// Union widens a and b: logical OR on boolean capability kinds
// (spec.md §3.3).
func Union(a, b Option) (Option, error) {
	return combine(a, b, func(alg kindAlgebra, x, y Option) (Option, error) { return alg.union(x, y) })
}

// Intersection narrows a and b: logical AND on boolean capability
// kinds; for sub-path, equal values pass, unequal values fail with
// CodeOptionOperationNotSupported (spec.md §3.3).
//
// Invariant: Intersection(o, o) == Flatten(o).
func Intersection(a, b Option) (Option, error) {
	return combine(a, b, func(alg kindAlgebra, x, y Option) (Option, error) { return alg.intersect(x, y) })
}

// CompositionOp selects how OptionComposition resolves a kind it has
// already seen when a later input declares the same kind again
// (spec.md §4.3).
type CompositionOp int

const (
	CompositionKeepFirst CompositionOp = iota
	CompositionKeepLast
	CompositionUnion
	CompositionIntersect
)

// OptionComposition iterates through each input's declared kinds
// (including those exposed via the adaptable mapping) and, for each
// kind, resolves a collision with the existing slot per op. The result
// is flattened (spec.md §4.3).
func OptionComposition(op CompositionOp, opts ...Option) (Option, error) {
	slots := map[Kind]Option{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		values := map[Kind]Option{}
		for _, k := range o.Kinds() {
			values[k] = o
		}
		if ao, ok := o.(AdaptableOption); ok {
			for k, v := range ao.Adapt() {
				if _, already := values[k]; !already {
					values[k] = v
				}
			}
		}
		for k, v := range values {
			alg, ok := kindRegistry[k]
			if !ok {
				continue
			}
			existing, has := slots[k]
			if !has {
				slots[k] = alg.flatten(v)
				continue
			}
			switch op {
			case CompositionKeepFirst:
				// existing value already wins; nothing to do.
			case CompositionKeepLast:
				slots[k] = alg.flatten(v)
			case CompositionUnion:
				res, err := alg.union(existing, v)
				if err != nil {
					return nil, err
				}
				slots[k] = res
			case CompositionIntersect:
				res, err := alg.intersect(existing, v)
				if err != nil {
					return nil, err
				}
				slots[k] = res
			}
		}
	}
	return singleOrComposite(slots), nil
}

// CapabilityEnabled reports whether o grants the boolean capability k,
// defaulting to false when o does not speak for k at all.
func CapabilityEnabled(o Option, k Kind) bool {
	v, ok := valueForKind(o, k)
	if !ok {
		return false
	}
	if k == KindMount {
		return asMountBool(v)
	}
	return asBool(Flatten(v))
}
