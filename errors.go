package shade

import "errors"

// Sentinel errors reported by expression construction, binding layout
// resolution and compilation. Call sites wrap them with fmt.Errorf and
// the %w verb, so callers can match with errors.Is regardless of the
// added context.
var (
	// ErrTypeMismatch reports operands or constructor parts whose value
	// types do not satisfy the operation's typing rules.
	ErrTypeMismatch = errors.New("shade: type mismatch")

	// ErrStageScope reports a value consumed in a shader stage that its
	// sources forbid, such as a vertex attribute read from the fragment
	// tree without a stage transfer.
	ErrStageScope = errors.New("shade: stage scope")

	// ErrStageViolation reports an operation outside the only stage it is
	// meaningful in, such as discard reachable from a vertex or compute
	// root.
	ErrStageViolation = errors.New("shade: stage violation")

	// ErrDuplicateLocation reports two vertex attributes resolved to the
	// same shader location.
	ErrDuplicateLocation = errors.New("shade: duplicate location")

	// ErrLayoutOverflow reports a binding layout that exceeds the
	// supported number of inputs, locations, groups or bindings.
	ErrLayoutOverflow = errors.New("shade: layout overflow")

	// ErrInternal reports a consistency fault detected after construction
	// already validated the program. It is delivered by panic, never as a
	// return value: a module that compiled is always emittable, so
	// reaching it means a bug in this package rather than in the caller.
	ErrInternal = errors.New("shade: internal inconsistency")
)
