package core

import "github.com/pkg/errors"

// Sentinel error kinds a caller can match with errors.Is (spec §7 "Error
// handling design"). Every public method wraps one of these with
// call-site context via github.com/pkg/errors, the way
// _examples/drpcorg-chotki/chotki.go declares ErrCausalityBroken and
// ErrOutOfOrder as package-level sentinels and wraps them at the call
// site rather than constructing ad hoc error strings.
var (
	// ErrRangeOutOfBounds: an offset or range argument exceeds the
	// document's current length.
	ErrRangeOutOfBounds = errors.New("core: range out of bounds")
	// ErrMalformedInput: an argument is structurally invalid (an
	// inverted range, a negative delta length) independent of bounds.
	ErrMalformedInput = errors.New("core: malformed input")
	// ErrDecodeError: an imported blob is corrupt or truncated.
	ErrDecodeError = errors.New("core: malformed operation log blob")
	// ErrCausalGap: an imported op's causal predecessor is unknown and
	// was not included in the same batch.
	ErrCausalGap = errors.New("core: import has a causal gap")
	// ErrInternalInvariant: an assertion the engine believes can never
	// fail did. Surfaced rather than panicking so a host process can
	// decide how to react; also fires the diagnostic hook if one is
	// installed.
	ErrInternalInvariant = errors.New("core: internal invariant violated")
)

func invariantViolation(format string, args ...any) error {
	err := errors.Wrapf(ErrInternalInvariant, format, args...)
	diagf("internal invariant violated: %+v", err)
	return err
}
