// Package cgerr defines the small taxonomy of error kinds every codegen
// stage reports through, so callers can use errors.Is to distinguish an
// unrecoverable internal bug from an ordinary compile failure without a
// bespoke exception hierarchy.
package cgerr

import "errors"

var (
	// Invariant marks a violated internal invariant: a bug in this
	// module, not in the program being compiled. Callers should treat it
	// as unrecoverable.
	Invariant = errors.New("codegen invariant violated")

	// UnresolvedRef marks a reference (call target, global) that never
	// resolved to a definition. No partial object is produced.
	UnresolvedRef = errors.New("unresolved reference")

	// Unsupported marks a construct this backend does not implement.
	Unsupported = errors.New("unsupported construct")

	// EncoderLimit marks an encoding request outside what the x86-64
	// encoder can express (e.g. an operand combination with no encoding).
	// Reaching it is a programming error upstream, not a user-facing
	// compile failure.
	EncoderLimit = errors.New("encoder limit exceeded")
)
