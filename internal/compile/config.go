package compile

// CallConvention selects which ABI Compile targets. There is no
// runtime.GOOS autodetection: the original codegen context is created
// once per convention (codegen_context_x86_64_{mswin,linux}_create), so
// the caller states it explicitly here too.
type CallConvention int

const (
	SystemV CallConvention = iota
	MicrosoftX64
)

func (c CallConvention) String() string {
	if c == MicrosoftX64 {
		return "mswin"
	}
	return "sysv"
}

// Config governs one compile run.
type Config struct {
	CallConvention CallConvention

	// Optimize, when false, forces every function into a Full stack
	// frame regardless of whether it is a leaf or has locals (see
	// internal/regalloc's frame kind decision).
	Optimize bool

	// Verbose is carried for the caller; Compile itself does not read it.
	// Compile logs through slog's default logger, whose level the caller
	// sets (cmd/x64cc raises it to Debug when -verbose is given).
	Verbose bool

	// Progress, if set, is called after each function finishes
	// compiling, in module order. done is 1-indexed; total is the
	// number of functions in the program (including extern
	// declarations, which are reported immediately since they skip
	// codegen entirely).
	Progress func(done, total int, name string)
}
