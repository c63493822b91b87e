package zkim

// Result is the envelope spec.md §7 calls for on operations "that can
// plausibly succeed despite failure": getFile, downloadFile,
// searchFiles. Everything else returns (T, error) idiomatically.
type Result[T any] struct {
	Success bool
	Data    T
	Err     *Error
}

func okResult[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func failResult[T any](err *Error) Result[T] {
	return Result[T]{Success: false, Err: err}
}

// IntegrityReport is ValidateIntegrity's result. ValidationLevel is one
// of "full" (structural and cryptographic checks both ran), "structural"
// (only wire-level decode and invariant checks ran, e.g. because the
// content key was not available in-process), or "none" (integrity
// validation is disabled for this service instance).
type IntegrityReport struct {
	IsValid         bool
	ValidationLevel string
	Errors          []string
	Warnings        []string
}

// KeyCompromiseReport is CheckKeyCompromise's result. Checked is false
// when the service was configured with enableCompromiseDetection=false,
// mirroring IntegrityReport's "none" level for the same configuration
// pattern. Reasons is only populated when Compromised is true.
type KeyCompromiseReport struct {
	Checked     bool
	Compromised bool
	Reasons     []string
}
