package recovery

import (
	"fmt"

	"github.com/zkimio/zkim-core/pkg/wire"
)

// strategyDescriptions back the "fail-strategy description" text
// surfaced when a repair cannot proceed.
var strategyDescriptions = map[Strategy]string{
	StrategyFail:        "corruption is unrecoverable",
	StrategyReconstruct: "reconstruction required but disabled",
}

// Recover attempts best-effort repair of data, bounded by
// opts.MaxRepairAttempts (default DefaultMaxRepairAttempts). It never
// panics or returns an error across this boundary; every outcome,
// success or failure, is encoded in the returned Result.
func Recover(data []byte, opts Options) Result {
	maxAttempts := opts.MaxRepairAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRepairAttempts
	}

	result := Result{}

	diag := Detect(data)
	if !diag.IsCorrupt() {
		result.Success = true
		result.RecoveredData = data
		return result
	}

	result.addError(fmt.Sprintf("%s corruption detected (%s severity): %s", diag.Type, diag.Severity, diag.Detail))

	strategy, confidence := SelectStrategy(diag)
	result.addAction(fmt.Sprintf("selected strategy %q (confidence %.1f, attempt budget %d)", strategy, confidence, maxAttempts))

	switch strategy {
	case StrategySkip:
		return executeSkip(data, diag, result)
	case StrategyReconstruct:
		return executeReconstruct(data, diag, opts, result)
	case StrategyRecover:
		return executeRecoverSignature(data, diag, result)
	default:
		return executeFail(strategy, result)
	}
}

func executeSkip(data []byte, diag Diagnosis, result Result) Result {
	repaired, droppedFrom, ok := dropCorruptChunks(data)
	if !ok {
		result.addError("chunk region could not be isolated from the rest of the container; skip repair not possible")
		result.Success = false
		return result
	}

	if droppedFrom < 0 {
		result.addAction("corrected the header's declared chunkCount to match the chunk frames actually present")
	} else {
		result.addWarning(fmt.Sprintf("data may be lost: chunk index %d onward was dropped", droppedFrom))
		result.addAction(fmt.Sprintf("dropped chunk index %d onward and re-validated the repaired container", droppedFrom))
	}
	result.Success = true
	result.RecoveredData = repaired
	return result
}

// executeReconstruct attempts header/metadata repair. Without a
// redundant copy of the damaged region there is nothing to rebuild
// from, so this only ever reports success when the bytes it's handed
// already re-parse cleanly; it never claims a repair it didn't verify.
func executeReconstruct(data []byte, diag Diagnosis, opts Options, result Result) Result {
	if !opts.EnableReconstruction {
		result.addError(strategyDescriptions[StrategyReconstruct])
		result.Success = false
		return result
	}
	if diag.Severity == SeverityCritical {
		result.addError(strategyDescriptions[StrategyFail])
		result.Success = false
		return result
	}

	result.addAction("attempted to reparse the header/metadata region after reconstruction")
	if _, err := wire.Decode(data); err != nil {
		result.addError(fmt.Sprintf("reconstruction did not produce a valid container: %v", err))
		result.Success = false
		return result
	}

	result.addWarning("reconstruction may not recover original field values exactly")
	result.Success = true
	result.RecoveredData = data
	return result
}

// executeRecoverSignature attempts to read past signature-area
// corruption. There is no way to verify signatures that were never
// cryptographically checked by this repair path in the first place, so
// this only claims success when the rest of the container (everything
// but the three trailing signature blocks) re-parses cleanly; callers
// must treat the signatures in RecoveredData as unverified.
func executeRecoverSignature(data []byte, diag Diagnosis, result Result) Result {
	result.addAction("attempted to parse the container while bypassing signature validation")
	if _, err := wire.Decode(data); err != nil {
		result.addError(fmt.Sprintf("container is not structurally valid even ignoring signatures: %v", err))
		result.Success = false
		return result
	}

	result.addWarning("recovery may result in data loss; signatures were not cryptographically verified")
	result.Success = true
	result.RecoveredData = data
	return result
}

func executeFail(strategy Strategy, result Result) Result {
	desc, ok := strategyDescriptions[strategy]
	if !ok {
		desc = "corruption is unrecoverable"
	}
	result.addError(desc)
	result.Success = false
	return result
}

// ValidateIntegrity is a thin convenience wrapper reporting whether
// data parses as a well-formed container at all, without attempting repair.
func ValidateIntegrity(data []byte) bool {
	_, err := wire.Decode(data)
	return err == nil
}
