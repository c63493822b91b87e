// Package recovery implements best-effort repair of damaged containers:
// corruption detection, repair-strategy selection, and bounded
// reconstruction/skip/recover/fail execution.
package recovery

// CorruptionType classifies where in the container damage was detected.
type CorruptionType string

const (
	CorruptionHeader    CorruptionType = "header"
	CorruptionChunk     CorruptionType = "chunk"
	CorruptionSignature CorruptionType = "signature"
	CorruptionMetadata  CorruptionType = "metadata"
	CorruptionUnknown   CorruptionType = "unknown"
)

// Severity grades how badly the detected corruption affects recoverability.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Strategy names a repair approach chosen for a given (type, severity) pair.
type Strategy string

const (
	StrategySkip        Strategy = "skip"
	StrategyReconstruct Strategy = "reconstruct"
	StrategyRecover     Strategy = "recover"
	StrategyFail        Strategy = "fail"
)

// Diagnosis is the outcome of detection: the classified corruption plus
// the chosen repair strategy and its confidence.
type Diagnosis struct {
	Type       CorruptionType
	Severity   Severity
	Strategy   Strategy
	Confidence float64
	Detail     string

	// ChunkIndex is the index of the first chunk TLV frame, in
	// sequential order, that fails to parse. It is -1 when the chunk
	// region itself could not be scanned (e.g. the corruption is
	// outside the chunk area) or every chunk frame present parses
	// cleanly.
	ChunkIndex int
}

// Options controls optional, opt-in recovery behaviors.
type Options struct {
	EnableReconstruction bool
	MaxRepairAttempts    int
}

// DefaultMaxRepairAttempts bounds every recovery path when Options.MaxRepairAttempts is unset.
const DefaultMaxRepairAttempts = 3

// Result is the structured, never-throws outcome of a recovery attempt.
type Result struct {
	Success       bool
	RecoveredData []byte
	RepairActions []string
	Warnings      []string
	Errors        []string
}

func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *Result) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Result) addAction(msg string) {
	r.RepairActions = append(r.RepairActions, msg)
}
