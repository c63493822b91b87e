package recovery

import (
	"errors"

	"github.com/zkimio/zkim-core/pkg/wire"
)

// Detect runs the sequential corruption checks over a candidate
// container: minimum size, magic bytes, supported version, then a
// full Wire Codec parse. It never errors itself; a failed check is
// reported as a Diagnosis rather than an error, since corruption is
// the expected case this package exists to handle.
func Detect(data []byte) Diagnosis {
	if len(data) < 8 {
		return Diagnosis{Type: CorruptionHeader, Severity: SeverityCritical, Detail: "container shorter than the 8-byte magic+version+flags prefix", ChunkIndex: -1}
	}

	chunkIdx := locateFirstBadChunkIndex(data)

	container, err := wire.Decode(data)
	if err == nil {
		return Diagnosis{Type: "", Severity: "", Detail: "", ChunkIndex: -1} // no corruption; container parsed cleanly
	}
	_ = container

	switch {
	case errors.Is(err, wire.ErrInvalidMagic):
		return Diagnosis{Type: CorruptionHeader, Severity: SeverityCritical, Detail: "magic bytes do not match \"ZKIM\"", ChunkIndex: -1}
	case errors.Is(err, wire.ErrUnsupportedVersion):
		return Diagnosis{Type: CorruptionHeader, Severity: SeverityHigh, Detail: "unsupported container version", ChunkIndex: -1}
	case errors.Is(err, wire.ErrTruncated):
		return classifyTruncation(data, chunkIdx)
	case errors.Is(err, wire.ErrDuplicateFrame):
		return Diagnosis{Type: CorruptionChunk, Severity: SeverityMedium, Detail: "duplicate chunk frame", ChunkIndex: chunkIdx}
	case errors.Is(err, wire.ErrInvalidEnum), errors.Is(err, wire.ErrUnsupportedAlgorithm):
		return Diagnosis{Type: CorruptionMetadata, Severity: SeverityMedium, Detail: err.Error(), ChunkIndex: -1}
	case errors.Is(err, wire.ErrInvalidInput):
		return Diagnosis{Type: CorruptionChunk, Severity: SeverityMedium, Detail: err.Error(), ChunkIndex: chunkIdx}
	default:
		return Diagnosis{Type: CorruptionUnknown, Severity: SeverityHigh, Detail: err.Error(), ChunkIndex: -1}
	}
}

// classifyTruncation distinguishes a header-level truncation (too
// short to even carry a header TLV) from a chunk/signature-level
// truncation (the header parsed, but later frames did not).
func classifyTruncation(data []byte, chunkIdx int) Diagnosis {
	if len(data) < 32 {
		return Diagnosis{Type: CorruptionHeader, Severity: SeverityCritical, Detail: "truncated before a complete header could be read", ChunkIndex: -1}
	}
	return Diagnosis{Type: CorruptionSignature, Severity: SeverityMedium, Detail: "truncated before the trailing signature blocks", ChunkIndex: chunkIdx}
}

// IsCorrupt reports whether a Diagnosis represents an actual problem,
// as opposed to the zero-value Diagnosis Detect returns for a clean parse.
func (d Diagnosis) IsCorrupt() bool {
	return d.Type != ""
}
