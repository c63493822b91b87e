package recovery

// SelectStrategy maps a (corruption type, severity) pair to a repair
// strategy and its confidence, per the fixed matrix: header/critical
// fails outright, header at any other severity attempts
// reconstruction, any chunk corruption is skipped, any signature
// corruption is recovered past, any metadata corruption is
// reconstructed, and anything unclassified fails.
func SelectStrategy(d Diagnosis) (Strategy, float64) {
	switch d.Type {
	case CorruptionHeader:
		if d.Severity == SeverityCritical {
			return StrategyFail, 0.1
		}
		return StrategyReconstruct, 0.7
	case CorruptionChunk:
		return StrategySkip, 0.8
	case CorruptionSignature:
		return StrategyRecover, 0.6
	case CorruptionMetadata:
		return StrategyReconstruct, 0.5
	default:
		return StrategyFail, 0.2
	}
}
