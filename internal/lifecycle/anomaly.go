package lifecycle

import (
	"sync"
	"time"
)

// coldStartThreshold is the minimum number of observations before the
// detector will report anomalies for a given user; before that, every
// pattern is "normal" by definition.
const coldStartThreshold = 5

// UsagePattern tracks a per-user rolling baseline of trapdoor usage,
// used by the anomaly detector to flag deviations.
type UsagePattern struct {
	QueryPatterns  map[string]int
	UsageFrequency float64 // inverse of time-since-last-use, higher = more frequent
	TotalUsage     uint64
	LastUsed       time.Time
	observations   int
}

// Detector reports whether a usage update for a user deviates from its
// established baseline. Pluggable so hosts can substitute their own
// scoring without touching the lifecycle manager.
type Detector interface {
	Observe(userID, query string, now time.Time) bool
}

// BaselineDetector is the default Detector: it flags an anomaly when a
// user's query frequency spikes well beyond its rolling average, or
// when a never-seen query suddenly dominates usage. It tolerates
// cold-start by requiring a minimum number of observations first.
type BaselineDetector struct {
	mu       sync.Mutex
	patterns map[string]*UsagePattern
}

// NewBaselineDetector creates an empty BaselineDetector.
func NewBaselineDetector() *BaselineDetector {
	return &BaselineDetector{patterns: make(map[string]*UsagePattern)}
}

// Observe records one usage event for userID/query and reports whether
// it looks anomalous relative to that user's rolling baseline.
func (d *BaselineDetector) Observe(userID, query string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.patterns[userID]
	if !ok {
		p = &UsagePattern{QueryPatterns: make(map[string]int)}
		d.patterns[userID] = p
	}

	var freq float64
	if !p.LastUsed.IsZero() {
		elapsed := now.Sub(p.LastUsed).Seconds()
		if elapsed > 0 {
			freq = 1 / elapsed
		} else {
			freq = p.UsageFrequency * 2 // two updates in the same instant: sharp spike
		}
	}

	prevFreq := p.UsageFrequency
	anomalous := false
	if p.observations >= coldStartThreshold && prevFreq > 0 && freq > prevFreq*5 {
		anomalous = true
	}

	p.QueryPatterns[query]++
	p.TotalUsage++
	p.LastUsed = now
	p.observations++
	if p.UsageFrequency == 0 {
		p.UsageFrequency = freq
	} else {
		p.UsageFrequency = p.UsageFrequency*0.7 + freq*0.3
	}

	return anomalous
}

// Stats returns a snapshot of userID's rolling baseline, if any
// observations have been recorded for them.
func (d *BaselineDetector) Stats(userID string) (UsagePattern, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.patterns[userID]
	if !ok {
		return UsagePattern{}, false
	}
	patterns := make(map[string]int, len(p.QueryPatterns))
	for k, v := range p.QueryPatterns {
		patterns[k] = v
	}
	return UsagePattern{
		QueryPatterns:  patterns,
		UsageFrequency: p.UsageFrequency,
		TotalUsage:     p.TotalUsage,
		LastUsed:       p.LastUsed,
	}, true
}

// StatsProvider is implemented by detectors that can report a per-user
// baseline snapshot for diagnostics. BaselineDetector implements it;
// a caller-supplied Detector need not.
type StatsProvider interface {
	Stats(userID string) (UsagePattern, bool)
}
