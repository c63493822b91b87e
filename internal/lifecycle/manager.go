package lifecycle

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrTrapdoorNotFound is returned when an operation references an
	// id that the manager has never issued or has forgotten.
	ErrTrapdoorNotFound = errors.New("trapdoor not found")
	// ErrTrapdoorRevoked is returned when an operation requires a live
	// trapdoor but the target has already been revoked or expired.
	ErrTrapdoorRevoked = errors.New("trapdoor revoked")
	// ErrMaxTrapdoorsExceeded is returned by Create when the active
	// count is already at the configured quota.
	ErrMaxTrapdoorsExceeded = errors.New("maximum active trapdoors exceeded")
)

// DefaultMaxActiveTrapdoors is the quota applied when Config.MaxActiveTrapdoors is zero.
const DefaultMaxActiveTrapdoors = 1000

// Config controls optional lifecycle behaviors. All toggles default to
// their zero value (disabled) except where noted.
type Config struct {
	RotationInterval    time.Duration
	GracePeriod         time.Duration
	MaxActiveTrapdoors  int
	EnableRotation      bool
	EnableRevocation    bool
	EnableUsageTracking bool
	EnableAnomalyDetection bool
	EnableAuditLogging  bool
	RotationThreshold   uint64
	RevocationThreshold uint64
}

// UsageResult reports the side effects computed by UpdateUsage.
type UsageResult struct {
	ShouldRotate    bool
	ShouldRevoke    bool
	AnomalyDetected bool
}

// Manager owns the trapdoor table: the single-writer in-memory map
// described for the Lifecycle module, guarded by one mutex with O(1)
// critical sections, the same shape as the teacher's RoomManager owning
// its rooms map (room.go: RoomManager.rooms + roomsMu).
type Manager struct {
	mu        sync.Mutex
	trapdoors map[string]*Trapdoor
	cfg       Config
	clock     Clock
	audit     *AuditLog
	detector  Detector
}

// NewManager creates a Manager. A nil clock defaults to SystemClock; a
// nil detector defaults to BaselineDetector when anomaly detection is
// enabled, otherwise anomaly detection is simply skipped.
func NewManager(cfg Config, clock Clock, detector Detector) *Manager {
	if cfg.MaxActiveTrapdoors <= 0 {
		cfg.MaxActiveTrapdoors = DefaultMaxActiveTrapdoors
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if detector == nil && cfg.EnableAnomalyDetection {
		detector = NewBaselineDetector()
	}
	return &Manager{
		trapdoors: make(map[string]*Trapdoor),
		cfg:       cfg,
		clock:     clock,
		audit:     NewAuditLog(cfg.EnableAuditLogging),
		detector:  detector,
	}
}

// activeCount must be called with mu held.
func (m *Manager) activeCount() int {
	n := 0
	now := m.clock.Now()
	for _, t := range m.trapdoors {
		if t.IsUsable(now) {
			n++
		}
	}
	return n
}

// Create mints a new trapdoor for userID/query. maxUsage of zero falls
// back to the configured RotationThreshold.
func (m *Manager) Create(userID, query string, maxUsage uint64) (*Trapdoor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeCount() >= m.cfg.MaxActiveTrapdoors {
		return nil, ErrMaxTrapdoorsExceeded
	}

	id, err := newTrapdoorID()
	if err != nil {
		return nil, err
	}

	if maxUsage == 0 {
		maxUsage = m.cfg.RotationThreshold
	}

	now := m.clock.Now()
	interval := m.cfg.RotationInterval
	if interval <= 0 {
		interval = time.Hour
	}
	epoch := int64(now.Unix() / int64(interval.Seconds()))
	if interval.Seconds() == 0 {
		epoch = 0
	}

	t := &Trapdoor{
		ID:        id,
		UserID:    userID,
		Query:     query,
		Epoch:     epoch,
		CreatedAt: now,
		ExpiresAt: now.Add(interval + m.cfg.GracePeriod),
		MaxUsage:  maxUsage,
	}
	m.trapdoors[id] = t
	m.audit.Record(AuditEvent{Type: EventCreated, TrapdoorID: id, UserID: userID, Timestamp: now})
	return t, nil
}

// Get returns the trapdoor with the given id.
func (m *Manager) Get(id string) (*Trapdoor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trapdoors[id]
	if !ok {
		return nil, ErrTrapdoorNotFound
	}
	return t, nil
}

// ForUser returns every trapdoor ever issued to userID, most recently
// created first is not guaranteed; callers needing order should sort.
func (m *Manager) ForUser(userID string) []*Trapdoor {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Trapdoor
	for _, t := range m.trapdoors {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// Rotate replaces a live trapdoor with a fresh one carrying the same
// userId, query, and maxUsage, then revokes the original. If creating
// the replacement fails (quota exhausted), the original is left
// untouched and the error is surfaced.
func (m *Manager) Rotate(id string) (*Trapdoor, error) {
	m.mu.Lock()
	old, ok := m.trapdoors[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrTrapdoorNotFound
	}
	if old.IsRevoked {
		m.mu.Unlock()
		return nil, ErrTrapdoorRevoked
	}
	userID, query, maxUsage := old.UserID, old.Query, old.MaxUsage
	m.mu.Unlock()

	fresh, err := m.Create(userID, query, maxUsage)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	old.IsRevoked = true
	now := m.clock.Now()
	m.audit.Record(AuditEvent{Type: EventRotated, TrapdoorID: id, UserID: userID, Timestamp: now})
	m.mu.Unlock()

	return fresh, nil
}

// Revoke marks a trapdoor revoked. Idempotent: revoking an
// already-revoked trapdoor succeeds without state change.
func (m *Manager) Revoke(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trapdoors[id]
	if !ok {
		return ErrTrapdoorNotFound
	}
	if t.IsRevoked {
		return nil
	}
	t.IsRevoked = true
	m.audit.Record(AuditEvent{Type: EventRevoked, TrapdoorID: id, UserID: t.UserID, Reason: reason, Timestamp: m.clock.Now()})
	return nil
}

// UpdateUsage increments usageCount atomically, optionally updates the
// usage pattern and runs anomaly detection, and applies configured
// auto-rotation/auto-revocation side effects. Operations on a revoked
// (or expired) trapdoor return a zero UsageResult without incrementing.
func (m *Manager) UpdateUsage(id string) (UsageResult, error) {
	m.mu.Lock()
	t, ok := m.trapdoors[id]
	if !ok {
		m.mu.Unlock()
		return UsageResult{}, ErrTrapdoorNotFound
	}
	now := m.clock.Now()
	if !t.IsUsable(now) {
		m.mu.Unlock()
		return UsageResult{}, nil
	}

	t.UsageCount++
	usageCount, maxUsage, revocationThreshold := t.UsageCount, t.MaxUsage, m.cfg.RevocationThreshold
	userID, query := t.UserID, t.Query
	m.mu.Unlock()

	result := UsageResult{}
	if maxUsage > 0 && usageCount >= maxUsage {
		result.ShouldRotate = true
	}
	if revocationThreshold > 0 && usageCount >= revocationThreshold {
		result.ShouldRevoke = true
	}

	if m.cfg.EnableUsageTracking && m.detector != nil {
		result.AnomalyDetected = m.detector.Observe(userID, query, now)
	}

	if result.ShouldRevoke && m.cfg.EnableRevocation {
		_ = m.Revoke(id, "usage threshold exceeded")
	} else if result.ShouldRotate && m.cfg.EnableRotation {
		_, _ = m.Rotate(id)
	}

	return result, nil
}

// Sweep runs the scheduled lifecycle tick: expired trapdoors are
// revoked with reason "Expired"; non-revoked trapdoors whose
// usageCount has reached maxUsage are rotated. Driven by an injectable
// Clock so tests can advance time deterministically rather than
// waiting on a real ticker, the same pattern the teacher's
// RoomManager.cleanupLoop would need if it were made test-friendly.
func (m *Manager) Sweep() {
	now := m.clock.Now()

	m.mu.Lock()
	var toExpire, toRotate []string
	for id, t := range m.trapdoors {
		if t.IsRevoked {
			continue
		}
		if now.After(t.ExpiresAt) || now.Equal(t.ExpiresAt) {
			toExpire = append(toExpire, id)
			continue
		}
		if t.MaxUsage > 0 && t.UsageCount >= t.MaxUsage {
			toRotate = append(toRotate, id)
		}
	}
	m.mu.Unlock()

	for _, id := range toExpire {
		m.mu.Lock()
		t, ok := m.trapdoors[id]
		if ok && !t.IsRevoked {
			t.IsRevoked = true
			m.audit.Record(AuditEvent{Type: EventExpired, TrapdoorID: id, UserID: t.UserID, Timestamp: now})
		}
		m.mu.Unlock()
	}

	if m.cfg.EnableRotation {
		for _, id := range toRotate {
			_, _ = m.Rotate(id)
		}
	}
}

// AuditEvents returns the audit log's recent events, oldest first.
func (m *Manager) AuditEvents() []AuditEvent {
	return m.audit.Recent()
}

// GetRotationEvents returns only the rotation events from the audit
// log, oldest first.
func (m *Manager) GetRotationEvents() []AuditEvent {
	var out []AuditEvent
	for _, ev := range m.audit.Recent() {
		if ev.Type == EventRotated {
			out = append(out, ev)
		}
	}
	return out
}

// GetUsageStats returns the anomaly detector's rolling baseline for
// userID, if usage tracking and a stats-capable detector are both
// configured.
func (m *Manager) GetUsageStats(userID string) (UsagePattern, bool) {
	if m.detector == nil {
		return UsagePattern{}, false
	}
	sp, ok := m.detector.(StatsProvider)
	if !ok {
		return UsagePattern{}, false
	}
	return sp.Stats(userID)
}
