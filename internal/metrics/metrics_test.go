package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestRecordFileCreatedIncrementsCounter(t *testing.T) {
	m := New("")
	m.RecordFileCreated(1024)

	var out dto.Metric
	if err := m.FilesCreated.Write(&out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if out.GetCounter().GetValue() != 1 {
		t.Errorf("FilesCreated = %v, want 1", out.GetCounter().GetValue())
	}
}

func TestRecordRecoveryAttemptRoutesOutcome(t *testing.T) {
	m := New("")
	m.RecordRecoveryAttempt(true)
	m.RecordRecoveryAttempt(false)

	var succeeded, failed dto.Metric
	m.RecoverySucceeded.Write(&succeeded)
	m.RecoveryFailed.Write(&failed)

	if succeeded.GetCounter().GetValue() != 1 {
		t.Errorf("RecoverySucceeded = %v, want 1", succeeded.GetCounter().GetValue())
	}
	if failed.GetCounter().GetValue() != 1 {
		t.Errorf("RecoveryFailed = %v, want 1", failed.GetCounter().GetValue())
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New("")
	m.RecordChunkProcessDuration(10 * time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("status = %v, want 200", rec.Code)
	}
}
