package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"surveycore/internal/infra/persistence/memory"
	"surveycore/pkg/domain"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func fixedClock() Clock { return ClockFunc(func() time.Time { return fixedNow }) }

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) record(prefix, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, prefix+msg)
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.record("d:", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.record("i:", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.record("w:", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.record("e:", msg) }

func (c *captureLogger) has(call string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.calls {
		if got == call {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *memory.SnapshotStore) {
	t.Helper()
	state := memory.NewSnapshotStore()
	all := append([]ServiceOption{WithClock(fixedClock()), WithStateStore(state)}, opts...)
	svc, err := NewService(context.Background(), domain.DefaultSchema(), all...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, state
}

func record(id string, scores map[string]int) domain.SurveyRecord {
	rec := domain.SurveyRecord{ID: id, Timestamp: "2024-01-15T10:00:00.000Z"}
	for q := 1; q <= 21; q++ {
		qid := "q" + itoa(q)
		if v, ok := scores[qid]; ok {
			rec.SetScore(qid, v)
		}
	}
	return rec
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}
