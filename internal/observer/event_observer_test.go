package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recordingObserver struct {
	name   string
	events []EventType
}

func (r *recordingObserver) OnEvent(_ context.Context, e FormEvent) {
	r.events = append(r.events, e.EventType)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, FormEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string            { return "panicking" }

func TestEventPublisher_OrderAndUnsubscribe(t *testing.T) {
	pub := NewEventPublisher()
	rec := &recordingObserver{name: "rec"}
	pub.Subscribe(panickingObserver{})
	pub.Subscribe(rec)

	ctx := context.Background()
	pub.NotifyObservers(ctx, FormEvent{EventType: ImageSelected})
	pub.NotifyObservers(ctx, FormEvent{EventType: ClassificationStarted})

	pub.Unsubscribe(rec)
	pub.NotifyObservers(ctx, FormEvent{EventType: ClassificationSucceeded})

	want := []EventType{ImageSelected, ClassificationStarted}
	if len(rec.events) != len(want) {
		t.Fatalf("Expected %d events, got %v", len(want), rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], rec.events[i])
		}
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, FormEvent{EventType: ClassificationSucceeded, Duration: 100 * time.Millisecond})
	m.OnEvent(ctx, FormEvent{EventType: ClassificationSucceeded, Duration: 300 * time.Millisecond})
	m.OnEvent(ctx, FormEvent{EventType: ClassificationFailed})

	if got := m.Count(ClassificationSucceeded); got != 2 {
		t.Errorf("Expected 2 successes, got %d", got)
	}
	if got := m.Count(FeedbackSent); got != 0 {
		t.Errorf("Expected 0 feedback events, got %d", got)
	}

	metrics := m.GetMetrics()
	if metrics["avg_classification_ms"] != int64(200) {
		t.Errorf("Expected 200ms average, got %v", metrics["avg_classification_ms"])
	}
	if metrics[string(ClassificationFailed)] != int64(1) {
		t.Errorf("Expected 1 failure, got %v", metrics[string(ClassificationFailed)])
	}
}

func TestLoggingObserver_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(logger)
	obs.OnEvent(context.Background(), FormEvent{
		EventType:  ClassificationFailed,
		SessionID:  "sess-1",
		Generation: 3,
		Err:        errors.New("connection refused"),
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q", buf.String())
	}
	if entry["level"] != "error" {
		t.Errorf("Expected error level, got %v", entry["level"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("Expected session id field, got %v", entry["session_id"])
	}
	if !strings.Contains(entry["error"].(string), "connection refused") {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
}
