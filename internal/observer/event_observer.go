package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FormEvent represents a transition of one upload form
type FormEvent struct {
	EventType  EventType              `json:"event_type"`
	Timestamp  time.Time              `json:"timestamp"`
	SessionID  string                 `json:"session_id,omitempty"`
	Generation uint64                 `json:"generation"`
	ImageName  string                 `json:"image_name,omitempty"`
	Duration   time.Duration          `json:"duration,omitempty"`
	Err        error                  `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of form event
type EventType string

const (
	ImageSelected           EventType = "image_selected"
	ClassificationRejected  EventType = "classification_rejected"
	ClassificationStarted   EventType = "classification_started"
	ClassificationSucceeded EventType = "classification_succeeded"
	ClassificationFailed    EventType = "classification_failed"
	ClassificationStale     EventType = "classification_stale"
	FeedbackRejected        EventType = "feedback_rejected"
	FeedbackSent            EventType = "feedback_sent"
	FeedbackFailed          EventType = "feedback_failed"
	FeedbackStale           EventType = "feedback_stale"
	FormClosed              EventType = "form_closed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event FormEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event FormEvent)
}

// LoggingObserver logs form events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles form events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event FormEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"session_id": event.SessionID,
		"generation": event.Generation,
	}
	if event.ImageName != "" {
		fields["image_name"] = event.ImageName
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	if event.Err != nil {
		entry = entry.WithError(event.Err)
	}

	switch event.EventType {
	case ClassificationFailed:
		entry.Error("Image classification failed")
	case FeedbackFailed:
		entry.Error("Feedback submission failed")
	case ClassificationStale, FeedbackStale:
		entry.Warn("Discarded response for a superseded image")
	case ClassificationRejected:
		entry.Debug("Classification rejected")
	case FeedbackRejected:
		entry.Debug("Feedback rejected")
	case ImageSelected:
		entry.Debug("Image selected")
	case ClassificationStarted:
		entry.Debug("Image classification started")
	case ClassificationSucceeded:
		entry.Info("Image classification completed")
	case FeedbackSent:
		entry.Info("Feedback submitted")
	default:
		entry.Info("Form event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts form events
type MetricsObserver struct {
	mu                  sync.RWMutex
	counts              map[EventType]int64
	totalClassifyTime   time.Duration
	classificationCount int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{counts: make(map[EventType]int64)}
}

// OnEvent handles form events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event FormEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.counts[event.EventType]++
	if event.EventType == ClassificationSucceeded {
		o.classificationCount++
		o.totalClassifyTime += event.Duration
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Count returns how many events of type t were seen
func (o *MetricsObserver) Count(t EventType) int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.counts[t]
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := time.Duration(0)
	if o.classificationCount > 0 {
		avg = o.totalClassifyTime / time.Duration(o.classificationCount)
	}

	metrics := map[string]interface{}{
		"avg_classification_ms": avg.Milliseconds(),
	}
	for t, n := range o.counts {
		metrics[string(t)] = n
	}
	return metrics
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer in subscription order.
// Delivery is synchronous so events from one form are observed in order.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event FormEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}()
	}
}
