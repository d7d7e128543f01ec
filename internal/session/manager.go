// Package session maps browser sessions to upload forms.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/plant-classifier-go/internal/form"
	"github.com/anime-shed/plant-classifier-go/internal/logger"
)

// FormFactory builds the form for a new session.
type FormFactory func(sessionID string) *form.Form

type entry struct {
	form     *form.Form
	lastSeen time.Time
}

// Manager owns every live form. Idle forms are closed by Sweep.
type Manager struct {
	newForm FormFactory
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(newForm FormFactory, ttl time.Duration) *Manager {
	return &Manager{
		newForm:  newForm,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Get returns the form for id, creating a session when id is empty or
// unknown. The returned id is the one the client must keep using.
func (m *Manager) Get(id string) (*form.Form, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.sessions[id]; ok && id != "" {
		e.lastSeen = now
		return e.form, id, false
	}

	id = uuid.NewString()
	f := m.newForm(id)
	m.sessions[id] = &entry{form: f, lastSeen: now}
	return f, id, true
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close ends one session and tears its form down.
func (m *Manager) Close(ctx context.Context, id string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	if err := e.form.Close(ctx); err != nil {
		logger.WithError(err).WithField("session_id", id).Warn("Failed to close form")
	}
	return true
}

// Sweep closes sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []string
	forms := make(map[string]*form.Form)
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, id)
			forms[id] = e.form
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		if err := forms[id].Close(ctx); err != nil {
			logger.WithError(err).WithField("session_id", id).Warn("Failed to close expired form")
		}
	}
	if len(expired) > 0 {
		logger.WithFields(logrus.Fields{
			"expired":   len(expired),
			"remaining": m.Len(),
		}).Debug("Swept idle sessions")
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for id, e := range sessions {
		if err := e.form.Close(ctx); err != nil {
			logger.WithError(err).WithField("session_id", id).Warn("Failed to close form on shutdown")
		}
	}
	logger.WithField("sessions", len(sessions)).Info("Closed all sessions")
}
