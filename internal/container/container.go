package container

import (
	"fmt"
	"net/http"

	"github.com/anime-shed/plant-classifier-go/internal/classifier"
	"github.com/anime-shed/plant-classifier-go/internal/config"
	"github.com/anime-shed/plant-classifier-go/internal/feedback"
	"github.com/anime-shed/plant-classifier-go/internal/form"
	"github.com/anime-shed/plant-classifier-go/internal/labels"
	"github.com/anime-shed/plant-classifier-go/internal/logger"
	"github.com/anime-shed/plant-classifier-go/internal/observer"
	"github.com/anime-shed/plant-classifier-go/internal/preview"
	"github.com/anime-shed/plant-classifier-go/internal/session"
	"github.com/anime-shed/plant-classifier-go/internal/transport"
	"github.com/anime-shed/plant-classifier-go/internal/upstream"
)

// Container holds all application dependencies
type Container struct {
	sessions *session.Manager
	handler  http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Build dependency graph
	client := upstream.NewClient(upstream.Options{
		Timeout:     cfg.UpstreamTimeout,
		InsecureTLS: cfg.UpstreamInsecureTLS,
	})
	c := classifier.NewHTTPClassifier(cfg.ClassifierURL, client)
	s := feedback.NewHTTPSender(cfg.FeedbackURL, client)

	previews, err := preview.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview store: %w", err)
	}

	catalog := labels.NewCatalog(cfg.KnownLabels)

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	sessions := session.NewManager(func(id string) *form.Form {
		return form.New(c, s, previews, form.Options{
			SessionID: id,
			Publisher: publisher,
		})
	}, cfg.SessionTTL)

	handler := transport.NewHandler(transport.Deps{
		Sessions: sessions,
		Previews: previews,
		Catalog:  catalog,
		Metrics:  metrics,
		Config:   cfg,
	})

	return &Container{
		sessions: sessions,
		handler:  handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Sessions returns the session manager
func (c *Container) Sessions() *session.Manager {
	return c.sessions
}
