// Package form implements the upload form: one selected image, its
// classification result and the user's feedback on that result.
//
// A Form is safe for concurrent use. Network calls are made without holding
// the lock; every request is tagged with the selection generation it was
// issued for and its response is dropped if the selection changed meanwhile.
package form

import (
	"context"
	"sync"
	"time"

	"github.com/anime-shed/plant-classifier-go/internal/classifier"
	apperrors "github.com/anime-shed/plant-classifier-go/internal/errors"
	"github.com/anime-shed/plant-classifier-go/internal/feedback"
	"github.com/anime-shed/plant-classifier-go/internal/logger"
	"github.com/anime-shed/plant-classifier-go/internal/observer"
	"github.com/anime-shed/plant-classifier-go/internal/preview"
	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

var (
	// ErrInFlight rejects an action whose request is already running.
	ErrInFlight = apperrors.NewConflictError("request already in flight", nil)
	// ErrStale reports a response that arrived after a new image was selected.
	ErrStale = apperrors.NewConflictError("response discarded for superseded image", nil)
	// ErrClosed is returned by every operation after Close.
	ErrClosed = apperrors.NewConflictError("form closed", nil)
)

// DefaultPreviewPrefix is prepended to preview ids to build PreviewURL.
const DefaultPreviewPrefix = "/preview/"

// Options configure a Form.
type Options struct {
	SessionID     string
	PreviewPrefix string
	Publisher     observer.Subject
	Now           func() time.Time
}

// Form owns one view-state record.
type Form struct {
	classifier classifier.Classifier
	sender     feedback.Sender
	previews   preview.Store
	opts       Options

	mu               sync.Mutex
	state            State
	previewID        string
	generation       uint64
	feedbackInFlight bool
	closed           bool
}

// New creates an empty form.
func New(c classifier.Classifier, s feedback.Sender, previews preview.Store, opts Options) *Form {
	if opts.PreviewPrefix == "" {
		opts.PreviewPrefix = DefaultPreviewPrefix
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Form{
		classifier: c,
		sender:     s,
		previews:   previews,
		opts:       opts,
	}
}

// Snapshot returns a copy of the current state.
func (f *Form) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.state
	if s.UserJudgment != nil {
		j := *s.UserJudgment
		s.UserJudgment = &j
	}
	return s
}

// Generation returns the current selection generation.
func (f *Form) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

// SelectImage makes img the current image and resets everything derived
// from the previous one. A nil img is ignored.
func (f *Form) SelectImage(ctx context.Context, img *models.Image) error {
	if img == nil {
		return nil
	}

	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}

	id, err := f.previews.Put(ctx, *img)
	if err != nil {
		return apperrors.NewInternalError("failed to store preview", err)
	}

	selected := *img

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.releasePreview(ctx, id)
		return ErrClosed
	}
	superseded := f.previewID
	f.generation++
	gen := f.generation
	f.previewID = id
	f.state = State{
		SelectedImage: &selected,
		PreviewURL:    f.opts.PreviewPrefix + id,
	}
	f.mu.Unlock()

	if superseded != "" {
		f.releasePreview(ctx, superseded)
	}

	f.publish(ctx, observer.FormEvent{
		EventType:  observer.ImageSelected,
		Generation: gen,
		ImageName:  selected.Name,
		Metadata:   map[string]interface{}{"size_bytes": selected.Size()},
	})
	return nil
}

// Classify sends the selected image to the classifier and records the result.
func (f *Form) Classify(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.state.SelectedImage == nil {
		f.state.ErrorMessage = MsgNoImage
		gen := f.generation
		f.mu.Unlock()

		f.publish(ctx, observer.FormEvent{
			EventType:  observer.ClassificationRejected,
			Generation: gen,
			Metadata:   map[string]interface{}{"reason": "no_image"},
		})
		return apperrors.NewValidationError(MsgNoImage, nil)
	}
	if f.state.IsUploading {
		gen := f.generation
		f.mu.Unlock()

		f.publish(ctx, observer.FormEvent{
			EventType:  observer.ClassificationRejected,
			Generation: gen,
			Metadata:   map[string]interface{}{"reason": "in_flight"},
		})
		return ErrInFlight
	}

	f.state.IsUploading = true
	f.state.ErrorMessage = ""
	if !f.feedbackInFlight {
		// An outstanding feedback request keeps its pending status until it returns.
		f.state.Notice = ""
		f.state.FeedbackStatus = FeedbackNone
	}
	img := *f.state.SelectedImage
	gen := f.generation
	f.mu.Unlock()

	f.publish(ctx, observer.FormEvent{
		EventType:  observer.ClassificationStarted,
		Generation: gen,
		ImageName:  img.Name,
	})

	start := f.opts.Now()
	pred, err := f.classifier.Classify(ctx, img)
	elapsed := f.opts.Now().Sub(start)

	f.mu.Lock()
	if f.closed || gen != f.generation {
		f.mu.Unlock()
		f.publish(ctx, observer.FormEvent{
			EventType:  observer.ClassificationStale,
			Generation: gen,
			ImageName:  img.Name,
			Duration:   elapsed,
			Err:        err,
		})
		return ErrStale
	}

	f.state.IsUploading = false
	if err != nil {
		f.state.ErrorMessage = MsgRequestFailed
		f.state.PredictionLabel = ""
		f.state.Confidence = 0
		f.mu.Unlock()

		f.publish(ctx, observer.FormEvent{
			EventType:  observer.ClassificationFailed,
			Generation: gen,
			ImageName:  img.Name,
			Duration:   elapsed,
			Err:        err,
		})
		return apperrors.NewRequestFailedError(MsgRequestFailed, err)
	}

	f.state.PredictionLabel = pred.Label
	f.state.Confidence = pred.Confidence
	f.state.ErrorMessage = ""
	f.mu.Unlock()

	f.publish(ctx, observer.FormEvent{
		EventType:  observer.ClassificationSucceeded,
		Generation: gen,
		ImageName:  img.Name,
		Duration:   elapsed,
		Metadata: map[string]interface{}{
			"label":      pred.Label,
			"confidence": pred.Confidence,
		},
	})
	return nil
}

// SubmitFeedback reports whether the current prediction is correct. It is a
// no-op until an image has been classified. correctedLabel is only sent
// when judgment is false.
func (f *Form) SubmitFeedback(ctx context.Context, judgment bool, correctedLabel string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.state.SelectedImage == nil || f.state.PredictionLabel == "" {
		f.mu.Unlock()
		return nil
	}
	if f.feedbackInFlight {
		f.mu.Unlock()
		return ErrInFlight
	}

	j := judgment
	f.state.UserJudgment = &j
	f.state.CorrectedLabel = correctedLabel
	f.state.FeedbackStatus = FeedbackPending
	f.state.Notice = ""
	f.feedbackInFlight = true

	fb := models.Feedback{
		Image:        *f.state.SelectedImage,
		Prediction:   f.state.PredictionLabel,
		IsCorrect:    judgment,
		CorrectLabel: correctedLabel,
	}
	gen := f.generation
	f.mu.Unlock()

	err := f.sender.Submit(ctx, fb)

	f.mu.Lock()
	f.feedbackInFlight = false
	if f.closed || gen != f.generation {
		f.mu.Unlock()
		f.publish(ctx, observer.FormEvent{
			EventType:  observer.FeedbackStale,
			Generation: gen,
			ImageName:  fb.Image.Name,
			Err:        err,
		})
		return ErrStale
	}

	if err != nil {
		// Judgment and label stay so the user can retry.
		f.state.Notice = MsgFeedbackFailed
		f.state.FeedbackStatus = FeedbackFailed
		f.mu.Unlock()

		f.publish(ctx, observer.FormEvent{
			EventType:  observer.FeedbackFailed,
			Generation: gen,
			ImageName:  fb.Image.Name,
			Err:        err,
		})
		return apperrors.NewRequestFailedError(MsgFeedbackFailed, err)
	}

	f.state.Notice = MsgFeedbackSent
	f.state.FeedbackStatus = FeedbackSent
	f.state.UserJudgment = nil
	f.state.CorrectedLabel = ""
	f.mu.Unlock()

	f.publish(ctx, observer.FormEvent{
		EventType:  observer.FeedbackSent,
		Generation: gen,
		ImageName:  fb.Image.Name,
		Metadata: map[string]interface{}{
			"prediction": fb.Prediction,
			"is_correct": judgment,
		},
	})
	return nil
}

// RejectFeedback records a feedback submission that carried no verdict. The
// notice is only shown while feedback can be given.
func (f *Form) RejectFeedback(ctx context.Context) error {
	err := apperrors.NewValidationError(MsgNoJudgment, nil)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.state.PredictionLabel == "" || f.feedbackInFlight {
		f.mu.Unlock()
		return err
	}
	f.state.Notice = MsgNoJudgment
	gen := f.generation
	f.mu.Unlock()

	f.publish(ctx, observer.FormEvent{
		EventType:  observer.FeedbackRejected,
		Generation: gen,
		Metadata:   map[string]interface{}{"reason": "no_judgment"},
	})
	return err
}

// Close tears the form down and releases its preview. In-flight responses
// arriving afterwards are discarded. Close is idempotent.
func (f *Form) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.generation++
	gen := f.generation
	id := f.previewID
	f.previewID = ""
	f.state = State{}
	f.mu.Unlock()

	if id != "" {
		f.releasePreview(ctx, id)
	}
	f.publish(ctx, observer.FormEvent{EventType: observer.FormClosed, Generation: gen})
	return nil
}

func (f *Form) releasePreview(ctx context.Context, id string) {
	if err := f.previews.Release(ctx, id); err != nil {
		logger.WithError(err).
			WithField("session_id", f.opts.SessionID).
			WithField("preview_id", id).
			Warn("Failed to release preview")
	}
}

func (f *Form) publish(ctx context.Context, event observer.FormEvent) {
	if f.opts.Publisher == nil {
		return
	}
	event.SessionID = f.opts.SessionID
	f.opts.Publisher.NotifyObservers(ctx, event)
}
