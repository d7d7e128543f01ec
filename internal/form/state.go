package form

import (
	"fmt"
	"math"

	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

// User-visible messages. Failure causes are never shown.
const (
	MsgNoImage        = "Please select or drop an image"
	MsgRequestFailed  = "Failed to process image. Please try again."
	MsgFeedbackSent   = "Feedback submitted successfully"
	MsgFeedbackFailed = "Failed to submit feedback"
	MsgNoJudgment     = "Please choose whether the prediction was correct"
)

// FeedbackStatus tracks the feedback request for the current prediction.
type FeedbackStatus int

const (
	FeedbackNone FeedbackStatus = iota
	FeedbackPending
	FeedbackSent
	FeedbackFailed
)

func (s FeedbackStatus) String() string {
	switch s {
	case FeedbackPending:
		return "pending"
	case FeedbackSent:
		return "sent"
	case FeedbackFailed:
		return "failed"
	default:
		return "none"
	}
}

// Phase is the position of a form in its image lifecycle.
type Phase string

const (
	PhaseEmpty           Phase = "empty"
	PhaseSelected        Phase = "selected"
	PhaseSubmitting      Phase = "submitting"
	PhaseResult          Phase = "result"
	PhaseError           Phase = "error"
	PhaseFeedbackPending Phase = "feedback_pending"
	PhaseFeedbackSent    Phase = "feedback_sent"
	PhaseFeedbackFailed  Phase = "feedback_failed"
)

// State is the view-state record of one upload form.
//
// PreviewURL is non-empty iff SelectedImage is non-nil. CorrectedLabel is
// only meaningful while UserJudgment points to false.
type State struct {
	SelectedImage   *models.Image
	PreviewURL      string
	PredictionLabel string
	Confidence      float64
	IsUploading     bool
	ErrorMessage    string
	UserJudgment    *bool
	CorrectedLabel  string
	Notice          string
	FeedbackStatus  FeedbackStatus
}

// Phase derives the lifecycle position from the record.
func (s State) Phase() Phase {
	switch {
	case s.SelectedImage == nil:
		return PhaseEmpty
	case s.IsUploading:
		return PhaseSubmitting
	case s.FeedbackStatus == FeedbackPending:
		return PhaseFeedbackPending
	case s.FeedbackStatus == FeedbackSent:
		return PhaseFeedbackSent
	case s.FeedbackStatus == FeedbackFailed:
		return PhaseFeedbackFailed
	case s.PredictionLabel != "":
		return PhaseResult
	case s.ErrorMessage != "":
		return PhaseError
	default:
		return PhaseSelected
	}
}

// CanClassify reports whether the classify action is enabled.
func (s State) CanClassify() bool {
	return s.SelectedImage != nil && !s.IsUploading
}

// CanGiveFeedback reports whether feedback controls are shown.
func (s State) CanGiveFeedback() bool {
	return s.SelectedImage != nil && s.PredictionLabel != "" && s.FeedbackStatus != FeedbackPending
}

// View renders the record for templates and JSON clients.
func (s State) View() models.FormView {
	v := models.FormView{
		Phase:           string(s.Phase()),
		HasImage:        s.SelectedImage != nil,
		PreviewURL:      s.PreviewURL,
		PredictionLabel: s.PredictionLabel,
		Confidence:      s.Confidence,
		IsUploading:     s.IsUploading,
		ErrorMessage:    s.ErrorMessage,
		CorrectedLabel:  s.CorrectedLabel,
		Notice:          s.Notice,
		FeedbackStatus:  s.FeedbackStatus.String(),
	}
	if s.SelectedImage != nil {
		v.ImageName = s.SelectedImage.Name
	}
	if s.PredictionLabel != "" {
		v.ConfidenceText = FormatConfidence(s.Confidence)
	}
	if s.UserJudgment != nil {
		j := *s.UserJudgment
		v.UserJudgment = &j
	}
	return v
}

// FormatConfidence renders a [0,1] confidence as a percentage with two
// decimals, e.g. 0.9345 -> "93.45%".
func FormatConfidence(c float64) string {
	// Round on the scaled integer so 0.9345*100 does not print as 93.44.
	pct := math.Round(c*10000) / 100
	return fmt.Sprintf("%.2f%%", pct)
}
