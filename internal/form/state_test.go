package form

import (
	"testing"

	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

func TestFormatConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.9345, "93.45%"},
		{0.93, "93.00%"},
		{0, "0.00%"},
		{1, "100.00%"},
		{0.005, "0.50%"},
	}
	for _, tt := range tests {
		if got := FormatConfidence(tt.in); got != tt.want {
			t.Errorf("FormatConfidence(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestState_Phase(t *testing.T) {
	img := &models.Image{Name: "leaf.jpg"}

	tests := []struct {
		name  string
		state State
		want  Phase
	}{
		{"empty", State{}, PhaseEmpty},
		{"empty with validation error", State{ErrorMessage: MsgNoImage}, PhaseEmpty},
		{"selected", State{SelectedImage: img, PreviewURL: "/preview/1"}, PhaseSelected},
		{"submitting", State{SelectedImage: img, IsUploading: true}, PhaseSubmitting},
		{"result", State{SelectedImage: img, PredictionLabel: "Tomato_Blight"}, PhaseResult},
		{"error", State{SelectedImage: img, ErrorMessage: MsgRequestFailed}, PhaseError},
		{"feedback pending", State{SelectedImage: img, PredictionLabel: "x", FeedbackStatus: FeedbackPending}, PhaseFeedbackPending},
		{"feedback sent", State{SelectedImage: img, PredictionLabel: "x", FeedbackStatus: FeedbackSent}, PhaseFeedbackSent},
		{"feedback failed", State{SelectedImage: img, PredictionLabel: "x", FeedbackStatus: FeedbackFailed}, PhaseFeedbackFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Phase(); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestState_View(t *testing.T) {
	judgment := false
	s := State{
		SelectedImage:   &models.Image{Name: "leaf.jpg"},
		PreviewURL:      "/preview/abc",
		PredictionLabel: "Tomato_Blight",
		Confidence:      0.9345,
		UserJudgment:    &judgment,
		CorrectedLabel:  "Tomato_Healthy",
		FeedbackStatus:  FeedbackFailed,
		Notice:          MsgFeedbackFailed,
	}

	v := s.View()
	if !v.HasImage || v.ImageName != "leaf.jpg" || v.PreviewURL != "/preview/abc" {
		t.Errorf("Unexpected image fields %+v", v)
	}
	if v.ConfidenceText != "93.45%" {
		t.Errorf("Expected 93.45%%, got %s", v.ConfidenceText)
	}
	if v.Phase != string(PhaseFeedbackFailed) || v.FeedbackStatus != "failed" {
		t.Errorf("Unexpected phase fields %+v", v)
	}
	if v.UserJudgment == nil || *v.UserJudgment {
		t.Error("Expected judgment false in view")
	}

	// The view owns its judgment copy
	*v.UserJudgment = true
	if *s.UserJudgment {
		t.Error("View must not alias the state's judgment")
	}

	if empty := (State{}).View(); empty.ConfidenceText != "" || empty.HasImage {
		t.Errorf("Expected empty view, got %+v", empty)
	}
}

func TestState_Controls(t *testing.T) {
	img := &models.Image{}
	if (State{}).CanClassify() {
		t.Error("Classify must be disabled without an image")
	}
	if (State{SelectedImage: img, IsUploading: true}).CanClassify() {
		t.Error("Classify must be disabled while uploading")
	}
	if !(State{SelectedImage: img}).CanClassify() {
		t.Error("Classify should be enabled with an image")
	}
	if (State{SelectedImage: img}).CanGiveFeedback() {
		t.Error("Feedback must be hidden before a prediction")
	}
	if !(State{SelectedImage: img, PredictionLabel: "x"}).CanGiveFeedback() {
		t.Error("Feedback should be available after a prediction")
	}
}
