package feedback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anime-shed/plant-classifier-go/internal/upstream"
	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

func TestSubmit_Fields(t *testing.T) {
	tests := []struct {
		name             string
		feedback         models.Feedback
		wantIsCorrect    string
		wantCorrectLabel string
		wantLabelPresent bool
	}{
		{
			name: "correct omits label even when set",
			feedback: models.Feedback{
				Prediction: "Tomato_Blight", IsCorrect: true, CorrectLabel: "Tomato_Healthy",
			},
			wantIsCorrect: "true",
		},
		{
			name: "incorrect with label",
			feedback: models.Feedback{
				Prediction: "Tomato_Blight", IsCorrect: false, CorrectLabel: "Tomato_Healthy",
			},
			wantIsCorrect:    "false",
			wantCorrectLabel: "Tomato_Healthy",
			wantLabelPresent: true,
		},
		{
			name: "incorrect without label",
			feedback: models.Feedback{
				Prediction: "Tomato_Blight", IsCorrect: false,
			},
			wantIsCorrect: "false",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("Failed to parse multipart: %v", err)
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				if _, _, err := r.FormFile("file"); err != nil {
					t.Errorf("Expected file part: %v", err)
				}
				if got := r.FormValue("prediction"); got != "Tomato_Blight" {
					t.Errorf("Expected prediction Tomato_Blight, got %q", got)
				}
				if got := r.FormValue("is_correct"); got != tt.wantIsCorrect {
					t.Errorf("Expected is_correct %q, got %q", tt.wantIsCorrect, got)
				}
				_, present := r.MultipartForm.Value["correct_label"]
				if present != tt.wantLabelPresent {
					t.Errorf("Expected correct_label present=%v, got %v", tt.wantLabelPresent, present)
				}
				if got := r.FormValue("correct_label"); got != tt.wantCorrectLabel {
					t.Errorf("Expected correct_label %q, got %q", tt.wantCorrectLabel, got)
				}
				w.Write([]byte(`{"status":"ok"}`))
			}))
			defer server.Close()

			fb := tt.feedback
			fb.Image = models.Image{Name: "leaf.jpg", ContentType: "image/jpeg", Data: []byte("leaf")}

			sender := NewHTTPSender(server.URL, upstream.NewClient(upstream.Options{Timeout: 5 * time.Second}))
			if err := sender.Submit(context.Background(), fb); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSubmit_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL, upstream.NewClient(upstream.Options{Timeout: 5 * time.Second}))
	err := sender.Submit(context.Background(), models.Feedback{Prediction: "x", IsCorrect: true})
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
}
