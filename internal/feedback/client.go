// Package feedback submits user verdicts on predictions to the feedback service.
package feedback

import (
	"context"
	"io"
	"strconv"

	"github.com/anime-shed/plant-classifier-go/internal/upstream"
	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

// Multipart field names understood by the feedback service.
const (
	FieldFile         = "file"
	FieldPrediction   = "prediction"
	FieldIsCorrect    = "is_correct"
	FieldCorrectLabel = "correct_label"
)

// Sender delivers one feedback record.
type Sender interface {
	Submit(ctx context.Context, fb models.Feedback) error
}

// HTTPSender posts feedback to a /feedback style endpoint.
type HTTPSender struct {
	endpoint string
	client   *upstream.Client
}

func NewHTTPSender(endpoint string, client *upstream.Client) *HTTPSender {
	return &HTTPSender{endpoint: endpoint, client: client}
}

// Submit posts fb. The response body carries no schema; only the status matters.
func (s *HTTPSender) Submit(ctx context.Context, fb models.Feedback) error {
	resp, err := s.client.PostMultipart(ctx, s.endpoint, FieldFile, &fb.Image, Fields(fb)...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return nil
}

// Fields returns the text fields for fb. correct_label is only present
// when the prediction was judged wrong and a label was supplied.
func Fields(fb models.Feedback) []upstream.Field {
	fields := []upstream.Field{
		{Name: FieldPrediction, Value: fb.Prediction},
		{Name: FieldIsCorrect, Value: strconv.FormatBool(fb.IsCorrect)},
	}
	if !fb.IsCorrect && fb.CorrectLabel != "" {
		fields = append(fields, upstream.Field{Name: FieldCorrectLabel, Value: fb.CorrectLabel})
	}
	return fields
}
