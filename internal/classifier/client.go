// Package classifier talks to the remote image classification endpoint.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/anime-shed/plant-classifier-go/internal/upstream"
	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

// FileField is the multipart field carrying the image.
const FileField = "file"

// maxResponseBody caps the decoded prediction payload.
const maxResponseBody = 1 << 20

// Classifier returns a prediction for one image.
type Classifier interface {
	Classify(ctx context.Context, img models.Image) (*models.Prediction, error)
}

// HTTPClassifier posts images to a /predict style endpoint.
type HTTPClassifier struct {
	endpoint string
	client   *upstream.Client
}

// NewHTTPClassifier creates a classifier bound to endpoint.
func NewHTTPClassifier(endpoint string, client *upstream.Client) *HTTPClassifier {
	return &HTTPClassifier{endpoint: endpoint, client: client}
}

// wirePrediction keeps pointers so absent keys are distinguishable from zero values.
type wirePrediction struct {
	Label      *string  `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// Classify sends img as the "file" field and decodes {label, confidence}.
func (c *HTTPClassifier) Classify(ctx context.Context, img models.Image) (*models.Prediction, error) {
	resp, err := c.client.PostMultipart(ctx, c.endpoint, FileField, &img)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read prediction: %w", err)
	}
	return DecodePrediction(body)
}

// DecodePrediction validates a classification response body.
func DecodePrediction(body []byte) (*models.Prediction, error) {
	var wire wirePrediction
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed prediction: %w", err)
	}
	if wire.Label == nil || *wire.Label == "" {
		return nil, fmt.Errorf("malformed prediction: missing label")
	}
	if wire.Confidence == nil {
		return nil, fmt.Errorf("malformed prediction: missing confidence")
	}
	conf := *wire.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return nil, fmt.Errorf("malformed prediction: confidence %v outside [0,1]", conf)
	}
	return &models.Prediction{Label: *wire.Label, Confidence: conf}, nil
}
