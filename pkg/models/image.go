package models

// Image is an uploaded image file as received from the picker or a drop.
// Data is never decoded; the classifier owns interpretation of the bytes.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the length of the image payload in bytes.
func (i *Image) Size() int {
	if i == nil {
		return 0
	}
	return len(i.Data)
}

// Prediction is the classification endpoint's answer for one image.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Feedback is a user's verdict on a prediction, sent to the feedback endpoint.
// CorrectLabel is only transmitted when IsCorrect is false.
type Feedback struct {
	Image        Image
	Prediction   string
	IsCorrect    bool
	CorrectLabel string
}
