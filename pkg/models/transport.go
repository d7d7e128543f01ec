package models

// FormView is the JSON rendering of one session's upload form.
type FormView struct {
	Phase           string  `json:"phase"`
	HasImage        bool    `json:"has_image"`
	ImageName       string  `json:"image_name,omitempty"`
	PreviewURL      string  `json:"preview_url,omitempty"`
	PredictionLabel string  `json:"prediction_label"`
	Confidence      float64 `json:"confidence"`
	ConfidenceText  string  `json:"confidence_text,omitempty"`
	IsUploading     bool    `json:"is_uploading"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	UserJudgment    *bool   `json:"user_judgment"`
	CorrectedLabel  string  `json:"corrected_label,omitempty"`
	Notice          string  `json:"notice,omitempty"`
	FeedbackStatus  string  `json:"feedback_status"`
}

// LabelSuggestions answers a label lookup.
type LabelSuggestions struct {
	Query  string   `json:"query"`
	Labels []string `json:"labels"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
