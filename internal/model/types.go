package model

// TrainRequest carries the labeled colors for one training run.
type TrainRequest struct {
	Liked    []string `json:"liked" validate:"required,min=1"`
	Disliked []string `json:"disliked" validate:"required,min=1"`
}

// TrainResponse reports the outcome of a training run.
type TrainResponse struct {
	RunID         string  `json:"run_id"`
	EpochsRun     int     `json:"epochs_run"`
	StoppedEarly  bool    `json:"stopped_early"`
	FinalLoss     float64 `json:"final_loss"`
	FinalAccuracy float64 `json:"final_accuracy"`
	Persisted     bool    `json:"persisted"`
	DurationMS    int64   `json:"duration_ms"`
}

// PredictRequest asks for a preference prediction on one color.
type PredictRequest struct {
	Color string `json:"color" validate:"required"`
}

// PredictResponse is the prediction for a single color. For image
// uploads Color carries the hex of the extracted average color.
type PredictResponse struct {
	Color      string  `json:"color"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Likely     bool    `json:"likely"`
	Label      string  `json:"label"`
}

// HealthResponse reports service and model status.
type HealthResponse struct {
	Status   string `json:"status"`
	Restored bool   `json:"model_restored"`
	Trained  bool   `json:"model_trained"`
}

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
