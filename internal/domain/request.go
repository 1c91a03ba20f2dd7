package domain

// AnswerRequest is the input to the answer pipeline.
type AnswerRequest struct {
	UserID    string `json:"-"`
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// AnswerResult is the output of the answer pipeline.
// Image is nil when the image sub-pipeline failed; ImageError then says why.
type AnswerResult struct {
	Text       string         `json:"text"`
	Image      *string        `json:"image"`
	SessionID  string         `json:"session_id"`
	ImageError *PipelineError `json:"image_error,omitempty"`
}

// StageEvent reports a pipeline transition to session subscribers.
type StageEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"-"`
	SessionID string `json:"session_id"`
	Stage     Stage  `json:"stage"`
	Ts        int64  `json:"ts"` // Unix milliseconds
	Error     string `json:"error,omitempty"`
}

// EventTypeStage is the StageEvent type on the wire.
const EventTypeStage = "stage"
