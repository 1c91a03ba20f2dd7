package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrEmptyQuery       = errors.New("query must not be empty")
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrQueryRejected    = errors.New("query rejected by policy")
	ErrDuplicateRequest = errors.New("message already recorded for request")
)

// PipelineError is a failure of one pipeline stage.
type PipelineError struct {
	Kind  FailureKind
	Stage Stage
	Err   error
}

// NewPipelineError wraps err with its kind and stage.
func NewPipelineError(kind FailureKind, stage Stage, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s failure at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as {kind, stage, error}.
func (e *PipelineError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(map[string]string{
		"kind":  string(e.Kind),
		"stage": string(e.Stage),
		"error": msg,
	})
}

// KindOf returns the failure kind of err, or "" if it is not a PipelineError.
func KindOf(err error) FailureKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (e *PipelineError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  FailureKind `json:"kind"`
		Stage Stage       `json:"stage"`
		Error string      `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Kind = raw.Kind
	e.Stage = raw.Stage
	e.Err = errors.New(raw.Error)
	return nil
}
