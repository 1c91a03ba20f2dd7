// Package domain defines the core domain models for the answer service.
package domain

// MessageType is the author of a ledger message.
type MessageType string

const (
	MessageTypeUser MessageType = "user"
	MessageTypeBot  MessageType = "bot"
)

// Stage is a state of the answer pipeline.
type Stage string

const (
	StageStart             Stage = "START"
	StageRetrieving        Stage = "RETRIEVING"
	StageGeneratingAnswer  Stage = "GENERATING_ANSWER"
	StageSummarizingVisual Stage = "SUMMARIZING_VISUAL"
	StageSynthesizingImage Stage = "SYNTHESIZING_IMAGE"
	StageUploading         Stage = "UPLOADING"
	StagePersisting        Stage = "PERSISTING"
	StageDone              Stage = "DONE"
	StageFailed            Stage = "FAILED"
)

// FailureKind classifies a pipeline failure.
type FailureKind string

const (
	FailureValidation  FailureKind = "validation"
	FailureRetrieval   FailureKind = "retrieval"
	FailureGeneration  FailureKind = "generation"
	FailurePersistence FailureKind = "persistence"
)

// DefaultPreview is the preview of a session with no user message.
const DefaultPreview = "New Chat"
