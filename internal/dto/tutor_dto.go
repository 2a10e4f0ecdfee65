package dto

import (
	"time"

	"github.com/google/uuid"
)

// AskRequest is the inbound payload for one tutoring turn.
type AskRequest struct {
	Message   string                `json:"message" validate:"required,min=1,max=8000"`
	Subject   string                `json:"subject" validate:"required"`
	Level     string                `json:"level" validate:"required,oneof=cp ce1 ce2 cm1 cm2 sixieme cinquieme quatrieme troisieme seconde premiere terminale"`
	FirstName string                `json:"firstName,omitempty"`
	FileId    *uuid.UUID            `json:"fileId,omitempty"`
	SessionId uuid.UUID             `json:"sessionId" validate:"required"`
	History   []ConversationTurnDTO `json:"history" validate:"dive"`
}

// ConversationTurnDTO is one prior turn supplied by the caller.
type ConversationTurnDTO struct {
	Role      string    `json:"role" validate:"required,oneof=user assistant"`
	Content   string    `json:"content" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
	FileId    *uuid.UUID `json:"fileId,omitempty"`
}

// TurnCompletedMessage is published on the in-process bus when a stream
// reaches its terminal chunk.
type TurnCompletedMessage struct {
	UserId           uuid.UUID `json:"user_id"`
	SessionId        uuid.UUID `json:"session_id"`
	Subject          string    `json:"subject"`
	Level            string    `json:"level"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	UsedRetrieval    bool      `json:"used_retrieval"`
	FinishReason     string    `json:"finish_reason"`
	CompletedAt      time.Time `json:"completed_at"`
}
