package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/therapy-api/internal/models"
)

// AnalysisTarget identifies the student (and optionally session) an analysis is about.
type AnalysisTarget struct {
	StudentID string  `json:"studentId" validate:"required,uuid"`
	SessionID *string `json:"sessionId" validate:"omitempty,uuid"`
}

// SpeechAnalysisRequest carries base64 encoded audio.
type SpeechAnalysisRequest struct {
	AnalysisTarget
	AudioData string `json:"audioData" validate:"required"`
}

// BehaviorAnalysisRequest carries base64 encoded video.
type BehaviorAnalysisRequest struct {
	AnalysisTarget
	VideoData string `json:"videoData" validate:"required"`
}

// EmotionDetectionRequest carries a base64 encoded image.
type EmotionDetectionRequest struct {
	AnalysisTarget
	ImageData string `json:"imageData" validate:"required"`
}

// StudentAnalysisRequest triggers analyses computed from stored records.
type StudentAnalysisRequest struct {
	AnalysisTarget
}

// AnalysisResponse is the public view of a stored analysis.
type AnalysisResponse struct {
	ID              uuid.UUID       `json:"id"`
	StudentID       uuid.UUID       `json:"student_id"`
	SessionID       *uuid.UUID      `json:"session_id"`
	AnalysisType    string          `json:"analysis_type"`
	InputRef        *string         `json:"input_ref"`
	Results         json.RawMessage `json:"results"`
	ConfidenceScore *float64        `json:"confidence_score"`
	RequestedBy     uuid.UUID       `json:"requested_by"`
	AnalysisDate    time.Time       `json:"analysis_date"`
}

// NewAnalysisResponse maps an analysis model.
func NewAnalysisResponse(result models.AIAnalysisResult) AnalysisResponse {
	results := json.RawMessage(result.Results)
	if len(results) == 0 {
		results = json.RawMessage("null")
	}

	return AnalysisResponse{
		ID:              result.ID,
		StudentID:       result.StudentID,
		SessionID:       result.SessionID,
		AnalysisType:    string(result.AnalysisType),
		InputRef:        result.InputRef,
		Results:         results,
		ConfidenceScore: result.ConfidenceScore,
		RequestedBy:     result.RequestedBy,
		AnalysisDate:    result.AnalysisDate,
	}
}

// NewAnalysisResponses maps a slice of analyses.
func NewAnalysisResponses(results []models.AIAnalysisResult) []AnalysisResponse {
	responses := make([]AnalysisResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, NewAnalysisResponse(result))
	}
	return responses
}
