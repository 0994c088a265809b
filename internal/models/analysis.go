package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnalysisType names the inference modality that produced a result.
type AnalysisType string

const (
	AnalysisSpeech             AnalysisType = "speech"
	AnalysisBehavior           AnalysisType = "behavior"
	AnalysisEmotion            AnalysisType = "emotion"
	AnalysisProgressPrediction AnalysisType = "progress_prediction"
	AnalysisRiskDetection      AnalysisType = "risk_detection"
	AnalysisIEPGeneration      AnalysisType = "iep_generation"
)

// AIAnalysisResult stores the opaque payload returned by the inference
// service. Rows are append-only.
type AIAnalysisResult struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	SessionID       *uuid.UUID     `gorm:"type:uuid;index" json:"session_id"`
	AnalysisType    AnalysisType   `gorm:"size:32;not null;index" json:"analysis_type"`
	InputRef        *string        `gorm:"size:512" json:"input_ref"`
	Results         datatypes.JSON `json:"results"`
	ConfidenceScore *float64       `json:"confidence_score"`
	RequestedBy     uuid.UUID      `gorm:"type:uuid;not null" json:"requested_by"`
	AnalysisDate    time.Time      `gorm:"not null;index" json:"analysis_date"`
}

// TableName matches the analysis table name.
func (AIAnalysisResult) TableName() string {
	return "ai_analysis_results"
}

// BeforeCreate assigns a primary key and the analysis timestamp.
func (r *AIAnalysisResult) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.AnalysisDate.IsZero() {
		r.AnalysisDate = time.Now().UTC()
	}
	return nil
}
