package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/validation"
	"github.com/noah-isme/therapy-api/pkg/ai"
)

// ErrUpstream is returned when the inference service fails. Nothing is
// persisted in that case.
var ErrUpstream = ai.ErrUpstream

// MediaStore persists raw analysis inputs and returns a retrievable reference.
type MediaStore interface {
	Put(ctx context.Context, name, mimeType string, reader io.Reader) (string, error)
}

// AnalysisService proxies inference requests and stores their results.
type AnalysisService interface {
	AnalyzeSpeech(ctx context.Context, principal access.Principal, payload dto.SpeechAnalysisRequest) (dto.AnalysisResponse, error)
	AnalyzeBehavior(ctx context.Context, principal access.Principal, payload dto.BehaviorAnalysisRequest) (dto.AnalysisResponse, error)
	DetectEmotion(ctx context.Context, principal access.Principal, payload dto.EmotionDetectionRequest) (dto.AnalysisResponse, error)
	PredictProgress(ctx context.Context, principal access.Principal, payload dto.StudentAnalysisRequest) (dto.AnalysisResponse, error)
	DetectRisk(ctx context.Context, principal access.Principal, payload dto.StudentAnalysisRequest) (dto.AnalysisResponse, error)
	GenerateIEP(ctx context.Context, principal access.Principal, payload dto.StudentAnalysisRequest) (dto.AnalysisResponse, error)
	Results(ctx context.Context, principal access.Principal, studentID uuid.UUID) ([]dto.AnalysisResponse, error)
}

// AnalysisSources groups the repositories read when assembling inference payloads.
type AnalysisSources struct {
	Students repository.StudentRepository
	Sessions repository.SessionRepository
	Progress repository.ProgressRepository
	Plans    repository.IEPRepository
}

// AnalysisServiceConfig configures media handling.
type AnalysisServiceConfig struct {
	MediaMaxBytes int64
	Media         MediaStore
}

type analysisService struct {
	repo      repository.AnalysisRepository
	sources   AnalysisSources
	gate      studentGate
	analyzer  ai.Analyzer
	media     MediaStore
	maxBytes  int64
	validator *validation.Validator
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewAnalysisService constructs the AI proxy service.
func NewAnalysisService(repo repository.AnalysisRepository, sources AnalysisSources, analyzer ai.Analyzer, validator *validation.Validator, activity ActivityRecorder, cfg AnalysisServiceConfig, logger zerolog.Logger) AnalysisService {
	maxBytes := cfg.MediaMaxBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}

	return &analysisService{
		repo:      repo,
		sources:   sources,
		gate:      studentGate{students: sources.Students},
		analyzer:  analyzer,
		media:     cfg.Media,
		maxBytes:  maxBytes,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "analysis_service").Logger(),
	}
}

// mediaKind describes a base64 media modality.
type mediaKind struct {
	field        string
	upstreamKey  string
	endpoint     ai.Endpoint
	analysisType models.AnalysisType
	mimePrefixes []string
}

var (
	speechMedia = mediaKind{
		field:        "audioData",
		upstreamKey:  "audio_data",
		endpoint:     ai.EndpointSpeech,
		analysisType: models.AnalysisSpeech,
		mimePrefixes: []string{"audio/", "video/"},
	}
	behaviorMedia = mediaKind{
		field:        "videoData",
		upstreamKey:  "video_data",
		endpoint:     ai.EndpointBehavior,
		analysisType: models.AnalysisBehavior,
		mimePrefixes: []string{"video/"},
	}
	emotionMedia = mediaKind{
		field:        "imageData",
		upstreamKey:  "image_data",
		endpoint:     ai.EndpointEmotion,
		analysisType: models.AnalysisEmotion,
		mimePrefixes: []string{"image/"},
	}
)

func (s *analysisService) AnalyzeSpeech(ctx context.Context, principal access.Principal, payload dto.SpeechAnalysisRequest) (dto.AnalysisResponse, error) {
	return s.analyzeMedia(ctx, principal, payload, payload.AnalysisTarget, payload.AudioData, speechMedia)
}

func (s *analysisService) AnalyzeBehavior(ctx context.Context, principal access.Principal, payload dto.BehaviorAnalysisRequest) (dto.AnalysisResponse, error) {
	return s.analyzeMedia(ctx, principal, payload, payload.AnalysisTarget, payload.VideoData, behaviorMedia)
}

func (s *analysisService) DetectEmotion(ctx context.Context, principal access.Principal, payload dto.EmotionDetectionRequest) (dto.AnalysisResponse, error) {
	return s.analyzeMedia(ctx, principal, payload, payload.AnalysisTarget, payload.ImageData, emotionMedia)
}

func (s *analysisService) analyzeMedia(ctx context.Context, principal access.Principal, payload interface{}, target dto.AnalysisTarget, encoded string, kind mediaKind) (dto.AnalysisResponse, error) {
	if !access.CanMutate(principal.Role) {
		return dto.AnalysisResponse{}, ErrForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.AnalysisResponse{}, err
	}

	studentID, sessionID, err := s.resolveTarget(ctx, principal, target)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	raw, err := s.decodeMedia(encoded, kind)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}
	mimeType := mimetype.Detect(raw).String()
	if !hasAnyPrefix(mimeType, kind.mimePrefixes) {
		return dto.AnalysisResponse{}, validation.FieldError(kind.field, fmt.Sprintf("%s has unsupported media type %s", kind.field, mimeType))
	}

	result, err := s.analyzer.Analyze(ctx, kind.endpoint, map[string]interface{}{
		kind.upstreamKey: stripDataURL(encoded),
		"student_id":     studentID.String(),
	})
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	inputRef := s.storeMedia(ctx, kind, studentID, mimeType, raw)
	return s.persist(ctx, principal, studentID, sessionID, kind.analysisType, &inputRef, result)
}

func (s *analysisService) PredictProgress(ctx context.Context, principal access.Principal, payload dto.StudentAnalysisRequest) (dto.AnalysisResponse, error) {
	studentID, sessionID, err := s.prepare(ctx, principal, payload)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	history, err := s.sources.Progress.ListByStudent(ctx, studentID, progressHistoryLimit)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	result, err := s.analyzer.Analyze(ctx, ai.EndpointProgress, map[string]interface{}{
		"student_id":    studentID.String(),
		"progress_data": dto.NewProgressResponses(history),
	})
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	return s.persist(ctx, principal, studentID, sessionID, models.AnalysisProgressPrediction, nil, result)
}

func (s *analysisService) DetectRisk(ctx context.Context, principal access.Principal, payload dto.StudentAnalysisRequest) (dto.AnalysisResponse, error) {
	studentID, sessionID, err := s.prepare(ctx, principal, payload)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	history, err := s.sources.Progress.ListByStudent(ctx, studentID, progressHistoryLimit)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	behavior, err := s.repo.ListByStudent(ctx, studentID, models.AnalysisBehavior, progressHistoryLimit)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	behavioral := make([]json.RawMessage, 0, len(behavior))
	for _, entry := range behavior {
		if len(entry.Results) > 0 {
			behavioral = append(behavioral, json.RawMessage(entry.Results))
		}
	}

	result, err := s.analyzer.Analyze(ctx, ai.EndpointRisk, map[string]interface{}{
		"student_id":      studentID.String(),
		"behavioral_data": behavioral,
		"progress_data":   dto.NewProgressResponses(history),
	})
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	return s.persist(ctx, principal, studentID, sessionID, models.AnalysisRiskDetection, nil, result)
}

func (s *analysisService) GenerateIEP(ctx context.Context, principal access.Principal, payload dto.StudentAnalysisRequest) (dto.AnalysisResponse, error) {
	studentID, sessionID, err := s.prepare(ctx, principal, payload)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	student, err := s.gate.fetch(ctx, studentID)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	history, err := s.sources.Progress.ListByStudent(ctx, studentID, progressHistoryLimit)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	plans, err := s.sources.Plans.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	currentPlans := make([]dto.IEPPlanResponse, 0, len(plans))
	for _, plan := range plans {
		currentPlans = append(currentPlans, dto.NewIEPPlanResponse(plan))
	}

	profile := dto.NewStudentResponse(student)
	result, err := s.analyzer.Analyze(ctx, ai.EndpointIEP, map[string]interface{}{
		"student_data": map[string]interface{}{
			"id":              profile.ID,
			"full_name":       profile.FullName,
			"date_of_birth":   profile.DateOfBirth,
			"gender":          profile.Gender,
			"recent_progress": dto.NewProgressResponses(history),
			"active_plans":    currentPlans,
		},
	})
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	return s.persist(ctx, principal, studentID, sessionID, models.AnalysisIEPGeneration, nil, result)
}

func (s *analysisService) Results(ctx context.Context, principal access.Principal, studentID uuid.UUID) ([]dto.AnalysisResponse, error) {
	if _, err := s.gate.readable(ctx, principal, studentID); err != nil {
		return nil, err
	}

	results, err := s.repo.ListByStudent(ctx, studentID, "", 0)
	if err != nil {
		return nil, err
	}
	return dto.NewAnalysisResponses(results), nil
}

// prepare runs the role, validation and student checks shared by record-based analyses.
func (s *analysisService) prepare(ctx context.Context, principal access.Principal, payload dto.StudentAnalysisRequest) (uuid.UUID, *uuid.UUID, error) {
	if !access.CanMutate(principal.Role) {
		return uuid.Nil, nil, ErrForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		return uuid.Nil, nil, err
	}

	return s.resolveTarget(ctx, principal, payload.AnalysisTarget)
}

// resolveTarget checks the student is readable and the optional session belongs to it.
func (s *analysisService) resolveTarget(ctx context.Context, principal access.Principal, target dto.AnalysisTarget) (uuid.UUID, *uuid.UUID, error) {
	studentID, err := parseUUID("studentId", target.StudentID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	var sessionID *uuid.UUID
	if target.SessionID != nil && strings.TrimSpace(*target.SessionID) != "" {
		id, err := parseUUID("sessionId", *target.SessionID)
		if err != nil {
			return uuid.Nil, nil, err
		}
		sessionID = &id
	}

	if _, err := s.gate.readable(ctx, principal, studentID); err != nil {
		return uuid.Nil, nil, err
	}

	if sessionID != nil {
		session, err := s.sources.Sessions.GetByID(ctx, *sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, nil, validation.FieldError("sessionId", "sessionId must reference an existing session")
			}
			return uuid.Nil, nil, err
		}
		if session.StudentID != studentID {
			return uuid.Nil, nil, validation.FieldError("sessionId", "sessionId belongs to a different student")
		}
	}

	return studentID, sessionID, nil
}

func (s *analysisService) decodeMedia(encoded string, kind mediaKind) ([]byte, error) {
	data := stripDataURL(encoded)
	if int64(base64.StdEncoding.DecodedLen(len(data))) > s.maxBytes+2 {
		return nil, validation.FieldError(kind.field, fmt.Sprintf("%s exceeds the %d byte limit", kind.field, s.maxBytes))
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, validation.FieldError(kind.field, kind.field+" must be base64 encoded")
	}
	if len(raw) == 0 {
		return nil, validation.FieldError(kind.field, kind.field+" must not be empty")
	}
	if int64(len(raw)) > s.maxBytes {
		return nil, validation.FieldError(kind.field, fmt.Sprintf("%s exceeds the %d byte limit", kind.field, s.maxBytes))
	}
	return raw, nil
}

// storeMedia keeps the raw input when a store is configured. The content
// digest is used as the reference otherwise, or when the upload fails.
func (s *analysisService) storeMedia(ctx context.Context, kind mediaKind, studentID uuid.UUID, mimeType string, raw []byte) string {
	digest := sha256.Sum256(raw)
	reference := "sha256:" + hex.EncodeToString(digest[:])

	if s.media == nil {
		return reference
	}

	name := fmt.Sprintf("%s-%s-%s", kind.analysisType, studentID, hex.EncodeToString(digest[:6]))
	url, err := s.media.Put(ctx, name, mimeType, bytes.NewReader(raw))
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_type", string(kind.analysisType)).Msg("failed to store analysis media")
		return reference
	}
	return url
}

func (s *analysisService) persist(ctx context.Context, principal access.Principal, studentID uuid.UUID, sessionID *uuid.UUID, analysisType models.AnalysisType, inputRef *string, result ai.Result) (dto.AnalysisResponse, error) {
	entry := models.AIAnalysisResult{
		StudentID:       studentID,
		SessionID:       sessionID,
		AnalysisType:    analysisType,
		InputRef:        inputRef,
		Results:         datatypes.JSON(result.Payload),
		ConfidenceScore: result.Confidence,
		RequestedBy:     principal.UserID,
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.Error().Err(err).Str("analysis_type", string(analysisType)).Msg("failed to store analysis result")
		return dto.AnalysisResponse{}, err
	}

	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "analysis.created",
		EntityType: "analysis",
		EntityID:   &entry.ID,
		StudentID:  &studentID,
		Metadata: map[string]interface{}{
			"student_id":    studentID.String(),
			"analysis_type": string(analysisType),
		},
	})

	return dto.NewAnalysisResponse(entry), nil
}

// stripDataURL removes a "data:<mime>;base64," prefix if present.
func stripDataURL(encoded string) string {
	data := strings.TrimSpace(encoded)
	if strings.HasPrefix(data, "data:") {
		if idx := strings.Index(data, ","); idx >= 0 {
			return data[idx+1:]
		}
	}
	return data
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
