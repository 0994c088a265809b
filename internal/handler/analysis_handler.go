package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/utils"
)

// AnalysisHandler exposes the AI proxy routes.
type AnalysisHandler struct {
	service service.AnalysisService
	logger  zerolog.Logger
}

// NewAnalysisHandler constructs the handler.
func NewAnalysisHandler(service service.AnalysisService, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger.With().Str("component", "analysis_handler").Logger(),
	}
}

// Register attaches AI routes to the router group.
func (h *AnalysisHandler) Register(router fiber.Router) {
	router.Post("/analyze-speech", h.speech)
	router.Post("/analyze-behavior", h.behavior)
	router.Post("/detect-emotion", h.emotion)
	router.Post("/predict-progress", h.studentAnalysis(h.service.PredictProgress))
	router.Post("/detect-risk", h.studentAnalysis(h.service.DetectRisk))
	router.Post("/generate-iep", h.studentAnalysis(h.service.GenerateIEP))
	router.Get("/results/:studentId", h.results)
}

func (h *AnalysisHandler) speech(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.SpeechAnalysisRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.AnalyzeSpeech(requestContext(c), principal, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "speech analysed", result)
}

func (h *AnalysisHandler) behavior(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.BehaviorAnalysisRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.AnalyzeBehavior(requestContext(c), principal, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "behavior analysed", result)
}

func (h *AnalysisHandler) emotion(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.EmotionDetectionRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.DetectEmotion(requestContext(c), principal, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "emotion detected", result)
}

type studentAnalysisFunc func(ctx context.Context, principal access.Principal, payload dto.StudentAnalysisRequest) (dto.AnalysisResponse, error)

func (h *AnalysisHandler) studentAnalysis(run studentAnalysisFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := principalFrom(c)
		if err != nil {
			return respondError(c, h.logger, err)
		}

		var payload dto.StudentAnalysisRequest
		if err := bindMutation(c, principal, &payload); err != nil {
			return respondError(c, h.logger, err)
		}

		result, err := run(requestContext(c), principal, payload)
		if err != nil {
			return respondError(c, h.logger, err)
		}

		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "analysis completed", result)
	}
}

func (h *AnalysisHandler) results(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	results, err := h.service.Results(requestContext(c), principal, idParam(c, "studentId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "analysis results retrieved", results)
}
