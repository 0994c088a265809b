package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/utils"
)

// StudentHandler exposes student, stats and progress routes.
type StudentHandler struct {
	students service.StudentService
	progress service.ProgressService
	logger   zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(students service.StudentService, progress service.ProgressService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		students: students,
		progress: progress,
		logger:   logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches student routes to the router group.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/parents", h.parents)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Get("/:id/stats", h.stats)
	router.Get("/:id/progress", h.listProgress)
	router.Post("/:id/progress", h.recordProgress)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	students, err := h.students.List(requestContext(c), principal)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StudentHandler) parents(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	parents, err := h.students.ListParents(requestContext(c), principal)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "parents retrieved", parents)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	student, err := h.students.Get(requestContext(c), principal, idParam(c, "id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "student retrieved", student)
}

func (h *StudentHandler) stats(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	stats, err := h.students.Stats(requestContext(c), principal, idParam(c, "id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "student stats retrieved", stats)
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.StudentCreateRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	student, err := h.students.Create(requestContext(c), principal, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}

func (h *StudentHandler) update(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.StudentUpdateRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	student, err := h.students.Update(requestContext(c), principal, idParam(c, "id"), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "student updated", student)
}

func (h *StudentHandler) listProgress(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	records, err := h.progress.List(requestContext(c), principal, idParam(c, "id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "progress retrieved", records)
}

func (h *StudentHandler) recordProgress(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.ProgressCreateRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	record, err := h.progress.Record(requestContext(c), principal, idParam(c, "id"), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "progress recorded", record)
}
