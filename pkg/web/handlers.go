// Package web provides HTTP handlers and REST API endpoints for workflow sessions.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/kaizen-works/kaizen/pkg/services"
)

type APIHandlers struct {
	sessions  *services.Sessions
	validator *validator.Validate
}

func NewAPIHandlers(sessions *services.Sessions, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		sessions:  sessions,
		validator: validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, ok := h.sessions.HealthCheck(c.Context())

	status := http.StatusOK
	state := "healthy"

	if !ok {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":    state,
		"message":   message,
		"sessions":  h.sessions.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *APIHandlers) GetVersions(c fiber.Ctx) error {
	versions, err := h.sessions.ListVersions(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(VersionsResponse{Versions: versions, Total: len(versions)})
}

func (h *APIHandlers) GetActors(c fiber.Ctx) error {
	actors, err := h.sessions.Roster(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"actors": actors})
}

func (h *APIHandlers) OpenSession(c fiber.Ctx) error {
	var req OpenSessionRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessions.Open(c.Context(), services.OpenRequest{
		VersionID:   req.VersionID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	view, err := h.sessions.View(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) UpdateSession(c fiber.Ctx) error {
	var req UpdateSessionRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessions.UpdateDetails(c.Params("id"), req.Name, req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) CloseSession(c fiber.Ctx) error {
	if err := h.sessions.Close(c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateStep(c fiber.Ctx) error {
	var req CreateStepRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step, err := h.sessions.AddStep(c.Context(), c.Params("id"), req.toInput())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) PatchStep(c fiber.Ctx) error {
	var req UpdateStepRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step, err := h.sessions.EditStep(c.Context(), c.Params("id"), c.Params("stepId"), req.toPatch())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(step)
}

func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	if err := h.sessions.DeleteStep(c.Params("id"), c.Params("stepId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ReorderSteps(c fiber.Ctx) error {
	var req ReorderStepsRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessions.Reorder(c.Params("id"), *req.From, *req.To)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) Improve(c fiber.Ctx) error {
	var req ImproveRequest

	// The instruction is optional, so an empty body is accepted.
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON: "+err.Error())
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessions.Improve(c.Context(), c.Params("id"), req.Instruction)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) Revert(c fiber.Ctx) error {
	view, err := h.sessions.Revert(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) SetComparison(c fiber.Ctx) error {
	var req ComparisonRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessions.SetComparison(c.Params("id"), *req.Show)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) Complete(c fiber.Ctx) error {
	view, err := h.sessions.Complete(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) Save(c fiber.Ctx) error {
	view, err := h.sessions.Save(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

// RegisterRoutes mounts the session API on the given router.
func (h *APIHandlers) RegisterRoutes(router fiber.Router) {
	router.Get("/versions", h.GetVersions)
	router.Get("/actors", h.GetActors)

	sessions := router.Group("/sessions")
	sessions.Post("/", h.OpenSession)
	sessions.Get("/:id", h.GetSession)
	sessions.Patch("/:id", h.UpdateSession)
	sessions.Delete("/:id", h.CloseSession)

	sessions.Post("/:id/steps", h.CreateStep)
	sessions.Post("/:id/steps/reorder", h.ReorderSteps)
	sessions.Patch("/:id/steps/:stepId", h.PatchStep)
	sessions.Delete("/:id/steps/:stepId", h.DeleteStep)

	sessions.Post("/:id/improve", h.Improve)
	sessions.Post("/:id/revert", h.Revert)
	sessions.Post("/:id/comparison", h.SetComparison)
	sessions.Post("/:id/complete", h.Complete)
	sessions.Post("/:id/save", h.Save)
}
