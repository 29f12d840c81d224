// Package web provides HTTP handlers and REST API endpoints for the
// canvas: draft lifecycle, graph mutations, and storage insight.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/patchbay-dev/patchbay/pkg/graph"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/services"
)

type APIHandlers struct {
	draftService *services.Draft
	store        *graph.Store
	validator    *validator.Validate
}

func NewAPIHandlers(draftService *services.Draft, store *graph.Store, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		draftService: draftService,
		store:        store,
		validator:    validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.draftService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Patchbay API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Patchbay API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetDrafts(c fiber.Ctx) error {
	summaries, err := h.draftService.ListDrafts(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	if summaries == nil {
		summaries = []*models.DraftSummary{}
	}

	return c.JSON(fiber.Map{
		"drafts":      summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetDraft(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Draft ID is required")
	}

	draft, err := h.draftService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(draft)
}

func (h *APIHandlers) SaveDraft(c fiber.Ctx) error {
	var req SaveDraftRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.draftService.Save(c.Context(), req.ID, req.Name); err != nil {
		return handleServiceError(c, err)
	}

	draft, err := h.draftService.FetchByID(c.Context(), req.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(draft)
}

func (h *APIHandlers) LoadDraft(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Draft ID is required")
	}

	draft, err := h.draftService.Load(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(draft)
}

func (h *APIHandlers) DeleteDraft(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Draft ID is required")
	}

	err := h.draftService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetStorageStats(c fiber.Ctx) error {
	stats, err := h.draftService.StorageStats(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetGraph(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"nodes":       h.store.Nodes(),
		"connections": h.store.Connections(),
		"mode":        h.store.Mode(),
	})
}

func (h *APIHandlers) AddNode(c fiber.Ctx) error {
	var req AddNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.draftService.AddNode(c.Context(), req.Type, req.X, req.Y)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) MoveNode(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Node ID is required")
	}

	var req MoveNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	err := h.draftService.MoveNode(c.Context(), id, req.X, req.Y)
	if err != nil {
		return handleServiceError(c, err)
	}

	node, _ := h.store.NodeByID(id)

	return c.JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Node ID is required")
	}

	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	patch := graph.NodePatch{Label: req.Label, Config: req.Config}

	err := h.draftService.UpdateNode(c.Context(), id, patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	node, _ := h.store.NodeByID(id)

	return c.JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Node ID is required")
	}

	err := h.draftService.DeleteNode(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) Connect(c fiber.Ctx) error {
	var req ConnectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result := h.draftService.Connect(c.Context(), req.SourceNodeID, req.SourcePortID, req.TargetNodeID, req.TargetPortID)
	if !result.OK {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(transformConnectResponse(result))
	}

	return c.Status(fiber.StatusCreated).JSON(transformConnectResponse(result))
}

func (h *APIHandlers) Disconnect(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Connection ID is required")
	}

	err := h.draftService.Disconnect(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ValidateGraph(c fiber.Ctx) error {
	draftID := c.Query("draft_id")

	removed := h.draftService.ValidateGraph(c.Context(), draftID)

	return c.JSON(ValidateResponse{Removed: removed})
}
