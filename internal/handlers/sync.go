package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/apperr"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/service"
)

// SyncHandler exposes synchronous sync operations for operators and
// scheduled invocations.
type SyncHandler struct {
	svc *service.Service
}

func NewSyncHandler(svc *service.Service) *SyncHandler {
	return &SyncHandler{svc: svc}
}

type syncRequest struct {
	AppID    int    `json:"app_id"`
	RecordID int    `json:"record_id"`
	Filter   string `json:"filter"`
	PageSize int    `json:"page_size"`
}

// Sync handles POST /api/v1/sync. With a record_id it syncs that record and
// returns the outcome; without one it runs a filtered batch and returns the
// summary. Runs inline, so callers carry the latency.
func (h *SyncHandler) Sync(c *fiber.Ctx) error {
	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	appID := req.AppID
	if appID == 0 {
		appID = h.svc.Cfg.Onspring.DefaultAppID
	}
	if appID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "app_id is required",
		})
	}

	if req.RecordID != 0 {
		outcome := h.svc.Orchestrator.SyncOne(c.Context(), appID, req.RecordID, models.TriggerManual)
		status := fiber.StatusOK
		if !outcome.Success {
			status = fiber.StatusUnprocessableEntity
		}
		return c.Status(status).JSON(outcome)
	}

	h.svc.Logger.Info("Starting batch sync",
		zap.Int("app_id", appID),
		zap.String("filter", req.Filter),
	)
	summary := h.svc.Orchestrator.SyncBatch(c.Context(), appID, req.Filter, models.TriggerScheduled, req.PageSize)
	return c.JSON(summary)
}

type writeBackRequest struct {
	AppID       int      `json:"app_id"`
	ExternalID  string   `json:"external_id"`
	ExternalIDs []string `json:"external_ids"`
}

type writeBackResult struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// WriteBack handles POST /api/v1/writeback. For each external id it fetches
// current questionnaire statistics from ARRMS and writes them back to the
// source record. Failures are reported per id, not short-circuited.
func (h *SyncHandler) WriteBack(c *fiber.Ctx) error {
	var req writeBackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	ids := req.ExternalIDs
	if req.ExternalID != "" {
		ids = append(ids, req.ExternalID)
	}
	if len(ids) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "external_ids is required",
		})
	}

	appID := req.AppID
	if appID == 0 {
		appID = h.svc.Cfg.Onspring.DefaultAppID
	}

	results := make([]writeBackResult, 0, len(ids))
	failed := 0
	for _, id := range ids {
		if err := h.svc.Orchestrator.SyncStatsForExternalID(c.Context(), appID, id); err != nil {
			failed++
			h.svc.Logger.Error("Write-back failed",
				zap.String("external_id", id),
				zap.Error(err),
			)
			status := "failed"
			if apperr.IsValidation(err) {
				status = "invalid"
			}
			results = append(results, writeBackResult{ExternalID: id, Status: status, Error: err.Error()})
			continue
		}
		results = append(results, writeBackResult{ExternalID: id, Status: "written_back"})
	}

	status := fiber.StatusOK
	if failed == len(ids) {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"results": results})
}
