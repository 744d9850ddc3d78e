package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/hmacsig"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/service"
)

// WebhookHandler receives inbound notifications from both platforms.
type WebhookHandler struct {
	svc *service.Service
}

func NewWebhookHandler(svc *service.Service) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// OnspringWebhook handles POST /webhooks/onspring. Onspring's outbound
// messaging wraps the record in a single-element array with loosely typed
// values, so the id is pulled out with gjson rather than a struct. The sync
// runs asynchronously; the response only acknowledges receipt.
func (h *WebhookHandler) OnspringWebhook(c *fiber.Ctx) error {
	body := c.Body()

	recordID := extractRecordID(body)
	if recordID == 0 {
		h.svc.Logger.Warn("Webhook payload missing record id",
			zap.ByteString("body", body),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "payload does not contain a record id",
		})
	}

	appID := c.QueryInt("appId", 0)
	if appID == 0 {
		appID = c.QueryInt("app_id", h.svc.Cfg.Onspring.DefaultAppID)
	}
	if appID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "app_id is required",
		})
	}

	event := models.SyncEvent{
		ID:            uuid.New(),
		AppID:         appID,
		RecordID:      recordID,
		TriggerType:   models.TriggerWebhook,
		Status:        models.EventQueued,
		MaxAttempts:   h.svc.Cfg.Worker.MaxAttempts,
		NextAttemptAt: time.Now(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := h.svc.DB.Create(&event).Error; err != nil {
		h.svc.Logger.Error("Failed to create sync event",
			zap.Int("record_id", recordID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to record sync event",
		})
	}

	if err := h.publishSyncMessage(event.ID.String()); err != nil {
		// The dispatcher will pick the event up; flip it back to pending.
		h.svc.Logger.Error("Failed to publish sync message, leaving event for dispatcher",
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		h.svc.DB.Model(&models.SyncEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"status":     models.EventPending,
				"updated_at": time.Now(),
			})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID.String(),
		"status":   "queued",
	})
}

// ARRMSWebhook handles POST /webhooks/arrms. ARRMS notifies on questionnaire
// progress; a verified callback triggers a statistics write-back for the
// referenced source record.
func (h *WebhookHandler) ARRMSWebhook(c *fiber.Ctx) error {
	body := c.Body()

	signature := c.Get("X-Webhook-Signature")
	if !hmacsig.Verify(body, h.svc.Cfg.ARRMS.WebhookSecret, signature) {
		h.svc.Logger.Warn("ARRMS webhook signature verification failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid signature",
		})
	}

	var payload struct {
		Event          string `json:"event"`
		ExternalID     string `json:"external_id"`
		ExternalSource string `json:"external_source"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payload",
		})
	}

	if payload.ExternalSource != h.svc.Cfg.Sync.ExternalSource || payload.ExternalID == "" {
		// Not ours, acknowledge and ignore.
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	if err := h.svc.Orchestrator.SyncStatsForExternalID(c.Context(), h.svc.Cfg.Onspring.DefaultAppID, payload.ExternalID); err != nil {
		h.svc.Logger.Error("Statistics write-back from callback failed",
			zap.String("external_id", payload.ExternalID),
			zap.String("event", payload.Event),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "statistics write-back failed",
		})
	}

	return c.JSON(fiber.Map{"status": "synced"})
}

func (h *WebhookHandler) publishSyncMessage(eventID string) error {
	body, err := json.Marshal(models.SyncMessage{EventID: eventID})
	if err != nil {
		return err
	}
	return h.svc.RMQ.PublishMessage(
		h.svc.Cfg.Dispatcher.SyncExchange,
		h.svc.Cfg.Dispatcher.SyncRoutingKey,
		false, false, body,
	)
}

// extractRecordID digs the record id out of the webhook payload. Accepted
// shapes: [{"RecordId": 123}], {"RecordId": 123} and lowercase variants, with
// the id as either a number or a numeric string.
func extractRecordID(body []byte) int {
	for _, path := range []string{"0.RecordId", "0.recordId", "RecordId", "recordId", "record_id"} {
		if v := gjson.GetBytes(body, path); v.Exists() {
			if id := int(v.Int()); id > 0 {
				return id
			}
		}
	}
	return 0
}
