package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventsHandler lists sync events for operators.
type EventsHandler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewEventsHandler(db *gorm.DB, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{DB: db, Logger: logger}
}

type EventsResponse struct {
	Events  []EventDTO `json:"events"`
	HasMore bool       `json:"has_more"`
}

type EventDTO struct {
	ID           string `json:"id"`
	AppID        int    `json:"app_id"`
	RecordID     int    `json:"record_id"`
	TriggerType  string `json:"trigger_type"`
	Status       string `json:"status"`
	AttemptCount int    `json:"attempt_count"`
	FinalState   string `json:"final_state,omitempty"`
	FilesSynced  int    `json:"files_synced"`
	FilesFailed  int    `json:"files_failed"`
	LastError    string `json:"last_error,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// GetEvents handles GET /api/v1/events.
// Query parameters:
//   - status (optional): filter by event status
//   - record_id (optional): filter by source record id
//   - limit (optional, default 25), offset (optional, default 0)
func (h *EventsHandler) GetEvents(c *fiber.Ctx) error {
	limit := 25
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "offset must be a non-negative integer",
			})
		}
		offset = parsed
	}

	type eventRow struct {
		ID           uuid.UUID
		AppID        int
		RecordID     int
		TriggerType  string
		Status       string
		AttemptCount int
		LastError    *string
		CreatedAt    time.Time
	}

	query := h.DB.Table("sync_events").
		Select("id, app_id, record_id, trigger_type, status, attempt_count, last_error, created_at").
		Order("created_at DESC").
		Limit(limit + 1). // one extra to compute has_more
		Offset(offset)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if recordIDStr := c.Query("record_id"); recordIDStr != "" {
		recordID, err := strconv.Atoi(recordIDStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "record_id must be an integer",
			})
		}
		query = query.Where("record_id = ?", recordID)
	}

	var events []eventRow
	if err := query.Scan(&events).Error; err != nil {
		h.Logger.Error("Failed to query sync events", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch events",
		})
	}

	if len(events) == 0 {
		return c.JSON(EventsResponse{Events: []EventDTO{}, HasMore: false})
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	eventIDs := make([]uuid.UUID, len(events))
	for i, event := range events {
		eventIDs[i] = event.ID
	}

	// Latest attempt per event, via a max(attempt_no) subquery.
	type attemptRow struct {
		SyncEventID uuid.UUID
		FinalState  string
		FilesSynced int
		FilesFailed int
	}
	var attempts []attemptRow

	subquery := h.DB.Table("sync_attempt_log").
		Select("sync_event_id, MAX(attempt_no) as max_attempt").
		Where("sync_event_id IN ?", eventIDs).
		Group("sync_event_id")

	if err := h.DB.Table("sync_attempt_log AS sal").
		Select("sal.sync_event_id, sal.final_state, sal.files_synced, sal.files_failed").
		Joins("INNER JOIN (?) AS latest ON sal.sync_event_id = latest.sync_event_id AND sal.attempt_no = latest.max_attempt", subquery).
		Scan(&attempts).Error; err != nil {
		// Events are still useful without attempt details.
		h.Logger.Warn("Failed to fetch attempt logs, continuing without attempt details",
			zap.Error(err),
		)
	}

	attemptMap := make(map[uuid.UUID]attemptRow, len(attempts))
	for _, a := range attempts {
		attemptMap[a.SyncEventID] = a
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, event := range events {
		dto := EventDTO{
			ID:           event.ID.String(),
			AppID:        event.AppID,
			RecordID:     event.RecordID,
			TriggerType:  event.TriggerType,
			Status:       event.Status,
			AttemptCount: event.AttemptCount,
			Timestamp:    event.CreatedAt.UTC().Format(time.RFC3339),
		}
		if event.LastError != nil {
			dto.LastError = *event.LastError
		}
		if a, ok := attemptMap[event.ID]; ok {
			dto.FinalState = a.FinalState
			dto.FilesSynced = a.FilesSynced
			dto.FilesFailed = a.FilesFailed
		}
		dtos = append(dtos, dto)
	}

	return c.JSON(EventsResponse{Events: dtos, HasMore: hasMore})
}
