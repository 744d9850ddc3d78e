package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/database"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/service"
)

// HealthHandler reports liveness of the service and its dependencies.
type HealthHandler struct {
	svc *service.Service
}

func NewHealthHandler(svc *service.Service) *HealthHandler {
	return &HealthHandler{svc: svc}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck handles GET /health. Database and broker are always probed;
// pass ?deep=true to also ping both upstream platforms.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	if err := database.HealthCheck(ctx, h.svc.DB); err != nil {
		services["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	if h.svc.RMQ == nil || !h.svc.RMQ.IsHealthy() {
		services["rabbitmq"] = "unhealthy: connection closed"
		status = "unhealthy"
	} else {
		services["rabbitmq"] = "healthy"
	}

	if c.QueryBool("deep", false) {
		if err := h.svc.Onspring.HealthCheck(ctx); err != nil {
			services["onspring"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			services["onspring"] = "healthy"
		}
		if err := h.svc.ARRMS.HealthCheck(ctx); err != nil {
			services["arrms"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			services["arrms"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	if status == "unhealthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}
