package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db      *gorm.DB
	service string
}

func NewHealthHandler(db *gorm.DB, service string) *HealthHandler {
	return &HealthHandler{db: db, service: service}
}

func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	database := "up"

	sqlDB, err := h.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status, code, database = "degraded", http.StatusServiceUnavailable, "down"
	}

	c.JSON(code, gin.H{
		"status":   status,
		"service":  h.service,
		"database": database,
	})
}
