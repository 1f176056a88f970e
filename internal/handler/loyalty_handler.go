package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/railbook/service-booking/internal/application"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/response"
)

// LoyaltyHandler serves the caller's points balance.
type LoyaltyHandler struct {
	service *application.LoyaltyService
}

func NewLoyaltyHandler(service *application.LoyaltyService) *LoyaltyHandler {
	return &LoyaltyHandler{service: service}
}

func (h *LoyaltyHandler) RegisterRoutes(r *gin.RouterGroup, verifier *auth.Verifier) {
	loyalty := r.Group("/loyalty")
	loyalty.Use(auth.Middleware(verifier))
	loyalty.GET("/balance", h.GetBalance)
}

// GetBalance handles GET /api/v1/loyalty/balance?limit=N.
func (h *LoyaltyHandler) GetBalance(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	dto, err := h.service.GetBalance(c.Request.Context(), auth.GetSession(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
