package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/railbook/service-booking/internal/application"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/response"
)

// DiscountHandler handles HTTP requests for discount code operations.
type DiscountHandler struct {
	service *application.DiscountService
}

// NewDiscountHandler creates a new DiscountHandler.
func NewDiscountHandler(service *application.DiscountService) *DiscountHandler {
	return &DiscountHandler{service: service}
}

// RegisterRoutes registers all discount routes.
func (h *DiscountHandler) RegisterRoutes(r *gin.RouterGroup, verifier *auth.Verifier) {
	discounts := r.Group("/discounts")
	discounts.Use(auth.Middleware(verifier))
	{
		discounts.POST("", auth.RequireCapability(auth.CapManageDiscounts), h.CreateDiscount)
		discounts.POST("/validate", h.ValidateDiscount)
		discounts.GET("/active", h.GetActiveDiscounts)
	}
}

// CreateDiscount handles POST /api/v1/discounts.
func (h *DiscountHandler) CreateDiscount(c *gin.Context) {
	var req application.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateDiscount(c.Request.Context(), auth.GetSession(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ValidateDiscount handles POST /api/v1/discounts/validate.
func (h *DiscountHandler) ValidateDiscount(c *gin.Context) {
	var req application.ValidateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ValidateDiscount(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetActiveDiscounts handles GET /api/v1/discounts/active.
func (h *DiscountHandler) GetActiveDiscounts(c *gin.Context) {
	result, err := h.service.GetActiveDiscounts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
