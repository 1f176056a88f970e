package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/railbook/service-booking/internal/application"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/response"
)

// PaymentHandler handles HTTP requests for payment queries.
type PaymentHandler struct {
	service *application.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers all payment routes on the given router group.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, verifier *auth.Verifier) {
	payments := r.Group("/payments")
	payments.Use(auth.Middleware(verifier))
	{
		payments.GET("/:id", h.GetPayment)
		payments.GET("/booking/:bookingId", h.GetPaymentByBooking)
	}
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	idStr := c.Param("id")
	paymentID, err := uuid.Parse(idStr)
	if err != nil {
		response.BadRequest(c, "invalid payment ID")
		return
	}

	dto, err := h.service.GetPayment(c.Request.Context(), auth.GetSession(c), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// GetPaymentByBooking handles GET /api/v1/payments/booking/:bookingId
func (h *PaymentHandler) GetPaymentByBooking(c *gin.Context) {
	idStr := c.Param("bookingId")
	bookingID, err := uuid.Parse(idStr)
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	dto, err := h.service.GetPaymentByBooking(c.Request.Context(), auth.GetSession(c), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
