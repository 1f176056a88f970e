package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/railbook/service-booking/internal/application"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/response"
)

// BookingUseCase is the booking side of the API.
type BookingUseCase interface {
	GetBooking(ctx context.Context, session auth.Session, id uuid.UUID) (*application.BookingDTO, error)
	Cancel(ctx context.Context, session auth.Session, id uuid.UUID) (*application.CancellationResult, error)
	RefundQuote(ctx context.Context, session auth.Session, id uuid.UUID) (*application.RefundQuoteDTO, error)
}

// PayUseCase pays for a booking.
type PayUseCase interface {
	Pay(ctx context.Context, session auth.Session, req application.PayRequest) (*application.PaymentOutcome, error)
}

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	bookings BookingUseCase
	payments PayUseCase
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings BookingUseCase, payments PayUseCase) *BookingHandler {
	return &BookingHandler{bookings: bookings, payments: payments}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, verifier *auth.Verifier) {
	bookings := r.Group("/bookings")
	bookings.Use(auth.Middleware(verifier))
	{
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/refund-quote", h.RefundQuote)
		bookings.POST("/:id/pay", auth.RequireCapability(auth.CapBookAndPay), h.Pay)
		bookings.POST("/:id/cancel", h.Cancel)
	}
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	dto, err := h.bookings.GetBooking(c.Request.Context(), auth.GetSession(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// RefundQuote handles GET /api/v1/bookings/:id/refund-quote
func (h *BookingHandler) RefundQuote(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	quote, err := h.bookings.RefundQuote(c.Request.Context(), auth.GetSession(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, quote)
}

// Pay handles POST /api/v1/bookings/:id/pay. A declined or invalid payment is not an
// error: the outcome is returned with 402 or 422 so the client can correct and retry.
func (h *BookingHandler) Pay(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req application.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.BookingID = id

	outcome, err := h.payments.Pay(c.Request.Context(), auth.GetSession(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if !outcome.Success {
		status := http.StatusPaymentRequired
		if outcome.FailureCode == application.FailureValidation {
			status = http.StatusUnprocessableEntity
		}
		response.Rejected(c, status, outcome.Message, outcome)
		return
	}

	response.Success(c, outcome)
}

// Cancel handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	result, err := h.bookings.Cancel(c.Request.Context(), auth.GetSession(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return uuid.Nil, false
	}
	return id, true
}
