package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/railbook/service-booking/internal/application"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/response"
)

// AdminHandler handles staff and admin HTTP requests.
type AdminHandler struct {
	paymentService  *application.PaymentService
	discountService *application.DiscountService
	policyService   *application.PolicyService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	paymentService *application.PaymentService,
	discountService *application.DiscountService,
	policyService *application.PolicyService,
) *AdminHandler {
	return &AdminHandler{
		paymentService:  paymentService,
		discountService: discountService,
		policyService:   policyService,
	}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, verifier *auth.Verifier) {
	admin := r.Group("/admin")
	admin.Use(auth.Middleware(verifier), auth.RequireCapability(auth.CapViewAllPayments))
	{
		admin.GET("/payments", h.ListPayments)
		admin.GET("/stats/payments", h.PaymentStats)
		admin.GET("/discounts", h.ListDiscounts)
		admin.GET("/cancellation-policy", h.GetPolicy)
		admin.PUT("/cancellation-policy", auth.RequireCapability(auth.CapManagePolicies), h.ReplacePolicy)
	}
}

// ListPayments handles GET /api/v1/admin/payments.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	payments, total, err := h.paymentService.ListAllPayments(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, payments, total, page, limit)
}

// PaymentStats handles GET /api/v1/admin/stats/payments.
func (h *AdminHandler) PaymentStats(c *gin.Context) {
	stats, err := h.paymentService.GetPaymentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListDiscounts handles GET /api/v1/admin/discounts.
func (h *AdminHandler) ListDiscounts(c *gin.Context) {
	discounts, err := h.discountService.GetActiveDiscounts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, discounts)
}

// GetPolicy handles GET /api/v1/admin/cancellation-policy.
func (h *AdminHandler) GetPolicy(c *gin.Context) {
	policy, err := h.policyService.GetActivePolicy(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, policy)
}

// ReplacePolicy handles PUT /api/v1/admin/cancellation-policy.
func (h *AdminHandler) ReplacePolicy(c *gin.Context) {
	var req application.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	policy, err := h.policyService.Replace(c.Request.Context(), auth.GetSession(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, policy)
}
