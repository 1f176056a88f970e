package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/railbook/service-booking/internal/platform/domain"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta carries pagination details.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: msg})
}

func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, Envelope{Success: false, Error: "unauthorized"})
}

// Error maps err through the domain taxonomy to a status and a user-facing message.
func Error(c *gin.Context, err error) {
	c.JSON(domain.HTTPStatus(err), Envelope{Success: false, Error: domain.UserMessage(err)})
}

// Paginated writes a page of items with its meta block.
func Paginated(c *gin.Context, data any, total int64, page, limit int) {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta:    &Meta{Page: page, Limit: limit, Total: total, TotalPages: pages},
	})
}

// Rejected writes an unsuccessful envelope that still carries a body, such as a
// declined payment outcome.
func Rejected(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Envelope{Success: false, Data: data, Error: msg})
}
