// Package response holds the JSON envelopes shared by handlers and middleware.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	CodeValidation      = "validation_error"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeTooLarge        = "payload_too_large"
	CodeTooManyRequests = "too_many_requests"
	CodeInternal        = "internal_error"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// MessageResponse is a success response carrying only a message
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DataResponse is a success response wrapping a payload
type DataResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// Error sends an error response
func Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// AbortWithError sends an error response and stops the handler chain
func AbortWithError(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// Internal sends the generic 500 response. The cause is attached to the
// gin context so the request logger can record it.
func Internal(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	Error(c, http.StatusInternalServerError, CodeInternal, "Internal server error")
}

// Message sends {success: true, message}
func Message(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, MessageResponse{Success: true, Message: message})
}

// Data sends {success: true, data, message?}
func Data(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, DataResponse{Success: true, Data: data, Message: message})
}

// ClientIP returns the client address as resolved by gin's trusted proxy
// settings. Forwarding headers from untrusted peers are ignored.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
