// Package httpapi exposes the enrichment pipeline over HTTP: job
// submission and lifecycle endpoints wrapped in a uniform
// APIResponse/APIError envelope, with a JWT guard on the mutation
// routes.
package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{Success: true, Data: data, Timestamp: time.Now()}
}

func NewErrorResponse(code, message string, details ...string) APIResponse {
	apiErr := &APIError{Code: code, Message: message}
	if len(details) > 0 {
		apiErr.Details = details[0]
	}
	return APIResponse{Success: false, Error: apiErr, Timestamp: time.Now()}
}

func writeSuccess(c *fiber.Ctx, status int, data interface{}) error {
	resp := NewSuccessResponse(data)
	resp.RequestID = c.Get(fiber.HeaderXRequestID)
	return c.Status(status).JSON(resp)
}

func writeError(c *fiber.Ctx, status int, code, message string, details ...string) error {
	resp := NewErrorResponse(code, message, details...)
	resp.RequestID = c.Get(fiber.HeaderXRequestID)
	return c.Status(status).JSON(resp)
}
