// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// ErrorResponse represents an API error. Detail repeats Error for clients
// that read the "detail" field.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// NewErrorResponse builds an ErrorResponse with Detail set.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: message, Code: code, Detail: message}
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadinessResponse is returned by GET /readyz.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// VerifyResponse is returned by GET /auth/verify.
type VerifyResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id"`
}
