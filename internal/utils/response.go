// Package utils holds the JSON envelope shared by the issuance, scan and
// analytics endpoints.
package utils

import "time"

// APIResponse is the uniform wire envelope. Data carries the payload on
// success (job ids, progress counters, scan results); Error carries the
// failure detail and is omitted otherwise.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func newResponse(success bool, message string) APIResponse {
	return APIResponse{
		Success:   success,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// SuccessResponse wraps a payload for a handler's happy path.
func SuccessResponse(message string, data interface{}) APIResponse {
	resp := newResponse(true, message)
	resp.Data = data
	return resp
}

// ErrorResponse wraps a rejection or failure with its detail string.
func ErrorResponse(message, detail string) APIResponse {
	resp := newResponse(false, message)
	resp.Error = detail
	return resp
}
