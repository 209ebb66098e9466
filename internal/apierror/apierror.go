// Package apierror provides the standardized error envelope for API
// responses. Internal details (file paths, upstream response bodies) never
// reach clients through this package.
package apierror

// APIError is the canonical error envelope for all 4xx/5xx responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}
