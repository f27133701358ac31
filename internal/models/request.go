package models

import "strings"

// SubmitRequest is the body accepted by the task API.
type SubmitRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format,omitempty"`
	Quality string `json:"quality,omitempty"`
	// Force skips the history dedup check.
	Force bool `json:"force,omitempty"`
}

// Validate checks the URL.
func (r *SubmitRequest) Validate() error {
	r.URL = strings.TrimSpace(r.URL)
	return ValidateURL(r.URL)
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
