package models

// StoredResponse is a completed HTTP response kept for idempotent replay.
type StoredResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}
