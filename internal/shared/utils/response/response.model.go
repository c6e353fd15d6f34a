package response

// StandardApiResponse is the JSON envelope every handler writes. Error is
// set only on failures; Data only on successes.
type StandardApiResponse struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`              // HTTP status code
	Message string      `json:"message,omitempty"` // Human-readable message
	Data    interface{} `json:"data,omitempty"`    // Payload for success
	Error   string      `json:"error,omitempty"`   // Failure category or detail
}
