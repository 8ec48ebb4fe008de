package model

// Operation status tags surfaced to callers.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
	StatusInfo    = "info"
)

// OpResult is the uniform outcome of a control operation: a status tag
// plus a human-readable message.
type OpResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
