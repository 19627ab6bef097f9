package health

import (
	"encoding/json"
	"time"
)

// Status represents the health state of an item.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Item represents a single health-tracked dependency.
type Item struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	// CheckedAt is the time of the last probe, whatever its outcome.
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
}

// MarshalJSON omits the failure timestamp and message for OK items.
func (h Item) MarshalJSON() ([]byte, error) {
	type Alias Item
	alias := Alias(h)

	if h.Status == StatusOK {
		alias.Timestamp = nil
		alias.Message = ""
	}

	return json.Marshal(alias)
}

// Summary is the aggregate reported by the status endpoint.
type Summary struct {
	OK        int    `json:"ok"`
	Warning   int    `json:"warning"`
	Error     int    `json:"error"`
	HasIssues bool   `json:"hasIssues"`
	Items     []Item `json:"items"`
}

// UpdatePayload is broadcast when an item changes status.
type UpdatePayload struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}
