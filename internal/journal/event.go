package journal

import "time"

// Event - итог одного согласования возможности.
type Event struct {
	ID          string    `json:"id"`         // UUID события
	RequestID   string    `json:"request_id"` // metadata.requestId результата
	Capability  string    `json:"capability"`
	Operation   string    `json:"operation"` // check, request, education, progressive, batch
	Feature     string    `json:"feature,omitempty"`
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	ErrorTag    string    `json:"error_tag,omitempty"`
	CanAskAgain bool      `json:"can_ask_again"`
	Attempt     int       `json:"attempt"`
	Profile     string    `json:"profile"` // deviceTier
	Timestamp   time.Time `json:"timestamp"`
	DurationMs  int64     `json:"duration_ms"`
}
