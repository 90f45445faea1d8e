package directory

import "time"

// Student is a learner as seen by the billing engine: identity plus the
// class level and stream that drive fee-schedule matching.
type Student struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	ClassLevel string    `json:"class_level"`
	Stream     string    `json:"stream,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
