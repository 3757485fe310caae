package jobs

import "time"

// Status is the lifecycle state of a job record.
type Status string

const (
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Retention is how long a record lives before DynamoDB TTL reclaims it.
const Retention = 30 * 24 * time.Hour

// Record mirrors one item in the jobs table. Every write replaces the whole
// item, so fields left empty on an update disappear from the record.
type Record struct {
	JobID     string         `dynamodbav:"job_id" json:"job_id"`
	CreatedAt string         `dynamodbav:"created_at" json:"created_at"`
	Status    Status         `dynamodbav:"status" json:"status"`
	URL       string         `dynamodbav:"url,omitempty" json:"url,omitempty"`
	URLs      []string       `dynamodbav:"urls,omitempty" json:"urls,omitempty"`
	Message   string         `dynamodbav:"message,omitempty" json:"message,omitempty"`
	Metadata  map[string]any `dynamodbav:"metadata,omitempty" json:"metadata,omitempty"`
	TTL       int64          `dynamodbav:"ttl" json:"ttl"`
}

// Fields are the optional parts of an update.
type Fields struct {
	URLs     []string
	Message  string
	Metadata map[string]any
}
