package ingest

import (
	"encoding/json"
	"fmt"
)

// Task is a queued request to index one stored document. It is also the
// payload kept for a failed ingest so the job can be retried.
type Task struct {
	DocumentID    string `json:"document_id"`
	OriginalName  string `json:"original_name"`
	Path          string `json:"path"`
	MimeType      string `json:"mime_type,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (t Task) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

func ParseTask(body []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("decode ingest task: %w", err)
	}
	if t.Path == "" {
		return Task{}, fmt.Errorf("decode ingest task: missing path")
	}
	return t, nil
}
