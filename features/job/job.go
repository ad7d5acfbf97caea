package job

import (
	"encoding/json"
	"time"
)

// Job is one failed unit of work: an ingested document or a drafted section.
type Job struct {
	ID        string          `json:"id"`
	Stage     string          `json:"stage"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
