// Package queue runs lead processing in the background, either on a Redis
// backed asynq queue or inline in the ingesting process.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
)

// TaskProcessLead drives one lead through the pipeline.
const TaskProcessLead = "lead:process"

// DefaultQueue is the asynq queue used for lead tasks.
const DefaultQueue = "leads"

// ProcessLeadPayload is the task body for TaskProcessLead.
type ProcessLeadPayload struct {
	LeadID string `json:"leadId"`
}

// NewProcessLeadTask builds a TaskProcessLead task.
func NewProcessLeadTask(leadID string) (*asynq.Task, error) {
	if leadID == "" {
		return nil, eris.New("queue: lead id is required")
	}
	data, err := json.Marshal(ProcessLeadPayload{LeadID: leadID})
	if err != nil {
		return nil, eris.Wrap(err, "queue: marshal payload")
	}
	return asynq.NewTask(TaskProcessLead, data), nil
}

// ParseProcessLeadPayload decodes a TaskProcessLead body. Malformed bodies
// are never retried.
func ParseProcessLeadPayload(task *asynq.Task) (ProcessLeadPayload, error) {
	var p ProcessLeadPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return ProcessLeadPayload{}, fmt.Errorf("queue: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.LeadID == "" {
		return ProcessLeadPayload{}, fmt.Errorf("queue: payload missing leadId: %w", asynq.SkipRetry)
	}
	return p, nil
}
