package events

import "workflow-cycle-service/internal/workflow-manager/status"

// Event names published to the cycle events topic.
const (
	EventCycleCreated     = "cycle_created"
	EventCycleStartFailed = "cycle_start_failed"
)

// CycleEventPayload is sent to Kafka when a cycle build succeeds or fails.
// Delivery to end users is handled downstream by the notification worker.
type CycleEventPayload struct {
	Event          string `json:"event"`
	WorkflowID     uint   `json:"workflow_id"`
	CycleID        uint   `json:"cycle_id,omitempty"`
	CycleStartDate string `json:"cycle_start_date,omitempty"`
	Error          string `json:"error,omitempty"`
}

// StatusChangeEvent describes one explicit status edit. It is handed
// synchronously to the propagation chain so the downward cascade always runs
// before the upward aggregation.
type StatusChangeEvent struct {
	CycleTaskID uint
	OldStatus   status.Status
	NewStatus   status.Status
	ActorID     uint
}

// TaskStatusUpdatePayload is consumed from the status updates topic; external
// systems use it to drive task status transitions.
type TaskStatusUpdatePayload struct {
	CycleTaskID uint   `json:"cycle_task_id"`
	Status      string `json:"status"`
	ActorID     uint   `json:"actor_id,omitempty"`
}

// TaskStatusUpdateSchema validates inbound status update payloads before they
// reach the status engine.
const TaskStatusUpdateSchema = `{
	"type": "object",
	"properties": {
		"cycle_task_id": {"type": "integer", "minimum": 1},
		"status": {
			"type": "string",
			"enum": ["Assigned", "InProgress", "Declined", "Finished", "Verified", "Deprecated"]
		},
		"actor_id": {"type": "integer", "minimum": 0}
	},
	"required": ["cycle_task_id", "status"]
}`
