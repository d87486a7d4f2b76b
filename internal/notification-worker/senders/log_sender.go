package senders

import (
	"fmt"
	"log"

	"workflow-cycle-service/internal/workflow-manager/events"
)

// LogSender writes notifications to the process log. It is the default sink
// when no delivery channel is configured.
type LogSender struct{}

// Send implements the Sender interface.
func (s *LogSender) Send(notification Notification) error {
	switch notification.Event {
	case events.EventCycleCreated:
		log.Printf("LogSender: cycle %d created for workflow %d, starting %s",
			notification.CycleID, notification.WorkflowID, notification.CycleStartDate)
	case events.EventCycleStartFailed:
		log.Printf("LogSender: cycle start FAILED for workflow %d: %s",
			notification.WorkflowID, notification.Error)
	default:
		return fmt.Errorf("unknown cycle event: %s", notification.Event)
	}
	return nil
}
