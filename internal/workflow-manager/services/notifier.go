package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"workflow-cycle-service/internal/workflow-manager/events"
)

// Notifier carries cycle lifecycle events out of the core. Delivery to end
// users happens downstream; failures here are logged, never propagated, so a
// broken sink cannot abort cycle processing.
type Notifier interface {
	CycleCreated(ctx context.Context, workflowID, cycleID uint, startDate time.Time)
	CycleStartFailed(ctx context.Context, workflowID uint, reason string)
}

// KafkaNotifier publishes cycle events as JSON to the cycle events topic.
type KafkaNotifier struct {
	Producer *kafka.Writer
}

func NewKafkaNotifier(producer *kafka.Writer) *KafkaNotifier {
	return &KafkaNotifier{Producer: producer}
}

func (n *KafkaNotifier) CycleCreated(ctx context.Context, workflowID, cycleID uint, startDate time.Time) {
	n.publish(ctx, events.CycleEventPayload{
		Event:          events.EventCycleCreated,
		WorkflowID:     workflowID,
		CycleID:        cycleID,
		CycleStartDate: startDate.Format("2006-01-02"),
	})
}

func (n *KafkaNotifier) CycleStartFailed(ctx context.Context, workflowID uint, reason string) {
	n.publish(ctx, events.CycleEventPayload{
		Event:      events.EventCycleStartFailed,
		WorkflowID: workflowID,
		Error:      reason,
	})
}

func (n *KafkaNotifier) publish(ctx context.Context, payload events.CycleEventPayload) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Notifier: error marshalling %s payload for workflow %d: %v", payload.Event, payload.WorkflowID, err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(payload.WorkflowID), 10)),
		Value: payloadBytes,
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := n.Producer.WriteMessages(writeCtx, msg); err != nil {
		log.Printf("Notifier: error sending %s event for workflow %d to Kafka: %v", payload.Event, payload.WorkflowID, err)
		return
	}
	log.Printf("Notifier: sent %s event for workflow %d to Kafka topic %s", payload.Event, payload.WorkflowID, n.Producer.Stats().Topic)
}

// LogNotifier writes cycle events to the process log only. Used where no
// Kafka broker is configured, e.g. in tests.
type LogNotifier struct{}

func (LogNotifier) CycleCreated(_ context.Context, workflowID, cycleID uint, startDate time.Time) {
	log.Printf("Notifier: cycle %d created for workflow %d starting %s", cycleID, workflowID, startDate.Format("2006-01-02"))
}

func (LogNotifier) CycleStartFailed(_ context.Context, workflowID uint, reason string) {
	log.Printf("Notifier: cycle start failed for workflow %d: %s", workflowID, reason)
}
