package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"workflow-cycle-service/internal/workflow-manager/events"
	"workflow-cycle-service/internal/workflow-manager/status"
	"workflow-cycle-service/pkg/validation"
)

const (
	DefaultKafkaBrokers        = "localhost:9092"
	DefaultStatusUpdateTopic   = "cycle_task_status_updates"
	DefaultStatusUpdateGroupID = "workflow-manager-status-updates"
)

// StatusUpdateConsumer lets external systems drive cycle task status
// transitions over Kafka. Payloads are schema-validated before they reach the
// status engine; bad messages are logged and skipped.
type StatusUpdateConsumer struct {
	Statuses *StatusService
	Reader   *kafka.Reader
}

func NewStatusUpdateConsumer(statuses *StatusService) *StatusUpdateConsumer {
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		kafkaBrokers = DefaultKafkaBrokers
	}
	topic := os.Getenv("STATUS_UPDATE_TOPIC")
	if topic == "" {
		topic = DefaultStatusUpdateTopic
	}
	groupID := os.Getenv("STATUS_UPDATE_GROUP_ID")
	if groupID == "" {
		groupID = DefaultStatusUpdateGroupID
	}
	brokerList := strings.Split(kafkaBrokers, ",")
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokerList, GroupID: groupID, Topic: topic,
		MinBytes: 10e3, MaxBytes: 10e6, CommitInterval: time.Second, MaxWait: 3 * time.Second,
	})
	log.Printf("Workflow Manager Kafka consumer for status updates configured for topic: %s, groupID: %s", topic, groupID)
	return &StatusUpdateConsumer{Statuses: statuses, Reader: reader}
}

func (c *StatusUpdateConsumer) StartConsuming(ctx context.Context) {
	log.Println("StatusUpdateConsumer starting to consume task status updates...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Println("StatusUpdateConsumer: context cancelled, stopping consumer.")
				return
			default:
				readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				msg, err := c.Reader.ReadMessage(readCtx)
				cancel()

				if err == context.DeadlineExceeded {
					continue
				}
				if err == context.Canceled {
					log.Println("StatusUpdateConsumer: read context cancelled.")
					return
				}
				if err == io.EOF {
					log.Println("StatusUpdateConsumer: Kafka reader closed (EOF), stopping consumption.")
					return
				}
				if err != nil {
					log.Printf("StatusUpdateConsumer: error reading message: %v", err)
					time.Sleep(1 * time.Second)
					continue
				}
				if err := c.HandleMessage(msg.Value); err != nil {
					log.Printf("StatusUpdateConsumer: %v. Value: %s", err, string(msg.Value))
				}
			}
		}
	}()
}

// HandleMessage validates and applies one status update payload.
func (c *StatusUpdateConsumer) HandleMessage(value []byte) error {
	if err := validation.ValidateJSONWithSchema(events.TaskStatusUpdateSchema, string(value)); err != nil {
		return fmt.Errorf("status update payload rejected by schema: %w", err)
	}
	var payload events.TaskStatusUpdatePayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return fmt.Errorf("error unmarshalling status update payload: %w", err)
	}
	task, err := c.Statuses.UpdateTaskStatus(payload.CycleTaskID, status.Status(payload.Status), payload.ActorID)
	if err != nil {
		return fmt.Errorf("failed to apply status update for cycle task %d: %w", payload.CycleTaskID, err)
	}
	log.Printf("StatusUpdateConsumer: cycle task %d updated to %s", task.ID, task.Status)
	return nil
}

func (c *StatusUpdateConsumer) Close() {
	if c.Reader != nil {
		log.Println("StatusUpdateConsumer: closing Kafka reader.")
		c.Reader.Close()
	}
}
