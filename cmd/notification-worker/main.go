package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"workflow-cycle-service/internal/notification-worker/senders"
	"workflow-cycle-service/internal/workflow-manager/events"
)

const (
	DefaultKafkaBrokers = "localhost:9092"
	DefaultEventTopic   = "workflow_cycle_events"
	DefaultGroupID      = "notification-worker-group"
	DefaultSenderTypes  = senders.SenderTypeLog
)

func main() {
	log.Println("Starting Notification Worker Service...")

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		kafkaBrokers = DefaultKafkaBrokers
	}
	eventTopic := os.Getenv("CYCLE_EVENT_TOPIC")
	if eventTopic == "" {
		eventTopic = DefaultEventTopic
	}
	groupID := os.Getenv("GROUP_ID")
	if groupID == "" {
		groupID = DefaultGroupID
	}
	senderTypes := os.Getenv("NOTIFICATION_SENDERS")
	if senderTypes == "" {
		senderTypes = DefaultSenderTypes
	}

	var active []senders.Sender
	for _, senderType := range strings.Split(senderTypes, ",") {
		sender, err := senders.GetSender(strings.TrimSpace(senderType))
		if err != nil {
			log.Fatalf("Notification Worker: %v", err)
		}
		active = append(active, sender)
	}

	brokerList := strings.Split(kafkaBrokers, ",")
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokerList, GroupID: groupID, Topic: eventTopic,
		MinBytes: 10e3, MaxBytes: 10e6, CommitInterval: time.Second, MaxWait: 3 * time.Second,
	})
	defer reader.Close()
	log.Printf("Notification Worker Kafka consumer configured for brokers: %s, topic: %s, groupID: %s", kafkaBrokers, eventTopic, groupID)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := <-signals
		log.Printf("Notification Worker: Shutdown signal received (%s). Cancelling context...", sig)
		cancel()
	}()

	log.Println("Notification Worker listening for cycle events...")
	for {
		select {
		case <-ctx.Done():
			log.Println("Notification Worker: Context cancelled. Exiting message loop.")
			return
		default:
			readCtx, readLoopCancel := context.WithTimeout(ctx, 1*time.Second)
			m, err := reader.ReadMessage(readCtx)
			readLoopCancel()
			if err == context.DeadlineExceeded {
				continue
			}
			if err == context.Canceled {
				log.Println("Notification Worker: Read context cancelled, likely due to shutdown.")
				continue
			}
			if err == io.EOF {
				log.Println("Notification Worker: Kafka reader closed (EOF). Exiting.")
				return
			}
			if err != nil {
				log.Printf("Notification Worker: Kafka read error: %v. Retrying...", err)
				time.Sleep(1 * time.Second)
				continue
			}
			log.Printf("Notification Worker: Received message: Topic %s, Partition %d, Offset %d", m.Topic, m.Partition, m.Offset)

			var payload events.CycleEventPayload
			if err := json.Unmarshal(m.Value, &payload); err != nil {
				log.Printf("Notification Worker: Unmarshal error for cycle event: %v. Value: %s", err, string(m.Value))
				continue
			}
			notification := senders.Notification{
				Event:          payload.Event,
				WorkflowID:     payload.WorkflowID,
				CycleID:        payload.CycleID,
				CycleStartDate: payload.CycleStartDate,
				Error:          payload.Error,
			}
			for _, sender := range active {
				if err := sender.Send(notification); err != nil {
					log.Printf("Notification Worker: sender error for workflow %d: %v", payload.WorkflowID, err)
				}
			}
		}
	}
}
