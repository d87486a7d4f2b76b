package kafka

import (
	"log"
	"os"
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultKafkaBrokers    = "localhost:9092"
	DefaultCycleEventTopic = "workflow_cycle_events"
)

// NewCycleEventsProducer builds the Kafka writer for cycle lifecycle events.
// Brokers and topic come from KAFKA_BROKERS / CYCLE_EVENT_TOPIC.
func NewCycleEventsProducer() *kafka.Writer {
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		kafkaBrokers = DefaultKafkaBrokers
	}
	topic := os.Getenv("CYCLE_EVENT_TOPIC")
	if topic == "" {
		topic = DefaultCycleEventTopic
	}
	brokerList := strings.Split(kafkaBrokers, ",")
	producer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokerList,
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireOne),
		Async:        false,
	})
	log.Printf("Workflow Manager Kafka producer configured for cycle events topic: %s", topic)
	return producer
}
