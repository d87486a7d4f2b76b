package senders

import (
	"fmt"
	"log"
)

// Notification is the structure passed to a sender, decoded from one cycle
// event message.
type Notification struct {
	Event          string
	WorkflowID     uint
	CycleID        uint
	CycleStartDate string
	Error          string
}

// SenderType constants
const (
	SenderTypeLog     = "log-sender"
	SenderTypeWebhook = "webhook-sender"
)

type Sender interface {
	Send(notification Notification) error
}

var Registry = make(map[string]Sender)

func init() {
	RegisterSender(SenderTypeLog, &LogSender{})
	RegisterSender(SenderTypeWebhook, NewWebhookSender())
	log.Println("Sender registry initialized with known senders.")
}

func RegisterSender(senderType string, sender Sender) {
	log.Printf("Registering sender for type: %s", senderType)
	Registry[senderType] = sender
}

func GetSender(senderType string) (Sender, error) {
	sender, exists := Registry[senderType]
	if !exists {
		return nil, fmt.Errorf("no sender registered for type: %s", senderType)
	}
	return sender, nil
}
