package senders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// WebhookSender POSTs notifications as JSON to NOTIFICATION_WEBHOOK_URL.
// With no URL configured it is a no-op so the worker can run without a
// downstream receiver.
type WebhookSender struct {
	URL    string
	Client *client.Client
}

func NewWebhookSender() *WebhookSender {
	c, err := client.NewClient(client.WithDialTimeout(5 * time.Second))
	if err != nil {
		log.Printf("WebhookSender: failed to create Hertz client: %v", err)
	}
	return &WebhookSender{URL: os.Getenv("NOTIFICATION_WEBHOOK_URL"), Client: c}
}

// Send implements the Sender interface.
func (s *WebhookSender) Send(notification Notification) error {
	if s.URL == "" {
		log.Printf("WebhookSender: NOTIFICATION_WEBHOOK_URL not set, skipping %s for workflow %d",
			notification.Event, notification.WorkflowID)
		return nil
	}
	if s.Client == nil {
		return fmt.Errorf("webhook sender has no HTTP client")
	}
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("error marshalling webhook body: %w", err)
	}

	req := &protocol.Request{}
	res := &protocol.Response{}
	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(s.URL)
	req.SetBody(body)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Client.Do(ctx, req, res); err != nil {
		return fmt.Errorf("webhook POST failed: %w", err)
	}
	if res.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d", res.StatusCode())
	}
	log.Printf("WebhookSender: delivered %s for workflow %d (status %d)",
		notification.Event, notification.WorkflowID, res.StatusCode())
	return nil
}
