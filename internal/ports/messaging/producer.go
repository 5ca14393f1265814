package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Producer struct {
	sender           MessageSender
	deliveryQueueURL string
}

func NewProducer(sender MessageSender, deliveryQueueURL string) *Producer {
	return &Producer{
		sender:           sender,
		deliveryQueueURL: deliveryQueueURL,
	}
}

func NewSQSProducer(client SQSClient, deliveryQueueURL string) *Producer {
	return NewProducer(&SQSSender{client: client}, deliveryQueueURL)
}

func (p *Producer) PublishDelivery(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.deliveryQueueURL, body)
}

func (p *Producer) publish(ctx context.Context, destination string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	// Enrich the current span with worker_id if available
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		var payload struct {
			WorkerID string `json:"workerId"`
		}
		if err := json.Unmarshal(b, &payload); err == nil && payload.WorkerID != "" {
			span.SetAttributes(attribute.String("app.worker_id", payload.WorkerID))
		}
	}

	if err := p.sender.SendMessage(ctx, destination, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
