package core

import (
	"context"
	"fmt"

	"attendance.service/internal/ports/messaging"
	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type DeliveryService interface {
	SendToken(ctx context.Context, to string, event messaging.TokenIssuedEvent) error
}

type SESDeliveryService struct {
	client *ses.Client
	sender string
}

func NewSESDeliveryService(client *ses.Client, sender string) *SESDeliveryService {
	return &SESDeliveryService{client: client, sender: sender}
}

func (s *SESDeliveryService) SendToken(ctx context.Context, to string, event messaging.TokenIssuedEvent) error {
	tracer := otel.Tracer("ses-delivery-service")
	ctx, span := tracer.Start(ctx, "send_token_email", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// Enrich span with workerId if available in context
	if workerID := telemetry.GetWorkerIDFromContext(ctx); workerID != "" {
		span.SetAttributes(attribute.String("app.worker_id", workerID))
	}

	body := fmt.Sprintf(
		"Hello,\n\nYour %s code for today is:\n\n%s\n\nIt can be scanned between %s and %s and works exactly once.",
		event.Action, event.Secret,
		event.ValidFrom.Format("15:04"), event.ValidUntil.Format("15:04"),
	)

	input := &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Your attendance code (%s)", event.Action)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body),
				},
			},
		},
	}

	_, err := s.client.SendEmail(ctx, input)
	return err
}
