package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/clinic-intake/internal/events"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueSink publishes booking events as JSON onto an SQS queue for
// downstream consumers (CRM sync, reminders).
type QueueSink struct {
	client   sqsAPI
	queueURL string
}

// NewQueueSink returns nil when no queue is configured.
func NewQueueSink(client *sqs.Client, queueURL string) *QueueSink {
	if client == nil || queueURL == "" {
		return nil
	}
	return &QueueSink{client: client, queueURL: queueURL}
}

func (q *QueueSink) Name() string { return "queue" }

func (q *QueueSink) Notify(ctx context.Context, evt events.AppointmentBookedV1) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal booking event: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String("appointment.booked.v1"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}
