package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// SQSAPI is the slice of the SQS API this package needs.
type SQSAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
	DeleteQueue(ctx context.Context, params *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// SNSAPI is the slice of the SNS API this package needs.
type SNSAPI interface {
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
}

// AWSClients bundles the messaging clients built from the ambient AWS
// configuration.
type AWSClients struct {
	SQS SQSAPI
	SNS SNSAPI
}

// NewAWSClients loads the default AWS configuration and constructs the
// SQS and SNS clients from it.
func NewAWSClients(ctx context.Context) (*AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &AWSClients{
		SQS: sqs.NewFromConfig(cfg),
		SNS: sns.NewFromConfig(cfg),
	}, nil
}

// QueueSubscription owns a uniquely named SQS queue subscribed to the
// producer's SNS topic. Close tears down both the subscription and the
// queue so abandoned queues do not accumulate.
type QueueSubscription struct {
	sqs             SQSAPI
	sns             SNSAPI
	queueURL        string
	subscriptionARN string
}

// NewQueueSubscription creates the queue, grants the topic permission to
// deliver to it, and subscribes it to the topic.
func NewQueueSubscription(ctx context.Context, sqsClient SQSAPI, snsClient SNSAPI, topicARN string) (*QueueSubscription, error) {
	name := "gasmon-" + uuid.NewString()

	created, err := sqsClient.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("create queue %s: %w", name, err)
	}
	queueURL := aws.ToString(created.QueueUrl)

	attrs, err := sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       created.QueueUrl,
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return nil, fmt.Errorf("get queue arn: %w", err)
	}
	queueARN := attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]

	policy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"Service": "sns.amazonaws.com"},
			"Action": "sqs:SendMessage",
			"Resource": %q,
			"Condition": {"ArnEquals": {"aws:SourceArn": %q}}
		}]
	}`, queueARN, topicARN)

	if _, err := sqsClient.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl: created.QueueUrl,
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNamePolicy): policy,
		},
	}); err != nil {
		return nil, fmt.Errorf("set queue policy: %w", err)
	}

	subscribed, err := snsClient.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(topicARN),
		Protocol: aws.String("sqs"),
		Endpoint: aws.String(queueARN),
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe queue to topic: %w", err)
	}

	return &QueueSubscription{
		sqs:             sqsClient,
		sns:             snsClient,
		queueURL:        queueURL,
		subscriptionARN: aws.ToString(subscribed.SubscriptionArn),
	}, nil
}

// QueueURL returns the URL of the subscribed queue.
func (q *QueueSubscription) QueueURL() string {
	return q.queueURL
}

// Close unsubscribes from the topic and deletes the queue.
func (q *QueueSubscription) Close(ctx context.Context) error {
	if _, err := q.sns.Unsubscribe(ctx, &sns.UnsubscribeInput{
		SubscriptionArn: aws.String(q.subscriptionARN),
	}); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if _, err := q.sqs.DeleteQueue(ctx, &sqs.DeleteQueueInput{
		QueueUrl: aws.String(q.queueURL),
	}); err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}
	return nil
}

// snsEnvelope is the SNS notification wrapper around the event body.
type snsEnvelope struct {
	Message string `json:"Message"`
}

// SQSReceiver long-polls the subscribed queue and delivers parsed events.
type SQSReceiver struct {
	client   SQSAPI
	queueURL string
	logger   *slog.Logger
}

// Compile-time interface check.
var _ Source = (*SQSReceiver)(nil)

// NewSQSReceiver creates a receiver reading from the given subscription.
func NewSQSReceiver(client SQSAPI, subscription *QueueSubscription, logger *slog.Logger) *SQSReceiver {
	return &SQSReceiver{
		client:   client,
		queueURL: subscription.QueueURL(),
		logger:   logger,
	}
}

// Events long-polls the queue and pushes parsed events into a bounded
// channel until the context is cancelled. Malformed messages are skipped
// with a warning; every received message is deleted from the queue.
func (r *SQSReceiver) Events(ctx context.Context) <-chan event.Event {
	out := make(chan event.Event, eventBuffer)

	go func() {
		defer close(out)

		for {
			if ctx.Err() != nil {
				return
			}

			resp, err := r.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(r.queueURL),
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     5,
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if r.logger != nil {
					r.logger.Warn("receive messages failed",
						slog.String("error", err.Error()))
				}
				continue
			}

			entries := make([]sqstypes.DeleteMessageBatchRequestEntry, 0, len(resp.Messages))
			for i, msg := range resp.Messages {
				entries = append(entries, sqstypes.DeleteMessageBatchRequestEntry{
					Id:            aws.String(fmt.Sprintf("msg-%d", i)),
					ReceiptHandle: msg.ReceiptHandle,
				})

				evt, err := decodeSQSMessage([]byte(aws.ToString(msg.Body)))
				if err != nil {
					if r.logger != nil {
						r.logger.Warn("skipping malformed message",
							slog.String("error", err.Error()))
					}
					continue
				}

				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}

			if len(entries) > 0 {
				if _, err := r.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
					QueueUrl: aws.String(r.queueURL),
					Entries:  entries,
				}); err != nil && r.logger != nil {
					r.logger.Warn("delete message batch failed",
						slog.String("error", err.Error()))
				}
			}
		}
	}()

	return out
}

// decodeSQSMessage unwraps the SNS envelope and parses the event inside.
func decodeSQSMessage(body []byte) (event.Event, error) {
	var envelope snsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return event.Event{}, fmt.Errorf("parse sns envelope: %w", err)
	}
	return decodeEvent([]byte(envelope.Message))
}
