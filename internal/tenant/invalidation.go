package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/persona-platform/pkg/logging"
)

// Message is one received queue message.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Queue is the subset of a message queue the listener needs.
type Queue interface {
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type sqsAPI interface {
	ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(context.Context, *sqs.DeleteMessageInput, ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue implements Queue on AWS (or LocalStack) SQS.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

// NewSQSQueue creates a queue wrapper around the provided SQS client.
func NewSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("tenant: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("tenant: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("tenant: failed to receive SQS messages: %w", err)
	}

	messages := make([]Message, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, Message{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("tenant: failed to delete SQS message: %w", err)
	}
	return nil
}

// invalidationPayload is published by the admin process after it changes a
// tenant record out of band.
type invalidationPayload struct {
	TenantID string `json:"tenant_id"`
}

// InvalidationListener drains invalidation events and drops the matching
// cache entries.
type InvalidationListener struct {
	queue       Queue
	dir         Directory
	logger      *logging.Logger
	batchSize   int
	waitSeconds int
	wg          sync.WaitGroup
}

// NewInvalidationListener wires a queue to a directory.
func NewInvalidationListener(queue Queue, dir Directory, waitSeconds int, logger *logging.Logger) *InvalidationListener {
	if queue == nil {
		panic("tenant: invalidation queue cannot be nil")
	}
	if dir == nil {
		panic("tenant: directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if waitSeconds < 0 || waitSeconds > 20 {
		waitSeconds = 20
	}
	return &InvalidationListener{
		queue:       queue,
		dir:         dir,
		logger:      logger,
		batchSize:   10,
		waitSeconds: waitSeconds,
	}
}

// Start runs the poll loop in a goroutine until ctx is cancelled.
func (l *InvalidationListener) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.run(ctx)
}

// Wait blocks until the poll loop exits.
func (l *InvalidationListener) Wait() {
	l.wg.Wait()
}

func (l *InvalidationListener) run(ctx context.Context) {
	defer l.wg.Done()
	l.logger.Debug("tenant invalidation listener started")

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("tenant invalidation listener stopping")
			return
		default:
		}

		messages, err := l.queue.Receive(ctx, l.batchSize, l.waitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			l.logger.Error("failed to receive invalidation events", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			l.Handle(ctx, msg)
		}
	}
}

// Handle applies one message. Malformed messages are dropped so they do not
// block the queue.
func (l *InvalidationListener) Handle(ctx context.Context, msg Message) {
	var payload invalidationPayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		l.logger.Error("failed to decode invalidation event", "error", err, "msg_id", msg.ID)
		l.delete(msg)
		return
	}
	id := strings.TrimSpace(payload.TenantID)
	if id == "" {
		l.logger.Warn("invalidation event without tenant_id", "msg_id", msg.ID)
		l.delete(msg)
		return
	}
	l.dir.Invalidate(id)
	l.logger.Info("tenant cache invalidated", "tenant_id", id, "msg_id", msg.ID)
	l.delete(msg)
}

func (l *InvalidationListener) delete(msg Message) {
	if err := l.queue.Delete(context.Background(), msg.ReceiptHandle); err != nil {
		l.logger.Error("failed to delete invalidation event", "error", err, "msg_id", msg.ID)
	}
}
