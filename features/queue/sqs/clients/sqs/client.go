// Package sqs wraps the AWS SQS SDK behind the narrow surface the queue
// consumer needs: long-poll receive and per-message delete.
package sqs

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type (
	// Client is the queue surface consumed by the poller.
	Client interface {
		// Receive long-polls the queue and returns up to Options.MaxMessages
		// messages. An empty slice means the poll timed out with nothing to do.
		Receive(ctx context.Context) ([]Message, error)
		// Delete removes a message from the queue by receipt handle.
		Delete(ctx context.Context, receiptHandle string) error
		// VisibilityTimeout reports the per-message processing window.
		VisibilityTimeout() int32
	}

	// Message is one received queue message.
	Message struct {
		// ID is the SQS message ID, used in batch failure reports.
		ID string
		// ReceiptHandle identifies this delivery for deletion.
		ReceiptHandle string
		// Body is the raw message payload.
		Body string
		// Attributes holds the message attribute string values.
		Attributes map[string]string
	}

	// API is the subset of the SQS service client the wrapper uses.
	API interface {
		ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
		DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
	}

	// Options configures the SQS client wrapper.
	Options struct {
		// QueueURL is the full SQS queue URL. Required.
		QueueURL string
		// MaxMessages caps each receive batch. Defaults to 10, the SQS maximum.
		MaxMessages int32
		// WaitTime is the long-poll duration in seconds. Defaults to 20.
		WaitTime int32
		// VisibilityTimeout is the processing window in seconds. Defaults to 300.
		VisibilityTimeout int32
	}

	client struct {
		api        API
		queueURL   string
		maxMsgs    int32
		waitTime   int32
		visibility int32
	}
)

// New wraps an SQS service client.
func New(api API, opts Options) (Client, error) {
	if api == nil {
		return nil, errors.New("sqs api is required")
	}
	if opts.QueueURL == "" {
		return nil, errors.New("queue URL is required")
	}
	maxMsgs := opts.MaxMessages
	if maxMsgs == 0 {
		maxMsgs = 10
	}
	waitTime := opts.WaitTime
	if waitTime == 0 {
		waitTime = 20
	}
	visibility := opts.VisibilityTimeout
	if visibility == 0 {
		visibility = 300
	}
	return &client{
		api:        api,
		queueURL:   opts.QueueURL,
		maxMsgs:    maxMsgs,
		waitTime:   waitTime,
		visibility: visibility,
	}, nil
}

func (c *client) Receive(ctx context.Context) ([]Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:              aws.String(c.queueURL),
		MaxNumberOfMessages:   c.maxMsgs,
		WaitTimeSeconds:       c.waitTime,
		VisibilityTimeout:     c.visibility,
		MessageAttributeNames: []string{string(types.QueueAttributeNameAll)},
	})
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
		}
		if len(m.MessageAttributes) > 0 {
			msg.Attributes = make(map[string]string, len(m.MessageAttributes))
			for name, attr := range m.MessageAttributes {
				msg.Attributes[name] = aws.ToString(attr.StringValue)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *client) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (c *client) VisibilityTimeout() int32 {
	return c.visibility
}
