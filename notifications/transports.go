package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NopTransport drops every message.
type NopTransport struct{}

func (NopTransport) Deliver(context.Context, Message) error { return nil }

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct {
	log *logrus.Entry
}

func NewLogTransport(log *logrus.Entry) *LogTransport {
	return &LogTransport{log: log.WithField("component", "notifications")}
}

func (t *LogTransport) Deliver(_ context.Context, msg Message) error {
	t.log.WithFields(logrus.Fields{
		"issue_id": msg.IssueID,
		"subject":  msg.Subject,
		"body":     msg.Body,
	}).Info("Email would be sent")
	return nil
}

// RedisQueueTransport pushes JSON messages onto a Redis list for a
// downstream mailer to consume.
type RedisQueueTransport struct {
	client redis.Cmdable
	queue  string
}

func NewRedisQueueTransport(client redis.Cmdable, queue string) *RedisQueueTransport {
	return &RedisQueueTransport{client: client, queue: queue}
}

func (t *RedisQueueTransport) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := t.client.RPush(ctx, t.queue, payload).Err(); err != nil {
		return fmt.Errorf("push notification to %s: %w", t.queue, err)
	}
	return nil
}
