package notifier

import (
	"context"
	"strconv"
	"time"
)

// StatusEvent is the Pub/Sub payload for status changes and replies.
type StatusEvent struct {
	Kind       string    `json:"kind"`
	ChatID     int64     `json:"chat_id"`
	MessageID  int64     `json:"message_id"`
	Status     string    `json:"status,omitempty"`
	Text       string    `json:"text,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PublishFunc publishes obj to topic. config.PublishJSON satisfies it.
type PublishFunc func(ctx context.Context, topic string, obj interface{}, attrs map[string]string) (string, error)

// PubSubPublisher emits status events to a topic for downstream consumers.
type PubSubPublisher struct {
	Topic   string
	Publish PublishFunc
	Now     func() time.Time
}

func (p *PubSubPublisher) Notify(ctx context.Context, chatID, threadID int64, status string) error {
	return p.publish(ctx, StatusEvent{Kind: "status", ChatID: chatID, MessageID: threadID, Status: status})
}

func (p *PubSubPublisher) Reply(ctx context.Context, chatID, threadID int64, text string) error {
	return p.publish(ctx, StatusEvent{Kind: "reply", ChatID: chatID, MessageID: threadID, Text: text})
}

func (p *PubSubPublisher) publish(ctx context.Context, ev StatusEvent) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ev.OccurredAt = now().UTC()
	_, err := p.Publish(ctx, p.Topic, ev, map[string]string{
		"kind":    ev.Kind,
		"chat_id": strconv.FormatInt(ev.ChatID, 10),
	})
	return err
}
