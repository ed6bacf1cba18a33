// Package notifications delivers order and refund events to interested
// consumers over Cloud Pub/Sub.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/services"
)

// PubSubDispatcher publishes notifications to a Pub/Sub topic. Consumers such
// as the mailer subscribe to the topic and fan the events out to customers.
type PubSubDispatcher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubDispatcher constructs a Pub/Sub backed notification dispatcher.
func NewPubSubDispatcher(topic *pubsub.Topic) (*PubSubDispatcher, error) {
	if topic == nil {
		return nil, errors.New("pubsub dispatcher: topic is required")
	}
	return &PubSubDispatcher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Dispatch publishes the notification and waits for the server ack.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, n services.Notification) error {
	if d == nil || d.topic == nil {
		return errors.New("pubsub dispatcher: not initialised")
	}

	data, err := d.marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", n.Type)
	setAttr(attrs, "orderId", n.OrderID)
	setAttr(attrs, "refundId", n.RefundID)
	setAttr(attrs, "userId", n.UserID)

	result := d.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
