package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/services"
)

func TestPubSubDispatcherPublishesNotification(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	dispatcher, err := NewPubSubDispatcher(topic)
	if err != nil {
		t.Fatalf("NewPubSubDispatcher: %v", err)
	}

	occurredAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	notification := services.Notification{
		Type:       "order.placed",
		OrderID:    "ord-1",
		UserID:     "user-1",
		OccurredAt: occurredAt,
		Metadata:   map[string]string{"number": "ORD-000042"},
	}

	if err := dispatcher.Dispatch(ctx, notification); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.Notification
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Type != notification.Type || payload.OrderID != notification.OrderID {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.Metadata["number"] != "ORD-000042" {
		t.Fatalf("expected order number metadata, got %#v", payload.Metadata)
	}
	if attr := messages[0].Attributes["type"]; attr != "order.placed" {
		t.Fatalf("expected type attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["refundId"]; ok {
		t.Fatalf("refundId attribute should be omitted when empty")
	}
}

func TestNewPubSubDispatcherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubDispatcher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
