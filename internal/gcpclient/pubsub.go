package gcpclient

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// PubSubAdapter dispatches ingestion jobs through a Pub/Sub topic, letting
// PipelineService.Enqueue hand processing off to a separate worker instead
// of running inline with the HTTP request.
type PubSubAdapter struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubAdapter creates a PubSubAdapter publishing to topicID.
func NewPubSubAdapter(ctx context.Context, project, topicID string) (*PubSubAdapter, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewPubSubAdapter: %w", err)
	}
	return &PubSubAdapter{client: client, topic: client.Topic(topicID)}, nil
}

// Compile-time check.
var _ service.JobPublisher = (*PubSubAdapter)(nil)

// Publish sends docID as the message body, blocking for the publish result.
func (a *PubSubAdapter) Publish(ctx context.Context, docID string) error {
	result := a.topic.Publish(ctx, &pubsub.Message{Data: []byte(docID)})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("gcpclient.PubSubAdapter.Publish: %w", err)
	}
	return nil
}

// Subscribe runs handle for every message delivered to subscriptionID until
// ctx is cancelled, acking on success and nacking on error so Pub/Sub
// redelivers. Intended to run in its own goroutine as the ingestion worker.
func (a *PubSubAdapter) Subscribe(ctx context.Context, subscriptionID string, handle func(ctx context.Context, docID string) error) error {
	sub := a.client.Subscription(subscriptionID)
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		docID := string(msg.Data)
		if err := handle(ctx, docID); err != nil {
			slog.Error("pubsub worker: job failed", "document_id", docID, "error", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("gcpclient.PubSubAdapter.Subscribe: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (a *PubSubAdapter) Close() error { return a.client.Close() }
