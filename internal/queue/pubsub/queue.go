// Package pubsubqueue implements the lane queue on Google Cloud Pub/Sub.
//
// Each lane maps to one topic and one subscription named
// "<prefix>-<lane>". Delivery is at-least-once; a handler error nacks the
// message and leaves redelivery to the subscription's policy.
package pubsubqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// Config identifies the Pub/Sub project and naming scheme.
type Config struct {
	ProjectID          string
	TopicPrefix        string
	SubscriptionPrefix string
}

// Queue publishes and consumes lane jobs over Pub/Sub.
type Queue struct {
	client *pubsub.Client
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	topics map[watch.Lane]*pubsub.Topic
}

// New creates a Pub/Sub client using application default credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("pubsub project id is required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Queue{
		client: client,
		cfg:    cfg,
		logger: logger,
		topics: make(map[watch.Lane]*pubsub.Topic),
	}, nil
}

// Enqueue publishes the job envelope as JSON and waits for the server ack.
func (q *Queue) Enqueue(ctx context.Context, lane watch.Lane, job watch.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	result := q.topic(lane).Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"kind": string(job.Kind)},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish to lane %q: %w", lane, err)
	}
	return nil
}

// Consume receives lane messages until the context finishes. Handler errors
// nack; undecodable envelopes are acked and dropped, retrying them cannot
// succeed.
func (q *Queue) Consume(ctx context.Context, lane watch.Lane, handler watch.Handler) error {
	sub := q.client.Subscription(q.cfg.SubscriptionPrefix + "-" + string(lane))
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var job watch.Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			q.logger.Error("dropping undecodable job envelope",
				zap.String("lane", string(lane)),
				zap.Error(err),
			)
			msg.Ack()
			return
		}
		if err := handler.Handle(ctx, job); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive on lane %q: %w", lane, err)
	}
	return nil
}

// Close stops the publishers and closes the client connection.
func (q *Queue) Close() error {
	q.mu.Lock()
	for _, t := range q.topics {
		t.Stop()
	}
	q.mu.Unlock()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

func (q *Queue) topic(lane watch.Lane) *pubsub.Topic {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.topics[lane]
	if !ok {
		t = q.client.Topic(q.cfg.TopicPrefix + "-" + string(lane))
		q.topics[lane] = t
	}
	return t
}
