package main

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/checkout-backend/pkg/outbox/registry"
)

type publisherSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// topicPublishers keeps one Pub/Sub publisher per topic for the life of the process.
type topicPublishers struct {
	source publisherSource

	mu      sync.Mutex
	byTopic map[string]*gcppubsub.Publisher
}

func newTopicPublishers(source publisherSource) *topicPublishers {
	return &topicPublishers{source: source, byTopic: make(map[string]*gcppubsub.Publisher)}
}

func (t *topicPublishers) Ping(ctx context.Context) error {
	return t.source.Ping(ctx)
}

func (t *topicPublishers) Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	pub := t.publisher(topic)
	if pub == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	return pub.Publish(ctx, msg).Get(ctx)
}

func (t *topicPublishers) publisher(topic string) *gcppubsub.Publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pub, ok := t.byTopic[topic]; ok {
		return pub
	}
	pub := t.source.Publisher(topic)
	if pub != nil {
		t.byTopic[topic] = pub
	}
	return pub
}

// Stop flushes pending messages on every publisher handed out.
func (t *topicPublishers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, pub := range t.byTopic {
		pub.Stop()
		delete(t.byTopic, topic)
	}
}
