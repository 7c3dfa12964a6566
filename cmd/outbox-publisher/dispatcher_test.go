package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/config"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
	"github.com/angelmondragon/checkout-backend/pkg/outbox"
	"github.com/angelmondragon/checkout-backend/pkg/outbox/registry"
)

func TestDrainOnceRetriesFailureAndPublishesRest(t *testing.T) {
	first := orderEvent(t, 0)
	second := orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{errs: []error{errors.New("transient"), nil}}
	dlq := &fakeDeadLetters{}
	d := newTestDispatcher(t, repo, pub, dlq, 5)

	processed, err := d.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 rows processed, got %d", processed)
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
	if len(dlq.entries) != 0 {
		t.Fatalf("expected no dead letters, got %d", len(dlq.entries))
	}
}

func TestDrainOnceSetsMessageAttributes(t *testing.T) {
	event := orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	d := newTestDispatcher(t, repo, pub, &fakeDeadLetters{}, 5)

	if _, err := d.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	sent := pub.sent[0]
	if sent.topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", sent.topic)
	}
	if got := sent.msg.Attributes["event_type"]; got != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type attribute %q", got)
	}
	if got := sent.msg.Attributes["aggregate_id"]; got != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute %q", got)
	}
}

func TestDrainOnceDeadLettersUnresolvableEvent(t *testing.T) {
	event := orderEvent(t, 0)
	event.EventType = "unknown_event"
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	dlq := &fakeDeadLetters{}
	d := newTestDispatcher(t, repo, pub, dlq, 5)

	if _, err := d.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("expected nothing published")
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dlq.entries))
	}
	if dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected reason %s", dlq.entries[0].ErrorReason)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row pinned terminal, got %v", repo.terminal)
	}
}

func TestDrainOnceDeadLettersAfterMaxAttempts(t *testing.T) {
	event := orderEvent(t, 2)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{errs: []error{errors.New("unavailable")}}
	dlq := &fakeDeadLetters{}
	d := newTestDispatcher(t, repo, pub, dlq, 3)

	if _, err := d.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected reason %s", entry.ErrorReason)
	}
	if entry.EventID != event.ID || string(entry.Payload) != string(event.Payload) {
		t.Fatalf("dead letter does not mirror the outbox row")
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal rows must not be marked for retry")
	}
}

func TestDrainOnceDeadLettersNonRetryablePublishError(t *testing.T) {
	event := orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{errs: []error{registry.NewNonRetryableError(errors.New("topic missing"))}}
	dlq := &fakeDeadLetters{}
	d := newTestDispatcher(t, repo, pub, dlq, 5)

	if _, err := d.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non-retryable dead letter, got %+v", dlq.entries)
	}
}

func TestDrainOnceAbortsOnBookkeepingError(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, 0)}, publishErr: errors.New("db gone")}
	d := newTestDispatcher(t, repo, &fakePublisher{}, &fakeDeadLetters{}, 5)

	if _, err := d.DrainOnce(context.Background()); err == nil {
		t.Fatal("expected bookkeeping error to abort the batch")
	}
}

func TestTopicPublishersRejectsUnknownTopic(t *testing.T) {
	topics := newTopicPublishers(&nilSource{})
	_, err := topics.Publish(context.Background(), "missing", &gcppubsub.Message{})
	var nonRetryable registry.NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	if _, err := NewDispatcher(DispatcherParams{}); err == nil {
		t.Fatal("expected error for empty params")
	}
}

func newTestDispatcher(t *testing.T, repo outboxRepository, pub topicPublisher, dlq deadLetterRepository, maxAttempts int) *Dispatcher {
	t.Helper()
	resolver, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	d, err := NewDispatcher(DispatcherParams{
		Outbox:      config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		Logger:      logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:          fakeDB{},
		Repository:  repo,
		DeadLetters: dlq,
		Resolver:    resolver,
		Publisher:   pub,
	})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return d
}

func orderEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(map[string]any{"orderId": orderID, "orderNumber": "ORD-1"})
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type sentMessage struct {
	topic string
	msg   *gcppubsub.Message
}

type fakePublisher struct {
	errs []error
	sent []sentMessage
}

func (f *fakePublisher) Ping(context.Context) error { return nil }

func (f *fakePublisher) Publish(_ context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	if err != nil {
		return "", err
	}
	f.sent = append(f.sent, sentMessage{topic: topic, msg: msg})
	return "server-id", nil
}

type fakeDeadLetters struct {
	entries []models.OutboxDLQ
}

func (f *fakeDeadLetters) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type nilSource struct{}

func (nilSource) Ping(context.Context) error { return nil }

func (nilSource) Publisher(string) *gcppubsub.Publisher { return nil }
