package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()
	asyncProducer := newFakeAsyncProducer()

	producer := newProducer(asyncProducer, config.KafkaSettings{TopicPrefix: "autodoc"}, zaptest.NewLogger(t))
	t.Cleanup(func() { close(asyncProducer.errors) })

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "autodoc-access",
		Env:  "test",
	}, zaptest.NewLogger(t))
	return publisher, asyncProducer
}

func receiveEnvelope(t *testing.T, asyncProducer *fakeAsyncProducer) (*sarama.ProducerMessage, map[string]any) {
	t.Helper()
	select {
	case msg := <-asyncProducer.input:
		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}
		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return msg, envelope
	case <-time.After(time.Second):
		t.Fatal("expected message to be published")
	}
	return nil, nil
}

func TestPublishInvitationAccepted(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	acceptedAt := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)
	event := domain.InvitationAcceptedEvent{
		EventID:        "event-123",
		InvitationID:   "inv-456",
		OrganizationID: "org-1",
		UserID:         "user-789",
		Role:           domain.RoleMember,
		AcceptedAt:     acceptedAt,
	}

	if err := publisher.PublishInvitationAccepted(context.Background(), event); err != nil {
		t.Fatalf("PublishInvitationAccepted returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, asyncProducer)
	if msg.Topic != EventInvitationAccepted {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "org-1" {
		t.Fatalf("expected organization partition key, got %s", key)
	}

	if got := envelope["event_type"]; got != EventInvitationAccepted {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["organization_id"]; got != "org-1" {
		t.Fatalf("unexpected organization_id: %v", got)
	}
	if got := envelope["timestamp"]; got != acceptedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", got)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if payload["invitation_id"] != "inv-456" || payload["role"] != "member" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	metadata, ok := envelope["metadata"].(map[string]any)
	if !ok || metadata["service"] != "autodoc-access" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %v", envelope["metadata"])
	}
}

func TestPublishAPIKeyIssuedOmitsSecretAndKeysByUserWithoutOrganization(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	event := domain.APIKeyIssuedEvent{
		KeyID:       "key-1",
		UserID:      "user-1",
		Permissions: domain.PermissionsForRole(domain.RoleMember),
		IssuedAt:    time.Now(),
		Reason:      "invitation",
	}
	if err := publisher.PublishAPIKeyIssued(context.Background(), event); err != nil {
		t.Fatalf("PublishAPIKeyIssued returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, asyncProducer)
	key, _ := msg.Key.Encode()
	if string(key) != "user-1" {
		t.Fatalf("expected user partition key, got %s", key)
	}
	if envelope["event_id"] == "" {
		t.Fatal("expected generated event id")
	}

	payload := envelope["payload"].(map[string]any)
	if _, ok := payload["secret"]; ok {
		t.Fatal("payload must not carry the key secret")
	}
	perms, ok := payload["permissions"].(map[string]any)
	if !ok || perms[domain.ResourceOrganization] == nil {
		t.Fatalf("unexpected permissions payload: %v", payload["permissions"])
	}
}

func TestPublishRespectsCancelledContext(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)
	asyncProducer.input <- &sarama.ProducerMessage{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishOrganizationCreated(ctx, domain.OrganizationCreatedEvent{OrganizationID: "org-1"})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTopicNameAvoidsDoublePrefix(t *testing.T) {
	producer := &Producer{cfg: config.KafkaSettings{TopicPrefix: "autodoc"}}
	if got := producer.TopicName(EventUserRegistered); got != "autodoc.user.registered" {
		t.Fatalf("unexpected topic %s", got)
	}
	if got := producer.TopicName("audit"); got != "autodoc.audit" {
		t.Fatalf("unexpected topic %s", got)
	}
}

func TestProducerCountsFailedDeliveries(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	producer := newProducer(asyncProducer, config.KafkaSettings{}, zaptest.NewLogger(t))

	asyncProducer.errors <- &sarama.ProducerError{
		Msg: &sarama.ProducerMessage{Topic: "autodoc.invitation.created", Key: sarama.StringEncoder("org-1")},
		Err: errors.New("leader not available"),
	}
	close(asyncProducer.errors)

	if err := producer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if got := producer.Failures(); got != 1 {
		t.Fatalf("expected 1 failed delivery, got %d", got)
	}
}

func TestSaramaConfigAcksFollowMode(t *testing.T) {
	if cfg := newSaramaConfig(config.KafkaSettings{Async: true}); cfg.Producer.RequiredAcks != sarama.WaitForLocal {
		t.Fatalf("async mode should wait for leader only, got %v", cfg.Producer.RequiredAcks)
	}
	if cfg := newSaramaConfig(config.KafkaSettings{}); cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("sync mode should wait for all replicas, got %v", cfg.Producer.RequiredAcks)
	}
}

func TestStubPublisherAcceptsEveryEvent(t *testing.T) {
	stub := NewStubPublisher(zaptest.NewLogger(t))
	ctx := context.Background()

	if err := stub.PublishUserRegistered(ctx, domain.UserRegisteredEvent{UserID: "u", Email: "a@b.io"}); err != nil {
		t.Fatalf("PublishUserRegistered returned error: %v", err)
	}
	if err := stub.PublishInvitationCreated(ctx, domain.InvitationCreatedEvent{InvitationID: "i"}); err != nil {
		t.Fatalf("PublishInvitationCreated returned error: %v", err)
	}
	if err := stub.PublishAPIKeyIssued(ctx, domain.APIKeyIssuedEvent{KeyID: "k"}); err != nil {
		t.Fatalf("PublishAPIKeyIssued returned error: %v", err)
	}
}
