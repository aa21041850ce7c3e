// Package kafka ships audit events to a Kafka topic. The sink is append-only;
// reading the trail back is a consumer concern, not this service's.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	id "kinlink/pkg/domain"
	audit "kinlink/pkg/platform/audit"
	"kinlink/pkg/platform/sentinel"
)

type Sink struct {
	client *kgo.Client
	topic  string
}

// record is the wire shape of an audit event.
type record struct {
	Timestamp time.Time `json:"timestamp"`
	AccountID string    `json:"account_id"`
	MemberID  string    `json:"member_id,omitempty"`
	Action    string    `json:"action"`
	Relation  string    `json:"relation,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Device    string    `json:"device,omitempty"`
}

// NewSink connects to the given seed brokers and makes sure the topic exists.
func NewSink(ctx context.Context, seeds []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, topic); err != nil {
		// Topic may already exist; only a transport failure is fatal here.
		if pingErr := client.Ping(ctx); pingErr != nil {
			client.Close()
			return nil, fmt.Errorf("kafka unreachable: %w", pingErr)
		}
	}

	return &Sink{client: client, topic: topic}, nil
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	memberID := ""
	if !event.MemberID.IsZero() {
		memberID = event.MemberID.String()
	}
	payload, err := json.Marshal(record{
		Timestamp: event.Timestamp,
		AccountID: event.AccountID.String(),
		MemberID:  memberID,
		Action:    event.Action,
		Relation:  event.Relation,
		Outcome:   event.Outcome,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		Device:    event.Device,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.AccountID.String()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByAccount is unsupported on the Kafka sink; audit consumers read the
// topic directly.
func (s *Sink) ListByAccount(_ context.Context, _ id.AccountID) ([]audit.Event, error) {
	return nil, fmt.Errorf("audit trail is not readable from the kafka sink: %w", sentinel.ErrUnavailable)
}

func (s *Sink) Close() {
	s.client.Close()
}
