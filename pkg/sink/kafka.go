package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/1000xsh/voteperfx/pkg/detector"
	"github.com/1000xsh/voteperfx/pkg/epoch"
)

// Message types carried in the "type" header.
const (
	KafkaTypeEvent = "performance_event"
	KafkaTypeEpoch = "epoch_closed"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes performance events and closed epochs as JSON keyed by
// vote account.
type KafkaSink struct {
	writer      messageWriter
	voteAccount string
	now         func() time.Time
}

func NewKafkaSink(cfg KafkaConfig, voteAccount string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaSink{writer: writer, voteAccount: voteAccount, now: time.Now}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) HandleEvent(ctx context.Context, ev detector.Event) error {
	return s.publish(ctx, KafkaTypeEvent, ev)
}

func (s *KafkaSink) HandleEpochClosed(ctx context.Context, w epoch.Window) error {
	return s.publish(ctx, KafkaTypeEpoch, epochMessage{
		Window:      w,
		VoteAccount: s.voteAccount,
		Efficiency:  w.Efficiency(),
	})
}

type epochMessage struct {
	epoch.Window
	VoteAccount string  `json:"vote_account"`
	Efficiency  float64 `json:"efficiency"`
}

func (s *KafkaSink) publish(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(s.voteAccount),
		Value: data,
		Time:  s.now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(kind)},
			{Key: "schema", Value: []byte("1")},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
