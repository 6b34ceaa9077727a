package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

// deadLetterValue собирает DLQ-сообщение в том виде, в каком его публикует outbox worker.
func deadLetterValue(t *testing.T, id, orderID, eventType string) []byte {
	t.Helper()
	inner, err := json.Marshal(map[string]any{
		"outbox_id":      id,
		"aggregate_type": domain.AggregateTypeOrder,
		"aggregate_id":   orderID,
		"event_type":     eventType,
		"payload":        map[string]any{"order_id": orderID},
		"publish_error":  "broker unavailable",
	})
	if err != nil {
		t.Fatalf("marshal dlq payload: %v", err)
	}
	event := domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       inner,
		CreatedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	value, err := json.Marshal(kafka.NewEnvelope(event, time.Now().UTC()))
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return value
}

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 || brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-brokers=broker-1:9092,broker-2:9092",
		"-event-type=" + domain.EventOrderPlaced,
		"-limit=10",
		"-execute",
		"-from-newest",
		"-idle-timeout=3s",
	}, io.Discard, func(string) string { return "" })
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if len(cfg.brokers) != 2 || cfg.limit != 10 || !cfg.execute || !cfg.fromNewest {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.sourceTopic != kafka.TopicDeadLetterQueue || cfg.targetTopic != kafka.TopicOrderEvents {
		t.Fatalf("unexpected default topics: %s -> %s", cfg.sourceTopic, cfg.targetTopic)
	}
	if cfg.eventType != domain.EventOrderPlaced || cfg.idleTimeout != 3*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseConfig_BrokersFromEnv(t *testing.T) {
	cfg, err := parseConfig(nil, io.Discard, func(key string) string {
		if key == envBrokers {
			return "kafka:9092"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if len(cfg.brokers) != 1 || cfg.brokers[0] != "kafka:9092" {
		t.Fatalf("unexpected brokers: %+v", cfg.brokers)
	}
}

func TestParseConfig_ValidationErrors(t *testing.T) {
	noEnv := func(string) string { return "" }
	tests := []struct {
		args []string
		want string
	}{
		{args: nil, want: "kafka brokers are required"},
		{args: []string{"-brokers=b:9092", "-source-topic= "}, want: "source-topic is required"},
		{args: []string{"-brokers=b:9092", "-target-topic="}, want: "target-topic is required"},
		{args: []string{"-brokers=b:9092", "-target-topic=" + kafka.TopicDeadLetterQueue}, want: "must differ"},
		{args: []string{"-brokers=b:9092", "-limit=0"}, want: "limit must be > 0"},
		{args: []string{"-brokers=b:9092", "-idle-timeout=0s"}, want: "idle-timeout must be > 0"},
	}
	for _, tt := range tests {
		_, err := parseConfig(tt.args, io.Discard, noEnv)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("args %v: expected error containing %q, got %v", tt.args, tt.want, err)
		}
	}

	if _, err := parseConfig([]string{"-h"}, io.Discard, noEnv); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestDecodeDeadLetter(t *testing.T) {
	now := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	got, err := decodeDeadLetter(deadLetterValue(t, "outbox-1", "order-1", domain.EventOrderPlaced), now)
	if err != nil {
		t.Fatalf("decodeDeadLetter failed: %v", err)
	}
	if got.key != "order-1" {
		t.Fatalf("unexpected key: %s", got.key)
	}
	if got.envelope.ID != "outbox-1" || got.envelope.EventType != domain.EventOrderPlaced {
		t.Fatalf("unexpected envelope: %+v", got.envelope)
	}
	if string(got.envelope.Payload) != `{"order_id":"order-1"}` {
		t.Fatalf("original payload not restored: %s", got.envelope.Payload)
	}
	if !got.envelope.OccurredAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) || !got.envelope.PublishedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %+v", got.envelope)
	}
	if got.reason != "broker unavailable" {
		t.Fatalf("unexpected reason: %s", got.reason)
	}
	headers := got.headers()
	if headers[kafka.HeaderOutboxID] != "outbox-1" || headers[kafka.HeaderAggregateType] != domain.AggregateTypeOrder {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestDecodeDeadLetter_Rejects(t *testing.T) {
	if _, err := decodeDeadLetter([]byte(`{"foo":"bar"}`), time.Now()); !errors.Is(err, errSkipMessage) {
		t.Fatalf("expected errSkipMessage, got %v", err)
	}
	if _, err := decodeDeadLetter([]byte(`not json`), time.Now()); !errors.Is(err, errSkipMessage) {
		t.Fatalf("expected errSkipMessage, got %v", err)
	}
	if _, err := decodeDeadLetter([]byte(`{"id":"x","payload":"not-an-object"}`), time.Now()); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := decodeDeadLetter([]byte(`{"id":"x","payload":{"outbox_id":"x"}}`), time.Now()); err == nil {
		t.Fatal("expected error for missing original payload")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "x", "y"); got != "x" {
		t.Fatalf("unexpected value: %q", got)
	}
	if got := firstNonEmpty("", " "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestReplayPartition_DryRun(t *testing.T) {
	deps := dependencies{
		offsets: &stubOffsets{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}},
		source: &stubSource{streams: map[int32]partitionStream{
			0: closedStream(
				&sarama.ConsumerMessage{Offset: 0, Value: deadLetterValue(t, "outbox-1", "order-1", domain.EventOrderPlaced)},
				&sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"foo":"bar"}`)},
			),
		}},
	}
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, idleTimeout: 20 * time.Millisecond}

	got, err := replayPartition(context.Background(), cfg, deps, 0, 10, loggerForTests())
	if err != nil {
		t.Fatalf("replayPartition failed: %v", err)
	}
	if got != (stats{processed: 2, replayed: 1, skipped: 1}) {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestReplayPartition_Execute(t *testing.T) {
	sink := &stubSink{}
	deps := dependencies{
		offsets: &stubOffsets{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}},
		source: &stubSource{streams: map[int32]partitionStream{
			0: closedStream(
				&sarama.ConsumerMessage{Offset: 0, Value: deadLetterValue(t, "outbox-1", "order-1", domain.EventOrderPlaced)},
				&sarama.ConsumerMessage{Offset: 1, Value: deadLetterValue(t, "outbox-2", "order-1", domain.EventOrderStatusChanged)},
			),
		}},
		sink: sink,
	}
	cfg := config{
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderEvents,
		eventType:   domain.EventOrderStatusChanged,
		execute:     true,
		idleTimeout: 20 * time.Millisecond,
	}

	got, err := replayPartition(context.Background(), cfg, deps, 0, 10, loggerForTests())
	if err != nil {
		t.Fatalf("replayPartition failed: %v", err)
	}
	if got != (stats{processed: 2, replayed: 1, skipped: 1}) {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected one published event, got %d", len(sink.sent))
	}
	sent := sink.sent[0]
	if sent.topic != kafka.TopicOrderEvents || sent.key != "order-1" {
		t.Fatalf("unexpected publish: %+v", sent)
	}
	if sent.envelope.ID != "outbox-2" || sent.headers[kafka.HeaderEventType] != domain.EventOrderStatusChanged {
		t.Fatalf("unexpected envelope: %+v", sent)
	}
}

func TestReplayPartition_FromNewest(t *testing.T) {
	source := &stubSource{streams: map[int32]partitionStream{0: closedStream()}}
	deps := dependencies{
		offsets: &stubOffsets{offsets: map[int32]offsetRange{0: {oldest: 3, newest: 10}}},
		source:  source,
	}
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, fromNewest: true, idleTimeout: 20 * time.Millisecond}

	if _, err := replayPartition(context.Background(), cfg, deps, 0, 4, loggerForTests()); err != nil {
		t.Fatalf("replayPartition failed: %v", err)
	}
	if len(source.calls) != 1 || source.calls[0].offset != 6 {
		t.Fatalf("unexpected consume calls: %+v", source.calls)
	}

	source.calls = nil
	source.streams[0] = closedStream()
	if _, err := replayPartition(context.Background(), cfg, deps, 0, 50, loggerForTests()); err != nil {
		t.Fatalf("replayPartition failed: %v", err)
	}
	if source.calls[0].offset != 3 {
		t.Fatalf("start offset must not go below oldest: %+v", source.calls)
	}
}

func TestReplayPartition_Errors(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, execute: true, idleTimeout: 20 * time.Millisecond}
	offsets := &stubOffsets{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}

	_, err := replayPartition(context.Background(), cfg, dependencies{
		offsets: &stubOffsets{offsetErr: errors.New("offset")},
		source:  &stubSource{},
	}, 0, 1, loggerForTests())
	if err == nil {
		t.Fatal("expected offset error")
	}

	_, err = replayPartition(context.Background(), cfg, dependencies{
		offsets: offsets,
		source:  &stubSource{consumeErr: errors.New("consume")},
	}, 0, 1, loggerForTests())
	if err == nil {
		t.Fatal("expected consume error")
	}

	failing := &stubStream{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	failing.errors <- &sarama.ConsumerError{Err: errors.New("consumer boom")}
	_, err = replayPartition(context.Background(), cfg, dependencies{
		offsets: offsets,
		source:  &stubSource{streams: map[int32]partitionStream{0: failing}},
	}, 0, 1, loggerForTests())
	if err == nil {
		t.Fatal("expected consumer error")
	}

	_, err = replayPartition(context.Background(), cfg, dependencies{
		offsets: offsets,
		source: &stubSource{streams: map[int32]partitionStream{
			0: closedStream(&sarama.ConsumerMessage{Offset: 0, Value: deadLetterValue(t, "outbox-1", "order-1", domain.EventOrderPlaced)}),
		}},
		sink: &stubSink{err: errors.New("send failed")},
	}, 0, 1, loggerForTests())
	if err == nil || !strings.Contains(err.Error(), "outbox-1") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestReplayPartition_IdleAndCancel(t *testing.T) {
	offsets := &stubOffsets{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, idleTimeout: 10 * time.Millisecond}

	idle := &stubStream{messages: make(chan *sarama.ConsumerMessage), errors: make(chan *sarama.ConsumerError)}
	got, err := replayPartition(context.Background(), cfg, dependencies{
		offsets: offsets,
		source:  &stubSource{streams: map[int32]partitionStream{0: idle}},
	}, 0, 1, loggerForTests())
	if err != nil || got.processed != 0 {
		t.Fatalf("unexpected idle result: %+v, %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg.idleTimeout = time.Minute
	blocked := &stubStream{messages: make(chan *sarama.ConsumerMessage), errors: make(chan *sarama.ConsumerError)}
	_, err = replayPartition(ctx, cfg, dependencies{
		offsets: offsets,
		source:  &stubSource{streams: map[int32]partitionStream{0: blocked}},
	}, 0, 1, loggerForTests())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestReplayTopic(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 1, idleTimeout: 20 * time.Millisecond}

	if _, err := replayTopic(context.Background(), cfg, dependencies{}, loggerForTests()); err == nil {
		t.Fatal("expected missing dependencies error")
	}

	offsets := &stubOffsets{
		partitions: []int32{2, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 2},
			2: {oldest: 0, newest: 2},
		},
	}
	source := &stubSource{streams: map[int32]partitionStream{
		0: closedStream(&sarama.ConsumerMessage{Partition: 0, Offset: 0, Value: deadLetterValue(t, "outbox-1", "order-1", domain.EventOrderPlaced)}),
		2: closedStream(&sarama.ConsumerMessage{Partition: 2, Offset: 0, Value: deadLetterValue(t, "outbox-2", "order-2", domain.EventOrderPlaced)}),
	}}
	deps := dependencies{offsets: offsets, source: source}

	got, err := replayTopic(context.Background(), cfg, deps, loggerForTests())
	if err != nil {
		t.Fatalf("replayTopic failed: %v", err)
	}
	if got.processed != 1 || len(source.calls) != 1 || source.calls[0].partition != 0 {
		t.Fatalf("limit must stop after the first sorted partition: %+v, calls %+v", got, source.calls)
	}

	executeCfg := cfg
	executeCfg.execute = true
	if _, err := replayTopic(context.Background(), executeCfg, deps, loggerForTests()); err == nil {
		t.Fatal("expected execute mode to require a producer")
	}

	if _, err := replayTopic(context.Background(), cfg, dependencies{offsets: &stubOffsets{}, source: source}, loggerForTests()); err != nil {
		t.Fatalf("expected nil error for empty topic, got %v", err)
	}
}

func TestRun_ClosesDependencies(t *testing.T) {
	previous := newDependencies
	t.Cleanup(func() { newDependencies = previous })

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 5, execute: true, idleTimeout: 20 * time.Millisecond}

	newDependencies = func(config, *log.Entry) (dependencies, error) {
		return dependencies{}, errors.New("deps failed")
	}
	if err := run(context.Background(), cfg, loggerForTests()); err == nil || !strings.Contains(err.Error(), "deps failed") {
		t.Fatalf("expected deps error, got %v", err)
	}

	offsets := &stubOffsets{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	source := &stubSource{streams: map[int32]partitionStream{
		0: closedStream(&sarama.ConsumerMessage{Offset: 0, Value: deadLetterValue(t, "outbox-1", "order-1", domain.EventOrderPlaced)}),
	}}
	sink := &stubSink{}
	newDependencies = func(config, *log.Entry) (dependencies, error) {
		return dependencies{offsets: offsets, source: source, sink: sink}, nil
	}

	if err := run(context.Background(), cfg, loggerForTests()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected one replayed event, got %d", len(sink.sent))
	}
	if !offsets.closed || !source.closed || !sink.closed {
		t.Fatalf("dependencies must be closed: offsets=%v source=%v sink=%v", offsets.closed, source.closed, sink.closed)
	}
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsets struct {
	partitions []int32
	offsets    map[int32]offsetRange
	offsetErr  error
	closed     bool
}

func (s *stubOffsets) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if s.offsetErr != nil {
		return 0, s.offsetErr
	}
	r := s.offsets[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubOffsets) Partitions(string) ([]int32, error) {
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubOffsets) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubSource struct {
	streams    map[int32]partitionStream
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubSource) ConsumePartition(_ string, partition int32, offset int64) (partitionStream, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	stream, ok := s.streams[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return stream, nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

type stubStream struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (s *stubStream) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubStream) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubStream) Close() error                             { return nil }

// closedStream отдаёт сообщения из буфера, пустой канал ошибок никогда не срабатывает.
func closedStream(messages ...*sarama.ConsumerMessage) *stubStream {
	msgCh := make(chan *sarama.ConsumerMessage, len(messages))
	for _, msg := range messages {
		msgCh <- msg
	}
	close(msgCh)
	return &stubStream{messages: msgCh, errors: make(chan *sarama.ConsumerError)}
}

type published struct {
	topic    string
	key      string
	envelope kafka.Envelope
	headers  map[string]string
}

type stubSink struct {
	err    error
	sent   []published
	closed bool
}

func (s *stubSink) PublishEvent(topic, key string, event any, headers map[string]string) error {
	if s.err != nil {
		return s.err
	}
	envelope, _ := event.(kafka.Envelope)
	s.sent = append(s.sent, published{topic: topic, key: key, envelope: envelope, headers: headers})
	return nil
}

func (s *stubSink) Close() error {
	s.closed = true
	return nil
}
