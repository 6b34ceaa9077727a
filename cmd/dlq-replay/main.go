// Команда dlq-replay возвращает события заказов из DLQ обратно в основной topic.
// По умолчанию работает в режиме dry-run и только печатает кандидатов.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

const (
	envBrokers         = "SHOP_KAFKA_BROKERS"
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

var errSkipMessage = errors.New("not an outbox dead letter")

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	eventType   string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// deadLetter повторяет формат, который outbox worker кладёт в payload DLQ-сообщения.
type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

type replay struct {
	key      string
	envelope kafka.Envelope
	reason   string
}

func (r replay) headers() map[string]string {
	return map[string]string{
		kafka.HeaderEventType:     r.envelope.EventType,
		kafka.HeaderAggregateType: r.envelope.AggregateType,
		kafka.HeaderOutboxID:      r.envelope.ID,
	}
}

type offsetReader interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error)
	Close() error
}

// eventSink реализуется *kafka.Producer.
type eventSink interface {
	PublishEvent(topic, key string, event any, headers map[string]string) error
	Close() error
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error) {
	pc, err := s.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (s saramaSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

type dependencies struct {
	offsets offsetReader
	source  partitionSource
	sink    eventSink
}

func (d dependencies) close() {
	if d.sink != nil {
		_ = d.sink.Close()
	}
	if d.source != nil {
		_ = d.source.Close()
	}
	if d.offsets != nil {
		_ = d.offsets.Close()
	}
}

var newDependencies = func(cfg config, logger *log.Entry) (dependencies, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.ClientID = "shop-dlq-replay"
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return dependencies{}, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return dependencies{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := dependencies{offsets: client, source: saramaSource{consumer: consumer}}
	if !cfg.execute {
		return deps, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers, "shop-dlq-replay", logger.WithField("component", "kafka-producer"))
	if err != nil {
		deps.close()
		return dependencies{}, err
	}
	deps.sink = producer
	return deps, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := parseConfig(os.Args[1:], os.Stderr, os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.WithField("component", "dlq-replay")); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func parseConfig(args []string, output io.Writer, getenv func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-replay", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to read")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicOrderEvents, "topic to replay into")
	fs.StringVar(&cfg.eventType, "event-type", "", "replay only events of this type")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "publish replayed events; default is dry-run")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the latest messages of each partition")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv(envBrokers)
	}
	cfg.brokers = parseBrokers(brokersRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envBrokers)
	case cfg.sourceTopic == "":
		return config{}, fmt.Errorf("source-topic is required")
	case cfg.targetTopic == "":
		return config{}, fmt.Errorf("target-topic is required")
	case cfg.sourceTopic == cfg.targetTopic:
		return config{}, fmt.Errorf("source-topic and target-topic must differ")
	case cfg.limit <= 0:
		return config{}, fmt.Errorf("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, fmt.Errorf("idle-timeout must be > 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config, logger *log.Entry) error {
	logger.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"event_type":   cfg.eventType,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
	}).Info("starting dlq replay")

	deps, err := newDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	totals, err := replayTopic(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	logger.WithFields(log.Fields{
		"mode":      mode,
		"processed": totals.processed,
		"replayed":  totals.replayed,
		"skipped":   totals.skipped,
	}).Info("dlq replay finished")
	return nil
}

type stats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *stats) add(other stats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func replayTopic(ctx context.Context, cfg config, deps dependencies, logger *log.Entry) (stats, error) {
	var totals stats
	if deps.offsets == nil || deps.source == nil {
		return totals, fmt.Errorf("kafka client and consumer are required")
	}
	if cfg.execute && deps.sink == nil {
		return totals, fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := deps.offsets.Partitions(cfg.sourceTopic)
	if err != nil {
		return totals, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		logger.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return totals, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		remaining := cfg.limit - totals.processed
		if remaining <= 0 {
			break
		}
		partStats, err := replayPartition(ctx, cfg, deps, partition, remaining, logger)
		totals.add(partStats)
		if err != nil {
			return totals, err
		}
	}
	return totals, nil
}

func replayPartition(ctx context.Context, cfg config, deps dependencies, partition int32, limit int, logger *log.Entry) (stats, error) {
	var result stats

	oldest, err := deps.offsets.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return result, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := deps.offsets.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return result, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return result, nil
	}

	start := oldest
	if cfg.fromNewest {
		start = max(newest-int64(limit), oldest)
	}

	stream, err := deps.source.ConsumePartition(cfg.sourceTopic, partition, start)
	if err != nil {
		return result, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = stream.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for result.processed < limit {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-idle.C:
			return result, nil
		case consumerErr := <-stream.Errors():
			if consumerErr != nil {
				return result, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-stream.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return result, nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(cfg.idleTimeout)

			result.processed++
			entry := logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

			candidate, err := decodeDeadLetter(msg.Value, time.Now().UTC())
			if err != nil {
				result.skipped++
				entry.WithError(err).Warn("skip dlq message")
			} else if cfg.eventType != "" && candidate.envelope.EventType != cfg.eventType {
				result.skipped++
			} else if cfg.execute {
				if err := deps.sink.PublishEvent(cfg.targetTopic, candidate.key, candidate.envelope, candidate.headers()); err != nil {
					return result, fmt.Errorf("replay outbox event %s: %w", candidate.envelope.ID, err)
				}
				result.replayed++
			} else {
				entry.WithFields(log.Fields{
					"outbox_id":     candidate.envelope.ID,
					"event_type":    candidate.envelope.EventType,
					"key":           candidate.key,
					"publish_error": candidate.reason,
				}).Info("dlq replay candidate")
				result.replayed++
			}

			if msg.Offset+1 >= newest {
				return result, nil
			}
		}
	}
	return result, nil
}

// decodeDeadLetter восстанавливает исходный конверт события из DLQ-сообщения.
func decodeDeadLetter(value []byte, now time.Time) (replay, error) {
	var outer kafka.Envelope
	if err := json.Unmarshal(value, &outer); err != nil || len(outer.Payload) == 0 {
		return replay{}, errSkipMessage
	}

	var letter deadLetter
	if err := json.Unmarshal(outer.Payload, &letter); err != nil {
		return replay{}, fmt.Errorf("decode dlq payload: %w", err)
	}
	if len(letter.Payload) == 0 {
		return replay{}, fmt.Errorf("dlq payload of %s has no original event", outer.ID)
	}

	envelope := kafka.Envelope{
		ID:            firstNonEmpty(letter.OutboxID, outer.ID),
		AggregateType: firstNonEmpty(letter.AggregateType, outer.AggregateType),
		AggregateID:   firstNonEmpty(letter.AggregateID, outer.AggregateID),
		EventType:     firstNonEmpty(letter.EventType, outer.EventType),
		Payload:       letter.Payload,
		OccurredAt:    outer.OccurredAt,
		PublishedAt:   now,
	}
	return replay{
		key:      firstNonEmpty(envelope.AggregateID, envelope.ID),
		envelope: envelope,
		reason:   letter.PublishError,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
