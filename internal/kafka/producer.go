package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

const (
	// PartitionHeader carries the target partition id on every message.
	PartitionHeader   = "partition-id"
	contentTypeHeader = "content-type"
	contentTypeJSON   = "application/json"
)

// messageWriter is the part of *kafka.Writer a PartitionWriter needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Stream is a connection-string addressed, partitioned event stream.
// Each Open yields a writer scoped to one dispatch.
type Stream struct {
	endpoint  Endpoint
	topic     string
	newWriter func() messageWriter
}

func NewStream(endpoint Endpoint, topic string) (*Stream, error) {
	if topic == "" {
		topic = endpoint.Topic
	}
	if topic == "" {
		return nil, ErrNoTopic
	}
	s := &Stream{endpoint: endpoint, topic: topic}
	s.newWriter = s.kafkaWriter
	return s, nil
}

func (s *Stream) Topic() string { return s.topic }

func (s *Stream) Endpoint() Endpoint { return s.endpoint }

func (s *Stream) kafkaWriter() messageWriter {
	transport := &kafka.Transport{TLS: s.endpoint.TLS, SASL: s.endpoint.SASL}
	return &writerWithTransport{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(s.endpoint.Brokers...),
			Topic:        s.topic,
			Balancer:     partitionBalancer{},
			BatchSize:    1,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		},
		transport: transport,
	}
}

// writerWithTransport releases pooled connections along with the writer.
type writerWithTransport struct {
	*kafka.Writer
	transport *kafka.Transport
}

func (w *writerWithTransport) Close() error {
	err := w.Writer.Close()
	w.transport.CloseIdleConnections()
	return err
}

// Open acquires a writer. The caller must Close it.
func (s *Stream) Open(ctx context.Context) (*PartitionWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &PartitionWriter{w: s.newWriter(), topic: s.topic}, nil
}

// PartitionWriter sends single messages to explicit partitions.
type PartitionWriter struct {
	w      messageWriter
	topic  string
	closed bool
}

// Send writes exactly one message to the partition named by partitionID.
func (p *PartitionWriter) Send(ctx context.Context, partitionID, key string, value []byte) error {
	if p.closed {
		return errors.New("kafka: send on closed writer")
	}
	if n, err := strconv.Atoi(partitionID); err != nil || n < 0 {
		return fmt.Errorf("%w: %q", ErrInvalidPartition, partitionID)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: PartitionHeader, Value: []byte(partitionID)},
			{Key: contentTypeHeader, Value: []byte(contentTypeJSON)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write to %s/%s: %w", p.topic, partitionID, err)
	}
	return nil
}

// Close releases the writer. Calling it more than once is a no-op.
func (p *PartitionWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.w.Close()
}

// partitionBalancer routes each message to the partition in its
// PartitionHeader. Partitions the broker does not know fail at write time.
type partitionBalancer struct{}

func (partitionBalancer) Balance(msg kafka.Message, partitions ...int) int {
	for _, h := range msg.Headers {
		if h.Key != PartitionHeader {
			continue
		}
		if n, err := strconv.Atoi(string(h.Value)); err == nil {
			return n
		}
	}
	if len(partitions) == 0 {
		return 0
	}
	return partitions[0]
}
