package kafka

import (
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewPartitionReader returns a reader pinned to one partition, starting at
// the newest offset.
func NewPartitionReader(endpoint Endpoint, topic string, partition int) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     endpoint.Brokers,
		Topic:       topic,
		Partition:   partition,
		Dialer:      endpoint.Dialer(),
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
		MaxWait:     1 * time.Second,
	})
}

// PartitionOf returns the partition id a message was routed by, falling back
// to the partition it was read from.
func PartitionOf(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == PartitionHeader {
			return string(h.Value)
		}
	}
	return strconv.Itoa(m.Partition)
}
