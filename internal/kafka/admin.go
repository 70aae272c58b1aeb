package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

type TopicConfig struct {
	Topic             string
	NumPartitions     int
	ReplicationFactor int
}

// CreateTopics ensures each topic exists with given config. It talks to the
// cluster controller, so it only works against brokers that allow topic
// creation (Event Hubs does not).
func CreateTopics(ctx context.Context, endpoint Endpoint, configs []TopicConfig) error {
	dialer := endpoint.Dialer()
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	hostPort := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrlConn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return err
	}
	defer ctrlConn.Close()

	topics := make([]kafka.TopicConfig, 0, len(configs))
	for _, cfg := range configs {
		topics = append(topics, kafka.TopicConfig{
			Topic:             cfg.Topic,
			NumPartitions:     cfg.NumPartitions,
			ReplicationFactor: cfg.ReplicationFactor,
		})
	}
	return ctrlConn.CreateTopics(topics...)
}

// Partitions lists the partition ids of topic.
func Partitions(ctx context.Context, endpoint Endpoint, topic string) ([]int, error) {
	conn, err := endpoint.Dialer().DialContext(ctx, "tcp", endpoint.Brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	parts, err := conn.ReadPartitions(topic)
	if err != nil {
		return nil, fmt.Errorf("kafka: read partitions of %s: %w", topic, err)
	}
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.ID)
	}
	return ids, nil
}
