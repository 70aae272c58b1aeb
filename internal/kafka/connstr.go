package kafka

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Event Hubs exposes its Kafka endpoint on 9093 and authenticates with SASL
// PLAIN, using this fixed username and the full connection string as password.
const (
	eventHubsKafkaPort = "9093"
	eventHubsUsername  = "$ConnectionString"
)

// Endpoint is a resolved stream address.
type Endpoint struct {
	Brokers []string
	// Topic comes from an Event Hubs EntityPath; empty for plain broker lists.
	Topic string
	TLS   *tls.Config
	SASL  sasl.Mechanism
}

// ParseConnectionString accepts either an Azure Event Hubs connection string
// or a comma-separated list of host:port brokers.
func ParseConnectionString(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, ErrEmptyConnectionString
	}
	if strings.Contains(s, "Endpoint=") {
		return parseEventHubs(s)
	}
	return parseBrokerList(s)
}

func parseEventHubs(s string) (Endpoint, error) {
	parts := map[string]string{}
	for _, kv := range strings.Split(s, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return Endpoint{}, fmt.Errorf("%w: segment %q", ErrMalformedConnectionString, kv)
		}
		parts[strings.ToLower(k)] = v
	}

	u, err := url.Parse(parts["endpoint"])
	if err != nil || u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("%w: endpoint %q", ErrMalformedConnectionString, parts["endpoint"])
	}
	if parts["sharedaccesskeyname"] == "" || parts["sharedaccesskey"] == "" {
		return Endpoint{}, fmt.Errorf("%w: missing shared access key", ErrMalformedConnectionString)
	}

	return Endpoint{
		Brokers: []string{net.JoinHostPort(u.Hostname(), eventHubsKafkaPort)},
		Topic:   parts["entitypath"],
		TLS:     &tls.Config{MinVersion: tls.VersionTLS12},
		SASL:    plain.Mechanism{Username: eventHubsUsername, Password: s},
	}, nil
}

func parseBrokerList(s string) (Endpoint, error) {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(b); err != nil {
			return Endpoint{}, fmt.Errorf("%w: broker %q: %v", ErrMalformedConnectionString, b, err)
		}
		brokers = append(brokers, b)
	}
	if len(brokers) == 0 {
		return Endpoint{}, ErrEmptyConnectionString
	}
	return Endpoint{Brokers: brokers}, nil
}

// Dialer returns a kafka-go dialer carrying the endpoint's TLS and SASL
// settings, for admin and reader connections.
func (e Endpoint) Dialer() *kafka.Dialer {
	return &kafka.Dialer{
		DualStack:     true,
		TLS:           e.TLS,
		SASLMechanism: e.SASL,
	}
}
