package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/yeonjoon13/Flight-State-Relay/internal/kafka"
	"github.com/yeonjoon13/Flight-State-Relay/internal/logging"
	"github.com/yeonjoon13/Flight-State-Relay/internal/model"
)

// consumer tails every partition of the relay topic and periodically logs
// how many messages each partition received, to eyeball the rotation.
func main() {
	conn := flag.String("conn", firstEnv("EVENT_HUB_CONNECTION_STRING", "KAFKA_BROKER"), "Event Hubs connection string or Kafka broker list")
	topic := flag.String("topic", firstEnv("EVENT_HUB_NAME", "KAFKA_TOPIC"), "topic to tail")
	every := flag.Duration("report", 30*time.Second, "how often to log per-partition counts")
	flag.Parse()

	log := logging.FromEnv()

	endpoint, err := kafka.ParseConnectionString(*conn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "consumer:", err)
		os.Exit(1)
	}
	if *topic == "" {
		*topic = endpoint.Topic
	}
	if *topic == "" {
		*topic = "flight_states"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ids, err := kafka.Partitions(ctx, endpoint, *topic)
	if err != nil {
		fmt.Fprintln(os.Stderr, "consumer:", err)
		os.Exit(1)
	}
	log.Info("tailing topic", "topic", *topic, "partitions", len(ids))

	counts := newCounter()
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(partition int) {
			defer wg.Done()
			readPartition(ctx, endpoint, *topic, partition, counts)
		}(id)
	}

	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info("shutting down", "counts", counts.String())
			return
		case <-ticker.C:
			log.Info("partition counts", "counts", counts.String())
		}
	}
}

func readPartition(ctx context.Context, endpoint kafka.Endpoint, topic string, partition int, counts *counter) {
	log := logging.FromEnv().With("partition", partition)
	r := kafka.NewPartitionReader(endpoint, topic, partition)
	defer r.Close()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("read error", logging.Err(err))
			time.Sleep(1 * time.Second)
			continue
		}

		var s model.StateVector
		if err := json.Unmarshal(m.Value, &s); err != nil {
			log.Warn("unmarshal error", logging.Err(err))
			continue
		}
		counts.inc(kafka.PartitionOf(m))
		log.Debug("received state", "icao24", s.ID(), "offset", m.Offset)
	}
}

type counter struct {
	mu sync.Mutex
	n  map[string]int
}

func newCounter() *counter { return &counter{n: make(map[string]int)} }

func (c *counter) inc(partition string) {
	c.mu.Lock()
	c.n[partition]++
	c.mu.Unlock()
}

func (c *counter) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.n))
	for k := range c.n {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf("%s=%d ", k, c.n[k])
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
