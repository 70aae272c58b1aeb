package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeonjoon13/Flight-State-Relay/internal/config"
	"github.com/yeonjoon13/Flight-State-Relay/internal/dispatch"
	"github.com/yeonjoon13/Flight-State-Relay/internal/feed"
	"github.com/yeonjoon13/Flight-State-Relay/internal/flights"
	"github.com/yeonjoon13/Flight-State-Relay/internal/kafka"
	"github.com/yeonjoon13/Flight-State-Relay/internal/logging"
	"github.com/yeonjoon13/Flight-State-Relay/internal/metrics"
	"github.com/yeonjoon13/Flight-State-Relay/internal/opensky"
	"github.com/yeonjoon13/Flight-State-Relay/internal/relay"
	"github.com/yeonjoon13/Flight-State-Relay/internal/tracing"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "ingestor:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args, os.Getenv)
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Setup(tracing.ConfigFromEnv(os.Getenv), nil)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = shutdownTracing(sctx)
	}()

	endpoint, err := kafka.ParseConnectionString(cfg.ConnectionString)
	if err != nil {
		return err
	}
	stream, err := kafka.NewStream(endpoint, cfg.Topic)
	if err != nil {
		return err
	}
	prepareTopic(ctx, log, cfg, stream)

	collector, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	cache := flights.NewCache(flights.DefaultMaxAge)
	hub := feed.NewHub(log)

	dispatcher, err := dispatch.New(
		dispatch.TransportFunc(func(ctx context.Context) (dispatch.Sender, error) {
			w, err := stream.Open(ctx)
			if err != nil {
				return nil, err
			}
			return w, nil
		}),
		cfg.Partitions,
		dispatch.WithLogger(log),
		dispatch.WithMetrics(collector),
		dispatch.WithTracker(cache),
	)
	if err != nil {
		return err
	}

	client := opensky.NewClient(opensky.Config{
		BaseURL:  cfg.OpenSky.URL,
		Username: cfg.OpenSky.Username,
		Password: cfg.OpenSky.Password,
		Box:      cfg.OpenSky.Box,
		Timeout:  cfg.OpenSky.Timeout,
	})
	if client.Anonymous() {
		log.Info("no OpenSky credentials, polling anonymously")
	}

	r, err := relay.New(client, dispatcher,
		relay.WithLogger(log),
		relay.WithMetrics(collector),
		relay.WithReporter(func(rep relay.CycleReport) { hub.Publish(rep) }),
	)
	if err != nil {
		return err
	}

	go hub.Run(ctx)
	go cache.RunCleanup(ctx, flights.DefaultCleanupInterval, func(removed, size int) {
		log.Info("pruned stale flights", "count", removed, "size", size)
	})

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           newMux(collector, cache, hub),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("http server starting", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server stopped", logging.Err(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	log.Info("starting ingestor", "topic", stream.Topic(), "brokers", endpoint.Brokers, "partitions", cfg.Partitions)
	r.Run(ctx, cfg.Interval)
	return nil
}

func newMux(collector *metrics.Collector, cache *flights.Cache, hub *feed.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/flights", cache)
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// prepareTopic optionally creates the topic and warns when its partition
// count differs from the configured rotation size. Neither step is fatal.
func prepareTopic(ctx context.Context, log *slog.Logger, cfg config.Config, stream *kafka.Stream) {
	actx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.CreateTopic {
		err := kafka.CreateTopics(actx, stream.Endpoint(), []kafka.TopicConfig{{
			Topic:             stream.Topic(),
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: 1,
		}})
		if err != nil {
			log.Warn("create topic", "topic", stream.Topic(), logging.Err(err))
		}
	}

	ids, err := kafka.Partitions(actx, stream.Endpoint(), stream.Topic())
	if err != nil {
		log.Warn("read topic partitions", "topic", stream.Topic(), logging.Err(err))
		return
	}
	if len(ids) != cfg.Partitions {
		log.Warn("topic partition count differs from configuration",
			"topic", stream.Topic(), "actual", len(ids), "configured", cfg.Partitions)
	}
}
