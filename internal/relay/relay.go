package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeonjoon13/Flight-State-Relay/internal/dispatch"
	"github.com/yeonjoon13/Flight-State-Relay/internal/logging"
	"github.com/yeonjoon13/Flight-State-Relay/internal/metrics"
	"github.com/yeonjoon13/Flight-State-Relay/internal/opensky"
)

const DefaultInterval = 30 * time.Second

// Fetcher returns the current state vectors from upstream.
type Fetcher interface {
	FetchStates(ctx context.Context) (opensky.Batch, error)
}

// CycleReport describes one poll-and-dispatch cycle.
type CycleReport struct {
	ID           string        `json:"cycle_id"`
	Started      time.Time     `json:"started"`
	Duration     time.Duration `json:"duration_ns"`
	Fetched      int           `json:"fetched"`
	Skipped      int           `json:"skipped"`
	Sent         int           `json:"sent"`
	Failed       int           `json:"failed"`
	CursorBefore int           `json:"cursor_before"`
	CursorAfter  int           `json:"cursor_after"`
	Error        string        `json:"error,omitempty"`

	Err error `json:"-"`
}

// Relay owns the partition cursor and runs cycles against a fetcher and a
// dispatcher.
type Relay struct {
	fetcher    Fetcher
	dispatcher *dispatch.Dispatcher
	cursor     dispatch.Cursor

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
	onCycle func(CycleReport)
	now     func() time.Time
}

type Option func(*Relay)

func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithReporter is called after every cycle, including failed ones.
func WithReporter(fn func(CycleReport)) Option {
	return func(r *Relay) { r.onCycle = fn }
}

func New(fetcher Fetcher, dispatcher *dispatch.Dispatcher, opts ...Option) (*Relay, error) {
	if fetcher == nil || dispatcher == nil {
		return nil, errors.New("relay: fetcher and dispatcher are required")
	}
	r := &Relay{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		logger:     logging.Discard(),
		tracer:     otel.Tracer("github.com/yeonjoon13/Flight-State-Relay/internal/relay"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Cursor returns the partition the next dispatch starts from.
func (r *Relay) Cursor() int { return r.cursor.Value() }

// RunOnce fetches and dispatches one batch. It never panics and never
// returns an error; failures are logged and carried in the report. A failed
// or empty fetch leaves the cursor untouched.
func (r *Relay) RunOnce(ctx context.Context) (rep CycleReport) {
	rep = CycleReport{ID: uuid.NewString(), Started: r.now(), CursorBefore: r.cursor.Value()}
	log := r.logger.With("cycle_id", rep.ID)
	ctx, span := r.tracer.Start(ctx, "relay.cycle", trace.WithAttributes(attribute.String("cycle.id", rep.ID)))

	defer func() {
		if p := recover(); p != nil {
			rep.Err = fmt.Errorf("relay: cycle panicked: %v", p)
			log.Error("cycle aborted", logging.Err(rep.Err))
		}
		rep.CursorAfter = r.cursor.Value()
		rep.Duration = r.now().Sub(rep.Started)
		if rep.Err != nil {
			rep.Error = rep.Err.Error()
			span.RecordError(rep.Err)
			span.SetStatus(codes.Error, rep.Error)
		}
		span.SetAttributes(
			attribute.Int("states.fetched", rep.Fetched),
			attribute.Int("states.sent", rep.Sent),
			attribute.Int("states.failed", rep.Failed),
			attribute.Int("cursor.after", rep.CursorAfter),
		)
		span.End()

		r.metrics.ObserveCycle(rep.Duration)
		r.metrics.SetCursor(rep.CursorAfter)
		if r.onCycle != nil {
			r.onCycle(rep)
		}
	}()

	log.Info("polling OpenSky")
	batch, err := r.fetcher.FetchStates(ctx)
	r.metrics.ObserveFetch(len(batch.States), err)
	if err != nil {
		rep.Err = fmt.Errorf("relay: fetch states: %w", err)
		log.Error("fetch failed", logging.Err(err))
		return rep
	}
	rep.Fetched, rep.Skipped = len(batch.States), batch.Skipped
	if batch.Skipped > 0 {
		log.Warn("skipped malformed state rows", "count", batch.Skipped)
	}
	if len(batch.States) == 0 {
		log.Info("no flight states available")
		return rep
	}
	log.Info("retrieved flight states", "count", rep.Fetched)

	err = r.cursor.Update(func(cur int) (int, error) {
		rep.CursorBefore = cur
		res, err := r.dispatcher.Dispatch(ctx, batch.States, cur)
		rep.Sent, rep.Failed = res.Sent, res.Failed
		return res.Cursor, err
	})
	if err != nil {
		rep.Err = err
		log.Error("dispatch failed", logging.Err(err))
		return rep
	}
	log.Info("dispatched flight states", "sent", rep.Sent, "failed", rep.Failed, "cursor_before", rep.CursorBefore)
	return rep
}

// Run executes a cycle immediately and then every interval until ctx is
// done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("starting relay", "interval", interval.String(), "partitions", r.dispatcher.Partitions())
	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down relay", "cursor", r.cursor.Value())
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}
