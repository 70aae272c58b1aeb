package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yeonjoon13/Flight-State-Relay/internal/flights"
	"github.com/yeonjoon13/Flight-State-Relay/internal/logging"
	"github.com/yeonjoon13/Flight-State-Relay/internal/metrics"
	"github.com/yeonjoon13/Flight-State-Relay/internal/model"
)

// DefaultPartitions is the partition count of the target event hub.
const DefaultPartitions = 8

// Result summarizes one Dispatch call.
type Result struct {
	// Cursor is the partition the next dispatch should start from.
	Cursor   int
	Sent     int
	Failed   int
	Failures []RecordError
}

// Dispatcher sends state vectors one message at a time, rotating through
// partitions in fixed order.
type Dispatcher struct {
	transport  Transport
	partitions int
	logger     *slog.Logger
	metrics    *metrics.Collector
	tracker    *flights.Cache
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracker records every delivered state in c.
func WithTracker(c *flights.Cache) Option {
	return func(d *Dispatcher) { d.tracker = c }
}

func New(transport Transport, partitions int, opts ...Option) (*Dispatcher, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if partitions <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPartitionCount, partitions)
	}
	d := &Dispatcher{
		transport:  transport,
		partitions: partitions,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) Partitions() int { return d.partitions }

// Dispatch sends states in order starting at partition start, advancing the
// cursor once per record whether or not the record was delivered. A single
// record failing never stops the loop. The only error returned is a bad
// start cursor or a transport that cannot be opened; in both cases nothing
// is sent and Result.Cursor equals start.
func (d *Dispatcher) Dispatch(ctx context.Context, states []model.StateVector, start int) (Result, error) {
	res := Result{Cursor: start}
	if start < 0 || start >= d.partitions {
		return res, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidCursor, start, d.partitions)
	}
	if len(states) == 0 {
		return res, nil
	}

	sender, err := d.transport.Open(ctx)
	if err != nil {
		return res, fmt.Errorf("dispatch: open transport: %w", err)
	}
	defer func() {
		if cerr := sender.Close(); cerr != nil {
			d.logger.Error("close transport", logging.Err(cerr))
		}
	}()

	cursor := start
	for i, s := range states {
		partition := strconv.Itoa(cursor)
		if err := d.send(ctx, sender, s, partition); err != nil {
			res.Failed++
			res.Failures = append(res.Failures, RecordError{Index: i, ICAO24: s.ID(), Partition: partition, Err: err})
			d.logger.Error("send state", "icao24", s.ID(), "partition", partition, logging.Err(err))
		} else {
			res.Sent++
			d.tracker.Update(s, partition)
			d.logger.Debug("sent state", "icao24", s.ID(), "partition", partition)
		}
		d.metrics.ObserveSend(partition, err)
		cursor = (cursor + 1) % d.partitions
	}

	res.Cursor = cursor
	return res, nil
}

func (d *Dispatcher) send(ctx context.Context, sender Sender, s model.StateVector, partition string) error {
	body, err := s.Encode()
	if err != nil {
		return err
	}
	return sender.Send(ctx, partition, s.ID(), body)
}
