package dispatch

import "context"

// Sender transmits single messages to explicit partitions for the lifetime
// of one dispatch.
type Sender interface {
	Send(ctx context.Context, partitionID, key string, value []byte) error
	Close() error
}

// Transport acquires a Sender.
type Transport interface {
	Open(ctx context.Context) (Sender, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context) (Sender, error)

func (f TransportFunc) Open(ctx context.Context) (Sender, error) { return f(ctx) }
