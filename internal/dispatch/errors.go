package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPartitionCount = errors.New("dispatch: partition count must be positive")
	ErrInvalidCursor         = errors.New("dispatch: cursor out of range")
	ErrNilTransport          = errors.New("dispatch: nil transport")
)

// RecordError is the outcome of one record that could not be delivered.
// The record's rotation slot is still consumed.
type RecordError struct {
	Index     int
	ICAO24    string
	Partition string
	Err       error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d (%s) to partition %s: %v", e.Index, e.ICAO24, e.Partition, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }
