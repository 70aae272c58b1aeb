package kafka

import "errors"

var (
	ErrEmptyConnectionString     = errors.New("kafka: empty connection string")
	ErrMalformedConnectionString = errors.New("kafka: malformed connection string")
	ErrNoTopic                   = errors.New("kafka: no topic configured")
	ErrInvalidPartition          = errors.New("kafka: invalid partition id")
)
