package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := newCounter()
	c.inc("1")
	c.inc("0")
	c.inc("1")
	require.Equal(t, "0=1 1=2 ", c.String())
}

func TestFirstEnv(t *testing.T) {
	t.Setenv("EVENT_HUB_CONNECTION_STRING", "")
	t.Setenv("KAFKA_BROKER", "localhost:9092")
	require.Equal(t, "localhost:9092", firstEnv("EVENT_HUB_CONNECTION_STRING", "KAFKA_BROKER"))
}
