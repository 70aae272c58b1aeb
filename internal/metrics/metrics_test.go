package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveFetch(3, nil)
	c.ObserveFetch(0, nil)
	c.ObserveFetch(0, errors.New("timeout"))
	c.ObserveSend("6", nil)
	c.ObserveSend("6", nil)
	c.ObserveSend("7", errors.New("broker down"))
	c.SetCursor(1)
	c.ObserveCycle(250 * time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(c.Fetches.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Fetches.WithLabelValues("empty")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Fetches.WithLabelValues("error")))
	require.Equal(t, 3.0, testutil.ToFloat64(c.StatesFetched))
	require.Equal(t, 2.0, testutil.ToFloat64(c.Sent.WithLabelValues("6")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.SendFailures.WithLabelValues("7")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Cursor))
	require.Equal(t, 1, testutil.CollectAndCount(c.CycleDuration))
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.ObserveFetch(1, nil)
		c.ObserveSend("0", nil)
		c.SetCursor(4)
		c.ObserveCycle(time.Second)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)
	c.SetCursor(5)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "relay_partition_cursor 5")
}
