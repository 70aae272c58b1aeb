package opensky

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const statesBody = `{"time":1700000005,"states":[
 ["4b1815","SWR736  ","Switzerland",1700000000,1700000001,8.5492,47.4520,1120.14,false,98.42,272.1,-4.23,null,1158.24,"1000",false,0],
 ["3c6444","DLH9LF  ","Germany",null,1700000002,null,null,null,true,0,null,null,null,null,null,false,0,1],
 ["broken"]
]}`

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL})
}

func TestFetchStates(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/states/all", r.URL.Path)
		_, _, ok := r.BasicAuth()
		require.False(t, ok)
		_, _ = w.Write([]byte(statesBody))
	})
	require.True(t, c.Anonymous())

	batch, err := c.FetchStates(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1700000005), batch.Time)
	require.Len(t, batch.States, 2)
	require.Equal(t, 1, batch.Skipped)
	require.Equal(t, "4b1815", batch.States[0].ID())
	require.Nil(t, batch.States[1].Latitude)
}

func TestFetchStates_NullStates(t *testing.T) {
	for _, body := range []string{`{"time":1,"states":null}`, `{"time":1,"states":[]}`} {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		batch, err := c.FetchStates(context.Background())
		require.NoError(t, err)
		require.Empty(t, batch.States)
	}
}

func TestFetchStates_BasicAuthAndBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "pilot", user)
		require.Equal(t, "secret", pass)
		require.Equal(t, "24.5", r.URL.Query().Get("lamin"))
		require.Equal(t, "-125", r.URL.Query().Get("lomin"))
		require.Equal(t, "49.5", r.URL.Query().Get("lamax"))
		require.Equal(t, "-66.5", r.URL.Query().Get("lomax"))
		_, _ = w.Write([]byte(`{"time":1,"states":null}`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:  srv.URL,
		Username: "pilot",
		Password: "secret",
		Box:      &BoundingBox{MinLat: 24.5, MaxLat: 49.5, MinLon: -125, MaxLon: -66.5},
	})
	require.False(t, c.Anonymous())
	_, err := c.FetchStates(context.Background())
	require.NoError(t, err)
}

func TestFetchStates_StatusErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadGateway, ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tc.status == http.StatusTooManyRequests {
					w.Header().Set(retryAfterHeader, "12")
				}
				w.WriteHeader(tc.status)
			})
			_, err := c.FetchStates(context.Background())
			require.ErrorIs(t, err, tc.want)
			if tc.status == http.StatusTooManyRequests {
				require.Contains(t, err.Error(), "retry after 12s")
			}
		})
	}
}

func TestFetchStates_BadJSON(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})
	_, err := c.FetchStates(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestFetchStates_ContextCancelled(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(statesBody))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchStates(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchStates_RelaysNullIdentifiers(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"time":1,"states":[[null,null,null,null,null,null,null,null,null,null,null,null,null,null,null,null,null]]}`))
	})
	batch, err := c.FetchStates(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.States, 1)
	require.Zero(t, batch.Skipped)
	require.Nil(t, batch.States[0].ICAO24)
	require.Nil(t, batch.States[0].LastContact)
}
