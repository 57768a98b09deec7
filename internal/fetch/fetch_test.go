package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tederis/ase2json/internal/ase"
)

func TestHTTPFetch(t *testing.T) {
	reply := []byte{0, 1, 127, 0, 0, 1, 0x55, 0xf3}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ase2json-test", r.UserAgent())
		_, _ = w.Write(reply)
	}))
	defer srv.Close()

	src := NewHTTP(srv.URL, Options{UserAgent: "ase2json-test", Timeout: time.Second})
	buf, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reply, buf.Bytes())
	assert.Equal(t, 0, buf.Tell())
	assert.Equal(t, srv.URL, src.String())
}

func TestHTTPFetchRejectsOversizedReply(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	src := NewHTTP(srv.URL, Options{Capacity: 16, Retries: 3, RetryDelay: time.Millisecond})
	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, ase.ErrCapacityExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetchRejectsOversizedChunkedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for i := 0; i < 4; i++ {
			_, _ = w.Write(make([]byte, 10))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, Options{Capacity: 25}).Fetch(context.Background())
	assert.ErrorIs(t, err, ase.ErrCapacityExceeded)
}

func TestHTTPFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte{0, 0, 0, 99})
	}))
	defer srv.Close()

	buf, err := NewHTTP(srv.URL, Options{Retries: 2, RetryDelay: time.Millisecond}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, buf.Len())
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetchClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, Options{Retries: 5, RetryDelay: time.Millisecond}).Fetch(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTP(srv.URL, Options{Retries: 3, RetryDelay: time.Hour}).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.bin")
	require.NoError(t, os.WriteFile(path, []byte{0, 0, 0, 2}, 0o600))

	buf, err := NewFile(path, 0).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 2}, buf.Bytes())

	_, err = NewFile(path, 3).Fetch(context.Background())
	assert.ErrorIs(t, err, ase.ErrCapacityExceeded)

	_, err = NewFile(filepath.Join(t.TempDir(), "missing"), 0).Fetch(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileFetchStdin(t *testing.T) {
	src := NewFile("-", 0)
	src.stdin = bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7})

	buf, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, buf.Len())
}
