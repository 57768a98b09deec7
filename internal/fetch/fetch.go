// Package fetch acquires raw master server replies over HTTP or from files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/tederis/ase2json/internal/ase"
)

// Source produces one complete reply per call.
type Source interface {
	Fetch(ctx context.Context) (*ase.Buffer, error)
	String() string
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Options configure an HTTP source.
type Options struct {
	Client     *http.Client
	UserAgent  string
	Timeout    time.Duration
	RetryDelay time.Duration
	Capacity   int
	Retries    int
}

// HTTP downloads the reply with a GET request.
type HTTP struct {
	client     *http.Client
	url        string
	userAgent  string
	timeout    time.Duration
	retryDelay time.Duration
	capacity   int
	retries    int
}

// NewHTTP returns a source for url.
func NewHTTP(url string, opts Options) *HTTP {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	return &HTTP{
		client:     client,
		url:        url,
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		capacity:   opts.Capacity,
		retries:    opts.Retries,
	}
}

func (h *HTTP) String() string { return h.url }

// Fetch downloads the reply. Transport errors and 5xx responses are retried;
// an oversized reply is never retried.
func (h *HTTP) Fetch(ctx context.Context) (*ase.Buffer, error) {
	var lastErr error

	for attempt := 0; attempt <= h.retries; attempt++ {
		if attempt > 0 {
			log.Debug().
				Err(lastErr).
				Str("url", h.url).
				Int("attempt", attempt).
				Msg("Retrying master server fetch")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.retryDelay):
			}
		}

		buf, err := h.once(ctx)
		if err == nil {
			return buf, nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", h.url, h.retries+1, lastErr)
}

func (h *HTTP) once(ctx context.Context) (*ase.Buffer, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: h.url, Code: resp.StatusCode}
	}

	buf := ase.NewBuffer(h.capacity)
	if resp.ContentLength > int64(buf.Cap()) {
		return nil, &ase.CapacityError{Capacity: buf.Cap(), Requested: int(resp.ContentLength)}
	}

	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read reply body: %w", err)
	}

	log.Debug().
		Str("url", h.url).
		Str("size", humanize.Bytes(uint64(buf.Len()))).
		Msg("Master server reply received")

	return buf, nil
}

// retryable reports whether a failed attempt may succeed when repeated.
func retryable(err error) bool {
	if errors.Is(err, ase.ErrCapacityExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}

	return true
}

// File reads the reply from a file, or from stdin when the path is "-".
type File struct {
	stdin    io.Reader
	path     string
	capacity int
}

// NewFile returns a source for path.
func NewFile(path string, capacity int) *File {
	return &File{path: path, capacity: capacity, stdin: os.Stdin}
}

func (f *File) String() string { return f.path }

// Fetch reads the whole file into a bounded buffer.
func (f *File) Fetch(_ context.Context) (*ase.Buffer, error) {
	r := f.stdin
	if f.path != "-" {
		file, err := os.Open(f.path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()
		r = file
	}

	buf := ase.NewBuffer(f.capacity)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	return buf, nil
}
