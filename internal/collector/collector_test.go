package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tederis/ase2json/internal/ase"
	"github.com/tederis/ase2json/internal/models"
	"github.com/tederis/ase2json/internal/projector"
)

type source struct {
	mu    sync.Mutex
	data  []byte
	err   error
	calls int
}

func (s *source) String() string { return "test" }

func (s *source) Fetch(context.Context) (*ase.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return ase.NewBufferFrom(s.data, 0)
}

func (s *source) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type store struct{ saved []models.Snapshot }

func (s *store) SaveSnapshot(snap models.Snapshot) (bool, error) {
	s.saved = append(s.saved, snap)
	return true, nil
}

type publisher struct{ docs []*projector.Document }

func (p *publisher) Publish(doc *projector.Document, _ time.Time) error {
	p.docs = append(p.docs, doc)
	return errors.New("offline")
}

type updater struct{ data [][]byte }

func (u *updater) Update(_ *projector.Document, data []byte, _ time.Time) error {
	u.data = append(u.data, data)
	return nil
}

func reply(t *testing.T) []byte {
	t.Helper()

	servers := []ase.Server{
		{IP: [4]byte{10, 0, 0, 1}, Port: 22003, PlayersCount: 5, ServerName: "one"},
		{IP: [4]byte{10, 0, 0, 2}, Port: 22003, PlayersCount: 7, ServerName: "two"},
	}
	data, err := ase.EncodeExtended(ase.FlagPlayerCount|ase.FlagServerName, 1, servers)
	require.NoError(t, err)

	return data
}

func TestOnceFeedsSinks(t *testing.T) {
	src := &source{data: reply(t)}
	st, pub, upd := &store{}, &publisher{}, &updater{}

	c := New(src, Options{Store: st, Publisher: pub, Updater: upd})
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	c.now = func() time.Time { return at }

	out, err := c.Once(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint32(2), out.Document.ServersCount)
	assert.Equal(t, uint64(12), out.Document.PlayersCount)
	assert.Equal(t, projector.Digest(out.JSON), out.Digest)
	assert.Contains(t, string(out.JSON), `"serverName": "two"`)

	require.Len(t, st.saved, 1)
	snap := st.saved[0]
	assert.Equal(t, at, snap.FetchedAt)
	assert.Equal(t, "test", snap.Source)
	assert.Equal(t, "extended", snap.Revision)
	assert.Equal(t, int64(12), snap.PlayersCount)
	assert.Equal(t, int64(2), snap.DecodedCount)
	assert.Equal(t, out.JSON, snap.Document)

	// publisher failure does not fail the pass
	assert.Len(t, pub.docs, 1)
	require.Len(t, upd.data, 1)
	assert.Equal(t, out.JSON, upd.data[0])
}

func TestOnceStrictTruncated(t *testing.T) {
	data := reply(t)
	src := &source{data: data[:len(data)-3]}
	upd := &updater{}

	_, err := New(src, Options{Updater: upd, Decode: ase.Options{Strict: true}}).Once(context.Background())

	var decodeErr *ase.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Empty(t, upd.data)

	out, err := New(src, Options{Updater: upd}).Once(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Document.Truncated)
	assert.Equal(t, 2, out.Decoded)
	assert.Len(t, upd.data, 1)
}

func TestOnceFetchError(t *testing.T) {
	src := &source{err: errors.New("boom")}
	_, err := New(src, Options{}).Once(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &source{data: reply(t)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		New(src, Options{}).Run(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.count() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
