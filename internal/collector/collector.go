// Package collector runs the fetch, decode and project pipeline and hands the
// result to the configured sinks.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tederis/ase2json/internal/ase"
	"github.com/tederis/ase2json/internal/fetch"
	"github.com/tederis/ase2json/internal/logger"
	"github.com/tederis/ase2json/internal/models"
	"github.com/tederis/ase2json/internal/projector"
)

// Store persists encoded documents.
type Store interface {
	SaveSnapshot(s models.Snapshot) (bool, error)
}

// Publisher receives every successfully projected document.
type Publisher interface {
	Publish(doc *projector.Document, at time.Time) error
}

// Updater receives the document together with its encoded form.
type Updater interface {
	Update(doc *projector.Document, data []byte, at time.Time) error
}

// Options wire the pipeline. All sinks are optional.
type Options struct {
	Store     Store
	Publisher Publisher
	Updater   Updater
	Project   projector.Options
	Decode    ase.Options
}

// Outcome is the product of one pass.
type Outcome struct {
	FetchedAt time.Time
	Document  *projector.Document
	Digest    string
	JSON      []byte
	Decoded   int
}

// Collector polls one source.
type Collector struct {
	source fetch.Source
	opts   Options
	log    zerolog.Logger
	now    func() time.Time
}

// New returns a collector for src.
func New(src fetch.Source, opts Options) *Collector {
	return &Collector{
		source: src,
		opts:   opts,
		log:    logger.Component("collector"),
		now:    time.Now,
	}
}

// Once fetches, decodes and projects one reply, then feeds the sinks.
// Sink failures are logged and do not fail the pass.
func (c *Collector) Once(ctx context.Context) (*Outcome, error) {
	started := c.now()

	buf, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.source, err)
	}

	res, err := ase.DecodeBuffer(buf, c.opts.Decode)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.source, err)
	}
	if res.Truncated {
		c.log.Warn().
			Uint32("declared", res.Declared).
			Int("decoded", len(res.Servers)).
			Msg("Reply is truncated, serving partial list")
	}

	doc := projector.Build(res, c.opts.Project)
	data, err := projector.Encode(doc)
	if err != nil {
		return nil, err
	}
	if doc.Lossy > 0 {
		c.log.Warn().Int("servers", doc.Lossy).Msg("Names with invalid UTF-8 were replaced with U+FFFD")
	}

	out := &Outcome{
		FetchedAt: started,
		Document:  doc,
		Digest:    projector.Digest(data),
		JSON:      data,
		Decoded:   len(res.Servers),
	}

	c.feed(out)

	c.log.Info().
		Str("revision", res.Revision.String()).
		Uint32("servers", doc.ServersCount).
		Uint64("players", doc.PlayersCount).
		Dur("took", c.now().Sub(started)).
		Msg("Master server list updated")

	return out, nil
}

func (c *Collector) feed(out *Outcome) {
	doc := out.Document

	if c.opts.Store != nil {
		saved, err := c.opts.Store.SaveSnapshot(models.Snapshot{
			FetchedAt:    out.FetchedAt,
			Source:       c.source.String(),
			Revision:     doc.Revision.String(),
			Digest:       out.Digest,
			Document:     out.JSON,
			ServersCount: int64(doc.ServersCount),
			PlayersCount: int64(doc.PlayersCount),
			DecodedCount: int64(out.Decoded),
			Truncated:    doc.Truncated,
		})
		if err != nil {
			c.log.Error().Err(err).Msg("Failed to save snapshot")
		} else if !saved {
			c.log.Debug().Str("digest", out.Digest).Msg("Snapshot unchanged, not stored")
		}
	}

	if c.opts.Publisher != nil {
		if err := c.opts.Publisher.Publish(doc, out.FetchedAt); err != nil {
			c.log.Warn().Err(err).Msg("Failed to publish summary")
		}
	}

	if c.opts.Updater != nil {
		if err := c.opts.Updater.Update(doc, out.JSON, out.FetchedAt); err != nil {
			c.log.Error().Err(err).Msg("Failed to update served document")
		}
	}
}

// Run calls Once immediately and then every interval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.Once(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error().Err(err).Msg("Poll failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
