// main is the entry point of the ase2json application.
// It fetches an ASE master server list, decodes it and prints it as JSON, or
// keeps polling it and serves the latest list over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tederis/ase2json/internal/collector"
	"github.com/tederis/ase2json/internal/config"
	"github.com/tederis/ase2json/internal/fake"
	"github.com/tederis/ase2json/internal/fetch"
	"github.com/tederis/ase2json/internal/geoip"
	"github.com/tederis/ase2json/internal/logger"
	"github.com/tederis/ase2json/internal/maintenance"
	"github.com/tederis/ase2json/internal/projector"
	"github.com/tederis/ase2json/internal/server"
	"github.com/tederis/ase2json/internal/storage"
	"github.com/tederis/ase2json/internal/telemetry"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatal().Err(err).Msg("ase2json failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// data generation
	if cfg.Storage.GenerateCount > 0 {
		return generate(cfg)
	}

	opts := collector.Options{
		Decode:  cfg.DecodeOptions(),
		Project: projector.Options{Light: cfg.Output.Light && !cfg.Serve()},
	}

	// Database
	var store *storage.Repository
	if cfg.Storage.Path != "" {
		var err error
		if store, err = storage.New(cfg.Storage.Path); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing database")
			}
		}()

		done, err := maintenance.Run(cfg, store, os.Stdout)
		if done {
			return err
		}
		opts.Store = store
	}

	// GeoIP
	if cfg.GeoIP.Path != "" {
		geo := openGeoIP(ctx, cfg.GeoIP)
		if geo != nil {
			defer func() {
				if err := geo.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
			opts.Project.Country = geo.CountryCode
		}
	}

	// MQTT
	if cfg.MQTT.Broker != "" {
		pub := telemetry.New(cfg.MQTT)
		if err := pub.Connect(); err != nil {
			log.Error().Err(err).Msg("MQTT unavailable, summaries will not be published")
		} else {
			defer pub.Close()
			opts.Publisher = pub
		}
	}

	if !cfg.Serve() {
		return once(ctx, cfg, opts)
	}

	return serve(ctx, cfg, opts, store)
}

// source builds the configured reply source.
func source(cfg *config.Config) fetch.Source {
	if cfg.Source.Input != "" {
		return fetch.NewFile(cfg.Source.Input, cfg.Source.MaxSize)
	}

	return fetch.NewHTTP(cfg.Source.URL, fetch.Options{
		UserAgent: cfg.UserAgent(),
		Timeout:   cfg.Source.Timeout,
		Capacity:  cfg.Source.MaxSize,
		Retries:   cfg.Source.Retries,
	})
}

// once decodes a single reply and writes the document to the output.
func once(ctx context.Context, cfg *config.Config, opts collector.Options) error {
	out, err := collector.New(source(cfg), opts).Once(ctx)
	if err != nil {
		return err
	}

	return writeOutput(cfg.Output.Path, func(w io.Writer) error {
		if cfg.Output.Format == config.FormatTable {
			return projector.WriteTable(w, out.Document)
		}
		_, err := w.Write(out.JSON)
		return err
	})
}

// serve polls the source and serves the latest document until ctx is done.
func serve(ctx context.Context, cfg *config.Config, opts collector.Options, store *storage.Repository) error {
	var lister server.SnapshotLister
	if store != nil {
		lister = store
	}

	srvHandler := server.New(lister, cfg)
	defer srvHandler.Close()
	opts.Updater = srvHandler

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		collector.New(source(cfg), opts).Run(ctx, cfg.Server.Interval)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err == nil {
		<-pollDone
	}

	log.Info().Msg("Server exited")
	return err
}

// openGeoIP refreshes and opens the GeoIP database. A failure only disables
// country codes.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geo, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return geo
}

// generate writes a synthetic extended reply.
func generate(cfg *config.Config) error {
	data, err := fake.Reply(cfg.Storage.GenerateCount, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return err
	}

	log.Info().Int("servers", cfg.Storage.GenerateCount).Int("bytes", len(data)).Msg("Fake reply generated")
	return writeOutput(cfg.Output.Path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeOutput runs write against stdout for "-" or the named file.
func writeOutput(path string, write func(w io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
