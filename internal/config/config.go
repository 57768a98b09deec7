// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/tederis/ase2json/internal/ase"
	"github.com/tederis/ase2json/internal/logger"
	"github.com/tederis/ase2json/internal/vars"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatTable = "table"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Source  Source        `group:"Source Options" env-namespace:"ASE2JSON"`
	Output  Output        `group:"Output Options" env-namespace:"ASE2JSON"`
	Server  Server        `group:"Server Options" env-namespace:"ASE2JSON"`
	Storage Storage       `group:"Storage Options" namespace:"db" env-namespace:"ASE2JSON_DB"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"ASE2JSON_GEOIP"`
	MQTT    MQTT          `group:"MQTT Options" namespace:"mqtt" env-namespace:"ASE2JSON_MQTT"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"ASE2JSON_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Source describes where the master server reply comes from.
type Source struct {
	// betteralign:ignore

	URL       string        `short:"u" long:"url" env:"URL" description:"Master server list URL" default:"https://master.mtasa.com/ase/mta/"`
	Input     string        `short:"i" long:"input" env:"INPUT" description:"Read the reply from a file instead of the URL ('-' for stdin)"`
	Timeout   time.Duration `long:"timeout" env:"TIMEOUT" description:"Fetch timeout" default:"15s"`
	MaxSize   int           `long:"max-size" env:"MAX_SIZE" description:"Largest accepted reply in bytes" default:"600000"`
	Retries   int           `long:"retries" env:"RETRIES" description:"Retries on transport errors and 5xx responses" default:"2"`
	UserAgent string        `long:"user-agent" env:"USER_AGENT" description:"User-Agent header (defaults to name/version)"`
}

// Output controls how the decoded reply is rendered.
type Output struct {
	// betteralign:ignore

	Light  bool   `short:"l" long:"light" env:"LIGHT" description:"Print the summary counters only"`
	Format string `short:"f" long:"format" env:"FORMAT" description:"Output format" choice:"json" choice:"table" default:"json"`
	Path   string `short:"o" long:"output" env:"OUTPUT" description:"Output file ('-' for stdout)" default:"-"`
	Strict bool   `long:"strict" env:"STRICT" description:"Fail on truncated replies instead of printing partial results"`
}

// Server holds the optional HTTP API configuration.
type Server struct {
	// betteralign:ignore

	Address        string        `long:"listen" env:"LISTEN_ADDRESS" description:"Serve the latest list over HTTP on this address and poll periodically"`
	Interval       time.Duration `long:"interval" env:"INTERVAL" description:"Poll interval in serve mode" default:"1m"`
	AuthToken      string        `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Bearer token for the snapshot history endpoint (required with --db-path in serve mode)"`
	TrustProxy     bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	HardLimitCount int           `long:"rate-count" env:"RATE_COUNT" description:"Per IP limit: requests count" default:"30"`
	HardLimitWin   time.Duration `long:"rate-window" env:"RATE_WINDOW" description:"Per IP limit: window duration" default:"1m"`
}

// Storage holds the snapshot database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite snapshot database (disabled when empty)"`
	PruneOlder    time.Duration `long:"prune-older" description:"Delete snapshots older than the duration and exit"`
	ShowLatest    bool          `long:"show-latest" description:"Print the latest stored document and exit"`
	GenerateCount int           `long:"gen-fake" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, enables country codes (disabled when empty)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// MQTT holds the summary publisher configuration.
type MQTT struct {
	// betteralign:ignore

	Broker   string `long:"broker" env:"BROKER" description:"Broker URL, e.g. tcp://localhost:1883 (disabled when empty)"`
	Topic    string `long:"topic" env:"TOPIC" description:"Topic for summary documents" default:"ase/summary"`
	ClientID string `long:"client-id" env:"CLIENT_ID" description:"Client identifier (defaults to name-hostname)"`
	Username string `long:"username" env:"USERNAME" description:"Broker username"`
	Password string `long:"password" env:"PASSWORD" description:"Broker password"`
}

// Serve reports whether the HTTP API mode is enabled.
func (c *Config) Serve() bool {
	return c.Server.Address != ""
}

// Validate checks option combinations go-flags cannot express.
func (c *Config) Validate() error {
	if c.Source.MaxSize <= 0 {
		return fmt.Errorf("--max-size must be positive, got %d", c.Source.MaxSize)
	}
	if c.Source.Retries < 0 {
		return fmt.Errorf("--retries must not be negative, got %d", c.Source.Retries)
	}
	if c.Serve() && c.Server.Interval <= 0 {
		return fmt.Errorf("--interval must be positive in serve mode")
	}
	if c.Serve() && (c.Server.HardLimitCount <= 0 || c.Server.HardLimitWin <= 0) {
		return fmt.Errorf("--rate-count and --rate-window must be positive")
	}
	if c.Source.Input == "" && c.Source.URL == "" {
		return fmt.Errorf("either --url or --input is required")
	}
	if c.Serve() && c.Storage.Path != "" && c.Server.AuthToken == "" {
		return fmt.Errorf("--auth-token is required to serve the snapshot history of --db-path")
	}
	if (c.Storage.PruneOlder > 0 || c.Storage.ShowLatest) && c.Storage.Path == "" {
		return fmt.Errorf("database maintenance requires --db-path")
	}

	return nil
}

// DecodeOptions returns the reply decoding options.
func (c *Config) DecodeOptions() ase.Options {
	return ase.Options{Capacity: c.Source.MaxSize, Strict: c.Output.Strict}
}

// UserAgent returns the configured User-Agent or the build default.
func (c *Config) UserAgent() string {
	if c.Source.UserAgent != "" {
		return c.Source.UserAgent
	}

	return vars.UserAgent()
}

// Load parses args (without the program name) into a Config.
func Load(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return cfg
}
