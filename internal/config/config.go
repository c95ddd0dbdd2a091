/*******************************************************************************
*  internal/config/config.go
*
*  Provides static configuration to the chat collector: where lines come from,
*  the capacities of the in-memory window, archiving and the query server.
*  Values come from defaults, then an optional YAML file, then CLI flags.
*******************************************************************************/

package config

/*******************************************************************************
*  IMPORTS
*******************************************************************************/

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

/*******************************************************************************
*  TYPES
*******************************************************************************/

// Defaults sized for a long play session.
const (
	DefaultNames        = 200
	DefaultRingSize     = 1_000_000
	DefaultMaxEntries   = 5000
	DefaultPollInterval = time.Second
	DefaultListen       = "127.0.0.1:8087"
	DefaultLogLevel     = "info"
)

// Archive modes.
const (
	ArchiveNone    = "none"
	ArchiveSQLite  = "sqlite"
	ArchiveJournal = "journal"
	ArchiveBoth    = "both"
)

var ErrInvalid = errors.New("config: invalid")

// Config holds runtime configuration for the collector.
type Config struct {
	LogFile      string        `yaml:"log_file"`      // chat log to follow
	ZMQAddr      string        `yaml:"zmq_addr"`      // optional SUB endpoint
	Listen       string        `yaml:"listen"`        // HTTP address, empty disables the server
	DataDir      string        `yaml:"data_dir"`      // where archives are stored
	Names        int           `yaml:"names"`         // distinct speakers kept at once
	RingSize     int           `yaml:"ring_size"`     // bytes of message text kept
	MaxEntries   int           `yaml:"max_entries"`   // entries kept
	Archive      string        `yaml:"archive"`       // none|sqlite|journal|both
	PollInterval time.Duration `yaml:"poll_interval"` // file poll fallback
	LogLevel     string        `yaml:"log_level"`     // debug|info|warn|error
}

/*******************************************************************************
*  FUNCTIONS
*******************************************************************************/

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Listen:       DefaultListen,
		DataDir:      DefaultDataDir(),
		Names:        DefaultNames,
		RingSize:     DefaultRingSize,
		MaxEntries:   DefaultMaxEntries,
		Archive:      ArchiveNone,
		PollInterval: DefaultPollInterval,
		LogLevel:     DefaultLogLevel,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	if c.LogFile == "" && c.ZMQAddr == "" {
		err = multierr.Append(err, fmt.Errorf("%w: need log_file or zmq_addr", ErrInvalid))
	}
	if c.Names <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: names must be positive, got %d", ErrInvalid, c.Names))
	}
	if c.RingSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: ring_size must be positive, got %d", ErrInvalid, c.RingSize))
	}
	if c.MaxEntries <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: max_entries must be positive, got %d", ErrInvalid, c.MaxEntries))
	}
	if c.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: poll_interval must be positive, got %s", ErrInvalid, c.PollInterval))
	}
	switch c.Archive {
	case ArchiveNone, ArchiveSQLite, ArchiveJournal, ArchiveBoth:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: unknown archive mode %q", ErrInvalid, c.Archive))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel))
	}
	if c.Archive != ArchiveNone && c.DataDir == "" {
		err = multierr.Append(err, fmt.Errorf("%w: archive %q needs data_dir", ErrInvalid, c.Archive))
	}
	return err
}

// UsesSQLite reports whether records are archived in SQLite.
func (c Config) UsesSQLite() bool { return c.Archive == ArchiveSQLite || c.Archive == ArchiveBoth }

// UsesJournal reports whether records are archived in per-channel journals.
func (c Config) UsesJournal() bool { return c.Archive == ArchiveJournal || c.Archive == ArchiveBoth }
