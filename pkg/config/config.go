// Package config provides configuration management for catdb.
//
// This package has no I/O dependencies (no file operations, no network calls).
// Validation functions may write user-facing warnings via gn.Warn().
//
// # Configuration Sources
//
// Precedence (highest to lowest): CLI flags > env vars > config.yaml > defaults
//
// # Design Principles
//
// - Default config (from New()) is always valid - no validation needed
// - All mutations go through Option functions - the only way to modify Config
// - Invalid options are rejected with gn.Warn() - config remains in valid state
// - ToOptions() converts persistent fields (those in config.yaml)
// - Environment variables match ToOptions() fields exactly
//
// # Persistent vs Runtime Fields
//
// Persistent fields (in ToOptions, config.yaml, and env vars):
//   - Database: backend, path, host, port, user, password, database,
//     ssl_mode, batch_size, flush_retries
//   - API: base_url, access_token, timeout, request_delay, retries
//   - Ingest: term_mode, skip_prefixes, skip_underscore, dedup_policy,
//     continue_on_error, with_course_details, value_rewrites
//   - Log: level, format, destination
//   - General: jobs_number
//
// Runtime-only fields (CLI flags only):
//   - Ingest.Subjects, Terms, Reset, Resume (per-command)
//   - HomeDir (set once at startup)
//
// # Environment Variables
//
// Use CATDB_ prefix with underscores for nesting:
//
//	CATDB_DATABASE_BACKEND=sqlite
//	CATDB_API_ACCESS_TOKEN=secret
//	CATDB_INGEST_TERM_MODE=all
//	CATDB_LOG_LEVEL=info
//
// Variables can also be kept in a .env file in the working directory.
package config

import (
	"runtime"
	"time"
)

// Config represents the complete catdb configuration.
type Config struct {
	// Database contains storage backend settings.
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// API contains settings of the remote curriculum API.
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Ingest contains settings of the ingestion pipeline.
	Ingest IngestConfig `mapstructure:"ingest" yaml:"ingest"`

	Log LogConfig `mapstructure:"log" yaml:"log"`

	// JobsNumber limits the number of concurrent database queries in
	// read-only commands. Ingestion itself is always sequential.
	JobsNumber int `mapstructure:"jobs_number" yaml:"jobs_number"`

	// HomeDir determines where config, data and logs directories reside.
	// It must be set by CLI during init, there is no default value for it.
	HomeDir string `mapstructure:"-" yaml:"-"`
}

// DatabaseConfig contains storage parameters.
type DatabaseConfig struct {
	// Backend is either "sqlite" (a single local file) or "postgres".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the SQLite database file. Empty means
	// ~/.local/share/catdb/courses.db.
	Path string `mapstructure:"path" yaml:"path"`

	// Host is the PostgreSQL server hostname or IP address.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the PostgreSQL server port number.
	Port int `mapstructure:"port" yaml:"port"`

	// User is the PostgreSQL database username.
	User string `mapstructure:"user" yaml:"user"`

	// Password is the PostgreSQL database password.
	Password string `mapstructure:"password" yaml:"password"`

	// Database is the PostgreSQL database name to connect to.
	Database string `mapstructure:"database" yaml:"database"`

	// SSLMode specifies the SSL connection mode.
	// Valid values: "disable", "require", "verify-ca", "verify-full"
	SSLMode string `mapstructure:"ssl_mode" yaml:"ssl_mode"`

	// BatchSize is the maximum number of rows sent in one INSERT
	// statement.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`

	// FlushRetries is how many times a failed subject flush is retried
	// with exponential backoff before ingestion aborts.
	FlushRetries int `mapstructure:"flush_retries" yaml:"flush_retries"`
}

// APIConfig contains settings of the curriculum API client.
type APIConfig struct {
	// BaseURL is the root of the curriculum API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// AccessToken is sent as the access_token query parameter.
	AccessToken string `mapstructure:"access_token" yaml:"access_token"`

	// Timeout bounds every request. Expired requests are ordinary fetch
	// failures.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RequestDelay is the pause between offering fetches.
	RequestDelay time.Duration `mapstructure:"request_delay" yaml:"request_delay"`

	// Retries is the number of additional attempts for a failed request.
	Retries int `mapstructure:"retries" yaml:"retries"`
}

// Rewrite replaces a known garbled attribute value with a clean label.
type Rewrite struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to"   yaml:"to"`
}

// IngestConfig contains settings of the ingestion pipeline.
type IngestConfig struct {
	// TermMode selects terms to ingest: "latest" (the highest term code),
	// "all", or "list" (Terms).
	TermMode string `mapstructure:"term_mode" yaml:"term_mode"`

	// SkipPrefixes lists subject code prefixes of non-academic subjects.
	SkipPrefixes []string `mapstructure:"skip_prefixes" yaml:"skip_prefixes"`

	// SkipUnderscore skips every subject code containing an underscore.
	SkipUnderscore bool `mapstructure:"skip_underscore" yaml:"skip_underscore"`

	// DedupPolicy decides which occurrence of a course listed under
	// several subjects is kept: "first" or "last".
	DedupPolicy string `mapstructure:"dedup_policy" yaml:"dedup_policy"`

	// ContinueOnError treats failed fetches as empty results. When false,
	// the first failed fetch aborts the run after flushing.
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`

	// WithCourseDetails enables the extra course-details request per
	// offering, a third source of attributes.
	WithCourseDetails bool `mapstructure:"with_course_details" yaml:"with_course_details"`

	// ValueRewrites are applied to attribute values.
	ValueRewrites []Rewrite `mapstructure:"value_rewrites" yaml:"value_rewrites"`

	// Subjects restricts ingestion to the given subject codes.
	// Runtime-only.
	Subjects []string `mapstructure:"-" yaml:"-"`

	// Terms is the explicit term list for "list" mode. Runtime-only.
	Terms []string `mapstructure:"-" yaml:"-"`

	// Reset drops catalog tables before ingestion. Runtime-only.
	Reset bool `mapstructure:"-" yaml:"-"`

	// Resume skips subjects that were completed by an earlier run.
	// Runtime-only.
	Resume bool `mapstructure:"-" yaml:"-"`
}

// LogConfig provides typical settings for application logs.
type LogConfig struct {
	// Format can be 'json', 'text' or 'tint' (user-facing and colored).
	Format string `mapstructure:"format"      yaml:"format"`
	// Level of logging -- 'error', 'warn', 'info', 'debug'
	Level string `mapstructure:"level"       yaml:"level"`
	// Destination can be a log file (to default place), STDERR or STDOUT
	Destination string `mapstructure:"destination" yaml:"destination"`
}

// DefaultSkipPrefixes are subject code prefixes of administrative and
// placeholder subjects.
var DefaultSkipPrefixes = []string{
	"INCC_", "INCG_", "INCH_", "INCU_", "INCS_",
	"K_", "JGER_", "ROBT_", "ZZZ",
}

// DefaultRewrites fix attribute labels that the API truncates.
var DefaultRewrites = []Rewrite{
	{
		From: "Science, Technology, and Societ",
		To:   "Science, Technology, and Society",
	},
}

// New creates a Config with sensible default values.
// The returned config is always valid and ready to use.
// Default values can be overridden using Option functions via Update().
func New() *Config {
	res := &Config{
		Database: DatabaseConfig{
			Backend:      "sqlite",
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Password:     "postgres",
			Database:     "catdb",
			SSLMode:      "disable",
			BatchSize:    1_000,
			FlushRetries: 2,
		},
		API: APIConfig{
			BaseURL:      "https://streamer.oit.duke.edu/curriculum",
			Timeout:      10 * time.Second,
			RequestDelay: 100 * time.Millisecond,
			Retries:      1,
		},
		Ingest: IngestConfig{
			TermMode:          "latest",
			SkipPrefixes:      append([]string(nil), DefaultSkipPrefixes...),
			SkipUnderscore:    true,
			DedupPolicy:       "first",
			ContinueOnError:   true,
			WithCourseDetails: true,
			ValueRewrites:     append([]Rewrite(nil), DefaultRewrites...),
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
			// for now file is rewritten every time the log starts
			Destination: "file",
		},
		JobsNumber: runtime.NumCPU(),
	}

	return res
}

// SQLitePath returns the SQLite database file to use.
func (c *Config) SQLitePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return DatabasePath(c.HomeDir)
}

// RewriteMap returns value rewrites as a lookup table.
func (c *Config) RewriteMap() map[string]string {
	res := make(map[string]string, len(c.Ingest.ValueRewrites))
	for _, v := range c.Ingest.ValueRewrites {
		res[v.From] = v.To
	}
	return res
}

// Masked returns a copy of the config with secrets hidden, suitable for
// printing.
func (c Config) Masked() Config {
	if c.Database.Password != "" {
		c.Database.Password = "*****"
	}
	if c.API.AccessToken != "" {
		c.API.AccessToken = "*****"
	}
	return c
}
