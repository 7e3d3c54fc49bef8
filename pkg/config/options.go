package config

import (
	"strings"
	"time"
)

// Option is a function that modifies a Config.
// Options validate inputs and reject invalid values with warnings.
type Option func(*Config)

// OptDatabaseBackend sets the storage backend.
// Valid values: "sqlite", "postgres".
func OptDatabaseBackend(s string) Option {
	s = strings.ToLower(strings.TrimSpace(s))
	return func(c *Config) {
		if isValidEnum("Database.Backend", s) {
			c.Database.Backend = s
		}
	}
}

// OptDatabasePath sets the SQLite database file.
func OptDatabasePath(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Path", s) {
			c.Database.Path = s
		}
	}
}

// OptDatabaseHost sets the PostgreSQL server hostname or IP address.
func OptDatabaseHost(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Host", s) {
			c.Database.Host = s
		}
	}
}

// OptDatabasePort sets the PostgreSQL server port number.
func OptDatabasePort(i int) Option {
	return func(c *Config) {
		if isValidInt("Database Port", i) {
			c.Database.Port = i
		}
	}
}

// OptDatabaseUser sets the PostgreSQL database username.
func OptDatabaseUser(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database User", s) {
			c.Database.User = s
		}
	}
}

// OptDatabasePassword sets the PostgreSQL database password.
func OptDatabasePassword(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Password", s) {
			c.Database.Password = s
		}
	}
}

// OptDatabaseDatabase sets the PostgreSQL database name to connect to.
func OptDatabaseDatabase(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Name", s) {
			c.Database.Database = s
		}
	}
}

// OptDatabaseSSLMode sets the SSL connection mode.
// Valid values: "disable", "require", "verify-ca", "verify-full".
func OptDatabaseSSLMode(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Database.SSLMode", s) {
			c.Database.SSLMode = s
		}
	}
}

// OptDatabaseBatchSize sets the maximum number of rows per INSERT.
func OptDatabaseBatchSize(i int) Option {
	return func(c *Config) {
		if isValidInt("Batch Size", i) {
			c.Database.BatchSize = i
		}
	}
}

// OptDatabaseFlushRetries sets how many times a failed flush is retried.
// Zero disables retries.
func OptDatabaseFlushRetries(i int) Option {
	return func(c *Config) {
		if isValidNonNegative("Flush Retries", i) {
			c.Database.FlushRetries = i
		}
	}
}

// OptAPIBaseURL sets the root URL of the curriculum API.
func OptAPIBaseURL(s string) Option {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	return func(c *Config) {
		if isValidURL("API Base URL", s) {
			c.API.BaseURL = s
		}
	}
}

// OptAPIAccessToken sets the API access token.
func OptAPIAccessToken(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("API Access Token", s) {
			c.API.AccessToken = s
		}
	}
}

// OptAPITimeout sets the per-request timeout.
func OptAPITimeout(d time.Duration) Option {
	return func(c *Config) {
		if isValidInt("API Timeout", int(d)) {
			c.API.Timeout = d
		}
	}
}

// OptAPIRequestDelay sets the pause between offering fetches.
// Zero disables pacing.
func OptAPIRequestDelay(d time.Duration) Option {
	return func(c *Config) {
		if isValidNonNegative("API Request Delay", int(d)) {
			c.API.RequestDelay = d
		}
	}
}

// OptAPIRetries sets the number of additional attempts per request.
func OptAPIRetries(i int) Option {
	return func(c *Config) {
		if isValidNonNegative("API Retries", i) {
			c.API.Retries = i
		}
	}
}

// OptIngestTermMode sets the term selection mode.
// Valid values: "latest", "all", "list".
func OptIngestTermMode(s string) Option {
	s = strings.ToLower(strings.TrimSpace(s))
	return func(c *Config) {
		if isValidEnum("Ingest.TermMode", s) {
			c.Ingest.TermMode = s
		}
	}
}

// OptIngestSkipPrefixes sets subject code prefixes to skip.
// An empty slice means no prefix is skipped.
func OptIngestSkipPrefixes(ss []string) Option {
	ss = cleanList(ss, false)
	return func(c *Config) {
		c.Ingest.SkipPrefixes = ss
	}
}

// OptIngestSkipUnderscore sets if subject codes with an underscore are
// skipped.
func OptIngestSkipUnderscore(b bool) Option {
	return func(c *Config) {
		c.Ingest.SkipUnderscore = b
	}
}

// OptIngestDedupPolicy sets the cross-subject course dedup policy.
// Valid values: "first", "last".
func OptIngestDedupPolicy(s string) Option {
	s = strings.ToLower(strings.TrimSpace(s))
	return func(c *Config) {
		if isValidEnum("Ingest.DedupPolicy", s) {
			c.Ingest.DedupPolicy = s
		}
	}
}

// OptIngestContinueOnError sets if failed fetches are skipped.
func OptIngestContinueOnError(b bool) Option {
	return func(c *Config) {
		c.Ingest.ContinueOnError = b
	}
}

// OptIngestWithCourseDetails sets if course details are fetched for every
// offering.
func OptIngestWithCourseDetails(b bool) Option {
	return func(c *Config) {
		c.Ingest.WithCourseDetails = b
	}
}

// OptIngestValueRewrites sets attribute value rewrite rules. Rules with an
// empty side are ignored.
func OptIngestValueRewrites(rr []Rewrite) Option {
	var res []Rewrite
	for _, v := range rr {
		v.From = strings.TrimSpace(v.From)
		v.To = strings.TrimSpace(v.To)
		if v.From == "" || v.To == "" {
			continue
		}
		res = append(res, v)
	}
	return func(c *Config) {
		c.Ingest.ValueRewrites = res
	}
}

// OptIngestSubjects restricts ingestion to the given subject codes.
// Runtime-only field - not in ToOptions().
func OptIngestSubjects(ss []string) Option {
	ss = cleanList(ss, true)
	return func(c *Config) {
		if len(ss) > 0 {
			c.Ingest.Subjects = ss
		}
	}
}

// OptIngestTerms sets explicit term codes and switches TermMode to "list".
// Runtime-only field - not in ToOptions().
func OptIngestTerms(ss []string) Option {
	ss = cleanList(ss, false)
	return func(c *Config) {
		if len(ss) > 0 {
			c.Ingest.Terms = ss
			c.Ingest.TermMode = "list"
		}
	}
}

// OptIngestReset sets if catalog tables are dropped before ingestion.
// Runtime-only field - not in ToOptions().
func OptIngestReset(b bool) Option {
	return func(c *Config) {
		c.Ingest.Reset = b
	}
}

// OptIngestResume sets if subjects completed earlier are skipped.
// Runtime-only field - not in ToOptions().
func OptIngestResume(b bool) Option {
	return func(c *Config) {
		c.Ingest.Resume = b
	}
}

// OptLogLevel sets the logging level.
// Valid values: "debug", "info", "warn", "error".
func OptLogLevel(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Level", s) {
			c.Log.Level = s
		}
	}
}

// OptLogFormat sets the log output format.
// Valid values: "json", "text", "tint".
func OptLogFormat(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Format", s) {
			c.Log.Format = s
		}
	}
}

// OptLogDestination sets where logs are written.
// Valid values: "file", "stderr", "stdout".
func OptLogDestination(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Destination", s) {
			c.Log.Destination = s
		}
	}
}

// OptJobsNumber sets the number of concurrent database queries.
// Default is runtime.NumCPU().
func OptJobsNumber(i int) Option {
	return func(c *Config) {
		if isValidInt("Jobs Number", i) {
			c.JobsNumber = i
		}
	}
}

// OptHomeDir sets the home directory for config, data, and log locations.
// Set once at startup from os.UserHomeDir().
// Runtime-only field - not in ToOptions().
func OptHomeDir(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Home Directory", s) {
			c.HomeDir = s
		}
	}
}

func cleanList(ss []string, upper bool) []string {
	res := make([]string, 0, len(ss))
	for _, v := range ss {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if upper {
			v = strings.ToUpper(v)
		}
		res = append(res, v)
	}
	return res
}
