/*
Copyright © 2025 Dmitry Mozzherin <dmozzherin@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/clasier/catdb/internal/iofs"
	"github.com/clasier/catdb/internal/iologger"
	"github.com/clasier/catdb/internal/iostore"
	catdb "github.com/clasier/catdb/pkg"
	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/store"
	"github.com/gnames/gn"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	homeDir string
	opts    []config.Option
	cfg     *config.Config
)

// getRootCmd returns the base command when called without any
// subcommands.
func getRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Version: fmt.Sprintf("version: %s\nbuild:   %s", catdb.Version, catdb.Build),
		Use:     "catdb",
		Short:   "catdb builds a queryable database of the course catalog",
		Long: `catdb pulls subjects, courses, offerings, class listings, meeting
patterns and instructors from the Duke curriculum API and stores them
in a relational database (SQLite by default, PostgreSQL optionally).

Course attributes are pivoted into columns of offering_attributes; new
attribute names add new columns, existing columns are never removed.

Commands:
  create   Create the database schema
  ingest   Run the ingestion pipeline
  query    Print rows of a table
  stats    Print row counts
  ratings  Manage professor ratings

Configuration precedence (highest to lowest):
  1. CLI flags
  2. Environment variables (CATDB_*, also from a .env file)
  3. Config file (~/.config/catdb/config.yaml)
  4. Built-in defaults

Without a subcommand catdb prints the effective configuration.`,
		PersistentPreRunE: bootstrap,
		RunE:              runRoot,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}

	// Remove the automatic "catdb version" prefix
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Override version flag to use -V
	rootCmd.Flags().BoolP("version", "V", false, "version for catdb")

	rootCmd.AddCommand(
		getCreateCmd(),
		getIngestCmd(),
		getQueryCmd(),
		getStatsCmd(),
		getRatingsCmd(),
	)
	return rootCmd
}

func bootstrap(cmd *cobra.Command, args []string) error {
	var err error
	homeDir, err = os.UserHomeDir()
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	if err = iofs.EnsureDirs(homeDir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	// Initialize logging with hardcoded defaults
	// Will be reconfigured later with user's config settings
	defaultLog := config.LogConfig{
		Format:      "json",
		Level:       "info",
		Destination: "file",
	}
	if err = iologger.Init(config.LogDir(homeDir), defaultLog); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	if err = iofs.EnsureConfigFile(homeDir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	// a missing .env file is normal
	if err = godotenv.Load(); err == nil {
		slog.Info("Environment loaded from .env")
	}

	var cfgViper *config.Config
	if cfgViper, err = initConfig(homeDir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	cfg = config.New()
	opts = cfgViper.ToOptions()
	cfg.Update(opts)

	// Set HomeDir after config is loaded
	cfg.Update([]config.Option{config.OptHomeDir(homeDir)})

	// Reconfigure logging with user's settings and proper log file location
	if err = reconfigureLogging(cfg); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	slog.Info("Configuration loaded", "config_file", config.ConfigFilePath(homeDir))

	return nil
}

// reconfigureLogging reinitializes the logger with the loaded configuration.
func reconfigureLogging(cfg *config.Config) error {
	logDir := config.LogDir(cfg.HomeDir)
	return iologger.Init(logDir, cfg.Log)
}

func runRoot(cmd *cobra.Command, args []string) error {
	gn.Info(
		"Configuration file is <em>%s</em>",
		config.ConfigFilePath(homeDir),
	)
	out, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	err := getRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

// openStore connects to the configured database.
func openStore(ctx context.Context) (store.Gateway, error) {
	gw, err := iostore.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gn.Info("Connected to database: <em>%s</em>", iostore.Describe(cfg))
	return gw, nil
}

func initConfig(home string) (*config.Config, error) {
	var err error
	cfgPath := config.ConfigFilePath(home)
	v := viper.New()
	v.SetConfigFile(cfgPath)

	setDefaults(v, config.New())
	initEnvVars(v)

	if err = v.ReadInConfig(); err != nil {
		return nil, iofs.ReadFileError(cfgPath, err)
	}

	var res config.Config
	if err = v.Unmarshal(&res); err != nil {
		return nil, iofs.ReadFileError(cfgPath, err)
	}

	return &res, nil
}

// setDefaults keeps keys removed from config.yaml at their built-in
// values. Without them viper would return zero values for booleans.
func setDefaults(v *viper.Viper, def *config.Config) {
	v.SetDefault("database.backend", def.Database.Backend)
	v.SetDefault("database.host", def.Database.Host)
	v.SetDefault("database.port", def.Database.Port)
	v.SetDefault("database.user", def.Database.User)
	v.SetDefault("database.password", def.Database.Password)
	v.SetDefault("database.database", def.Database.Database)
	v.SetDefault("database.ssl_mode", def.Database.SSLMode)
	v.SetDefault("database.batch_size", def.Database.BatchSize)
	v.SetDefault("database.flush_retries", def.Database.FlushRetries)

	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout", def.API.Timeout)
	v.SetDefault("api.request_delay", def.API.RequestDelay)
	v.SetDefault("api.retries", def.API.Retries)

	v.SetDefault("ingest.term_mode", def.Ingest.TermMode)
	v.SetDefault("ingest.skip_prefixes", def.Ingest.SkipPrefixes)
	v.SetDefault("ingest.skip_underscore", def.Ingest.SkipUnderscore)
	v.SetDefault("ingest.dedup_policy", def.Ingest.DedupPolicy)
	v.SetDefault("ingest.continue_on_error", def.Ingest.ContinueOnError)
	v.SetDefault("ingest.with_course_details", def.Ingest.WithCourseDetails)

	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.destination", def.Log.Destination)

	v.SetDefault("jobs_number", def.JobsNumber)
}

func initEnvVars(v *viper.Viper) {
	// Set environment variables we want.
	// We set them manually so we can see clearly which env variables are allowed.
	// These match the fields included in config.ToOptions() - i.e., persistent
	// configuration that can be stored in config.yaml.
	v.SetEnvPrefix("CATDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Database configuration
	v.BindEnv("database.backend", "CATDB_DATABASE_BACKEND")
	v.BindEnv("database.path", "CATDB_DATABASE_PATH")
	v.BindEnv("database.host", "CATDB_DATABASE_HOST")
	v.BindEnv("database.port", "CATDB_DATABASE_PORT")
	v.BindEnv("database.user", "CATDB_DATABASE_USER")
	v.BindEnv("database.password", "CATDB_DATABASE_PASSWORD")
	v.BindEnv("database.database", "CATDB_DATABASE_DATABASE")
	v.BindEnv("database.ssl_mode", "CATDB_DATABASE_SSL_MODE")
	v.BindEnv("database.batch_size", "CATDB_DATABASE_BATCH_SIZE")
	v.BindEnv("database.flush_retries", "CATDB_DATABASE_FLUSH_RETRIES")

	// API configuration
	v.BindEnv("api.base_url", "CATDB_API_BASE_URL")
	v.BindEnv("api.access_token", "CATDB_API_ACCESS_TOKEN")
	v.BindEnv("api.timeout", "CATDB_API_TIMEOUT")
	v.BindEnv("api.request_delay", "CATDB_API_REQUEST_DELAY")
	v.BindEnv("api.retries", "CATDB_API_RETRIES")

	// Ingest configuration
	v.BindEnv("ingest.term_mode", "CATDB_INGEST_TERM_MODE")
	v.BindEnv("ingest.skip_underscore", "CATDB_INGEST_SKIP_UNDERSCORE")
	v.BindEnv("ingest.dedup_policy", "CATDB_INGEST_DEDUP_POLICY")
	v.BindEnv("ingest.continue_on_error", "CATDB_INGEST_CONTINUE_ON_ERROR")
	v.BindEnv("ingest.with_course_details", "CATDB_INGEST_WITH_COURSE_DETAILS")

	// Log configuration
	v.BindEnv("log.level", "CATDB_LOG_LEVEL")
	v.BindEnv("log.format", "CATDB_LOG_FORMAT")
	v.BindEnv("log.destination", "CATDB_LOG_DESTINATION")

	// General configuration
	v.BindEnv("jobs_number", "CATDB_JOBS_NUMBER")

	v.AutomaticEnv()
}
