package cmd

import (
	"bytes"
	"testing"

	"github.com/clasier/catdb/pkg/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetRootCmd_Exists verifies getRootCmd returns
// a valid command.
func TestGetRootCmd_Exists(t *testing.T) {
	cmd := getRootCmd()
	require.NotNil(t, cmd, "Root command should exist")
	assert.Equal(t, "catdb", cmd.Use,
		"Command name should be catdb")
	assert.NotNil(t, cmd.PersistentPreRunE,
		"PersistentPreRunE should be set for bootstrap")
	assert.NotNil(t, cmd.RunE,
		"RunE should print the configuration")
}

// TestGetRootCmd_VersionFormat verifies version
// output format.
func TestGetRootCmd_VersionFormat(t *testing.T) {
	tests := []struct {
		msg  string
		flag string
	}{
		{"long flag", "--version"},
		{"short flag", "-V"},
	}

	for _, v := range tests {
		cmd := getRootCmd()
		cmd.Version = "version: v1.2.3\nbuild:   abc123"

		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetArgs([]string{v.flag})

		err := cmd.Execute()
		require.NoError(t, err, v.msg)

		output := buf.String()
		assert.Contains(t, output, "v1.2.3", v.msg)
		assert.Contains(t, output, "abc123", v.msg)
	}
}

// TestGetRootCmd_Subcommands verifies every subcommand
// is registered.
func TestGetRootCmd_Subcommands(t *testing.T) {
	cmd := getRootCmd()

	names := make(map[string]bool)
	for _, v := range cmd.Commands() {
		names[v.Name()] = true
	}
	for _, v := range []string{"create", "ingest", "query", "stats", "ratings"} {
		assert.True(t, names[v], "missing subcommand %s", v)
	}
}

// TestGetRootCmd_LongDescription verifies
// long description.
func TestGetRootCmd_LongDescription(t *testing.T) {
	cmd := getRootCmd()

	assert.Contains(t, cmd.Long, "curriculum API")
	assert.Contains(t, cmd.Long, "CATDB_")
	assert.Contains(t, cmd.Long, "offering_attributes")
}

// TestSetDefaults verifies that keys missing from the
// config file keep built-in values.
func TestSetDefaults(t *testing.T) {
	v := viper.New()
	def := config.New()
	setDefaults(v, def)

	var res config.Config
	require.NoError(t, v.Unmarshal(&res))

	assert.Equal(t, def.Database.Backend, res.Database.Backend)
	assert.Equal(t, def.API.Timeout, res.API.Timeout)
	assert.Equal(t, def.Ingest.SkipPrefixes, res.Ingest.SkipPrefixes)
	assert.True(t, res.Ingest.SkipUnderscore)
	assert.True(t, res.Ingest.ContinueOnError)
	assert.True(t, res.Ingest.WithCourseDetails)
	assert.Equal(t, def.JobsNumber, res.JobsNumber)
}

// TestInitEnvVars verifies CATDB_ environment variables
// override defaults.
func TestInitEnvVars(t *testing.T) {
	t.Setenv("CATDB_DATABASE_BACKEND", "postgres")
	t.Setenv("CATDB_API_ACCESS_TOKEN", "token")
	t.Setenv("CATDB_INGEST_CONTINUE_ON_ERROR", "false")

	v := viper.New()
	setDefaults(v, config.New())
	initEnvVars(v)

	var res config.Config
	require.NoError(t, v.Unmarshal(&res))

	assert.Equal(t, "postgres", res.Database.Backend)
	assert.Equal(t, "token", res.API.AccessToken)
	assert.False(t, res.Ingest.ContinueOnError)
}
