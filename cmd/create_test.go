package cmd

import (
	"context"
	"testing"

	"github.com/clasier/catdb/internal/iotesting"
	"github.com/clasier/catdb/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetCreateCmd_Exists verifies getCreateCmd returns
// a valid command.
func TestGetCreateCmd_Exists(t *testing.T) {
	cmd := getCreateCmd()
	require.NotNil(t, cmd, "Create command should exist")
	assert.Equal(t, "create", cmd.Use,
		"Command name should be create")
	assert.Contains(t, cmd.Short, "schema",
		"Short description should mention schema")
	assert.NotNil(t, cmd.RunE, "RunE should be set")
}

// TestGetCreateCmd_ForceFlag verifies --force flag exists.
func TestGetCreateCmd_ForceFlag(t *testing.T) {
	cmd := getCreateCmd()

	forceFlag := cmd.Flags().Lookup("force")
	require.NotNil(t, forceFlag,
		"--force flag should exist")

	assert.Equal(t, "f", forceFlag.Shorthand,
		"Short form should be -f")
	assert.Equal(t, "false", forceFlag.DefValue,
		"Default should be false")
	assert.Contains(t, forceFlag.Usage, "drop",
		"Usage should mention drop")
}

func TestExistingTables(t *testing.T) {
	ctx := context.Background()
	gw := iotesting.NewSQLite(t, 0)

	res, err := existingTables(ctx, gw)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, gw.CreateTable(ctx, schema.CoursesTable))
	require.NoError(t, gw.CreateTable(ctx, schema.ProfessorRatingsTable))

	res, err = existingTables(ctx, gw)
	require.NoError(t, err)
	assert.Equal(t, []string{schema.Courses, schema.ProfessorRatings}, res)
}
