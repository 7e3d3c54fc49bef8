package ioratings_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clasier/catdb/internal/ioratings"
	"github.com/clasier/catdb/internal/iotesting"
	"github.com/clasier/catdb/pkg/errcode"
	"github.com/clasier/catdb/pkg/schema"
	"github.com/clasier/catdb/pkg/store"
	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ratingsCSV = `professor_name,avg_rating,avg_difficulty,would_take_again_pct,tags
Susan Rodger,4.8,2.9,95%,"Caring, Clear grading"
Owen Astrachan,4.1,,N/A,
Nobody,7,1,50,
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratings.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRead(t *testing.T) {
	tests := []struct {
		msg     string
		input   string
		names   []string
		invalid int
		err     bool
	}{
		{"valid and invalid", ratingsCSV, []string{"Susan Rodger", "Owen Astrachan"}, 1, false},
		{"empty input", "", nil, 0, false},
		{"no name column", "name,avg_rating\nA,1\n", nil, 0, true},
		{"missing name", "professor_name,avg_rating\n,3\n", nil, 1, false},
		{"bad number", "professor_name,avg_rating\nA,great\n", nil, 1, false},
		{"pct out of range", "professor_name,would_take_again_pct\nA,120\n", nil, 1, false},
		{"short row", "professor_name,avg_rating,tags\nA\n", []string{"A"}, 0, false},
	}

	for _, v := range tests {
		recs, invalid, err := ioratings.Read(strings.NewReader(v.input))
		if v.err {
			require.Error(t, err, v.msg)
			continue
		}
		require.NoError(t, err, v.msg)
		var names []string
		for _, r := range recs {
			names = append(names, r.Name)
		}
		assert.Equal(t, v.names, names, v.msg)
		assert.Len(t, invalid, v.invalid, v.msg)
	}
}

func TestReadValues(t *testing.T) {
	recs, invalid, err := ioratings.Read(strings.NewReader(ratingsCSV))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, 4.8, *recs[0].AvgRating)
	assert.Equal(t, 95.0, *recs[0].WouldTakeAgainPct)
	assert.Equal(t, "Caring, Clear grading", recs[0].Tags)
	assert.Nil(t, recs[1].AvgDifficulty)
	assert.Nil(t, recs[1].WouldTakeAgainPct)

	var gnErr *gn.Error
	require.True(t, errors.As(invalid[0], &gnErr))
	assert.Equal(t, errcode.RatingsInvalidRecordError, gnErr.Code)
	assert.Equal(t, []any{4}, gnErr.Vars)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	gw := iotesting.NewSQLite(t, 0)

	res, err := ioratings.Import(ctx, gw, writeFile(t, ratingsCSV))
	require.NoError(t, err)
	assert.Equal(t, ioratings.Result{Imported: 2, Invalid: 1}, res)

	rows, err := gw.Select(ctx, schema.ProfessorRatings,
		map[string]any{"professor_name": "Susan Rodger"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4.8, rows[0]["avg_rating"])

	// re-import replaces
	_, err = ioratings.Import(ctx, gw,
		writeFile(t, "professor_name,avg_rating\nSusan Rodger,4.5\n"))
	require.NoError(t, err)
	rows, err = gw.Select(ctx, schema.ProfessorRatings,
		map[string]any{"professor_name": "Susan Rodger"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 4.5, rows[0]["avg_rating"])
	assert.Nil(t, rows[0]["tags"])

	_, err = ioratings.Import(ctx, gw, filepath.Join(t.TempDir(), "none.csv"))
	var gnErr *gn.Error
	require.ErrorAs(t, err, &gnErr)
	assert.Equal(t, errcode.RatingsReadError, gnErr.Code)
}

func TestPending(t *testing.T) {
	ctx := context.Background()
	gw := iotesting.NewSQLite(t, 0)

	// no catalog yet
	res, err := ioratings.Pending(ctx, gw)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, gw.CreateTable(ctx, schema.InstructorsTable))
	_, err = gw.UpsertMany(ctx, schema.Instructors, []store.Row{
		{"assignment_id": "1", "display_name": "Susan Rodger"},
		{"assignment_id": "2", "display_name": "Owen Astrachan"},
		{"assignment_id": "3", "display_name": "Owen Astrachan"},
		{"assignment_id": "4", "display_name": "Alex Chao"},
		{"assignment_id": "5"},
	})
	require.NoError(t, err)

	_, err = ioratings.Import(ctx, gw,
		writeFile(t, "professor_name,avg_rating\nSusan Rodger,4.5\n"))
	require.NoError(t, err)

	res, err = ioratings.Pending(ctx, gw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alex Chao", "Owen Astrachan"}, res)
}
