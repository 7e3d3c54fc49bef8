// Package ioratings keeps the professor_ratings side table. Ratings come
// from an external scraper: Pending lists instructors that still need a
// rating, Import loads the scraper's CSV output.
package ioratings

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/clasier/catdb/pkg/schema"
	"github.com/clasier/catdb/pkg/store"
	"github.com/go-playground/validator/v10"
)

// Record is one professor rating.
type Record struct {
	Name              string   `validate:"required"`
	AvgRating         *float64 `validate:"omitempty,gte=0,lte=5"`
	AvgDifficulty     *float64 `validate:"omitempty,gte=0,lte=5"`
	WouldTakeAgainPct *float64 `validate:"omitempty,gte=0,lte=100"`
	Tags              string
}

func (r Record) row() store.Row {
	res := store.Row{
		"professor_name":       r.Name,
		"avg_rating":           nil,
		"avg_difficulty":       nil,
		"would_take_again_pct": nil,
		"tags":                 nil,
	}
	if r.AvgRating != nil {
		res["avg_rating"] = *r.AvgRating
	}
	if r.AvgDifficulty != nil {
		res["avg_difficulty"] = *r.AvgDifficulty
	}
	if r.WouldTakeAgainPct != nil {
		res["would_take_again_pct"] = *r.WouldTakeAgainPct
	}
	if r.Tags != "" {
		res["tags"] = r.Tags
	}
	return res
}

// Result summarizes one import.
type Result struct {
	Imported int
	Invalid  int
}

// Pending returns instructor display names that have no rating yet,
// sorted alphabetically.
func Pending(ctx context.Context, gw store.Gateway) ([]string, error) {
	ok, err := gw.HasTable(ctx, schema.Instructors)
	if err != nil || !ok {
		return nil, err
	}
	if err = gw.CreateTable(ctx, schema.ProfessorRatingsTable); err != nil {
		return nil, err
	}

	rated, err := gw.Select(ctx, schema.ProfessorRatings, nil, 0)
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(rated))
	for _, v := range rated {
		if name, ok := v["professor_name"].(string); ok {
			done[name] = struct{}{}
		}
	}

	rows, err := gw.Select(ctx, schema.Instructors, nil, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var res []string
	for _, v := range rows {
		name, _ := v["display_name"].(string)
		if name == "" {
			continue
		}
		if _, ok := done[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		res = append(res, name)
	}
	slices.Sort(res)
	return res, nil
}

// Import reads rating records from a CSV file and upserts them into
// professor_ratings in one transaction. The file needs a header row with a
// professor_name column; avg_rating, avg_difficulty,
// would_take_again_pct and tags are optional. Records that fail
// validation are logged and skipped.
func Import(ctx context.Context, gw store.Gateway, path string) (Result, error) {
	var res Result
	f, err := os.Open(path)
	if err != nil {
		return res, ReadError(path, err)
	}
	defer f.Close()

	recs, invalid, err := Read(f)
	if err != nil {
		return res, ReadError(path, err)
	}
	for _, v := range invalid {
		slog.Warn("Skipping rating record", "file", path, "error", v)
	}
	res.Invalid = len(invalid)

	if err = gw.CreateTable(ctx, schema.ProfessorRatingsTable); err != nil {
		return res, err
	}
	rows := make([]store.Row, len(recs))
	for i, v := range recs {
		rows[i] = v.row()
	}
	err = gw.Batch(ctx, func(w store.Writer) error {
		res.Imported, err = w.UpsertMany(ctx, schema.ProfessorRatings, rows)
		return err
	})
	if err != nil {
		return Result{Invalid: res.Invalid}, err
	}
	return res, nil
}

var errNoNameColumn = errors.New("header has no professor_name column")

// Read parses rating records from CSV. It returns valid records and one
// InvalidRecordError per rejected record. The error is not nil only when
// the input cannot be read as CSV at all.
func Read(r io.Reader) ([]Record, []error, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	idx := make(map[string]int, len(header))
	for i, v := range header {
		idx[strings.ToLower(strings.TrimSpace(v))] = i
	}
	if _, ok := idx["professor_name"]; !ok {
		return nil, nil, errNoNameColumn
	}

	validate := validator.New()
	var res []Record
	var invalid []error
	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, err
		}
		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(fields) {
				return strings.TrimSpace(fields[i])
			}
			return ""
		}

		rec, err := parseRecord(get)
		if err == nil {
			err = validate.Struct(rec)
		}
		if err != nil {
			invalid = append(invalid, InvalidRecordError(line, err))
			continue
		}
		res = append(res, rec)
	}
	return res, invalid, nil
}

func parseRecord(get func(string) string) (Record, error) {
	res := Record{Name: get("professor_name"), Tags: get("tags")}
	var err error
	if res.AvgRating, err = number(get("avg_rating")); err != nil {
		return res, err
	}
	if res.AvgDifficulty, err = number(get("avg_difficulty")); err != nil {
		return res, err
	}
	pct := strings.TrimSuffix(get("would_take_again_pct"), "%")
	if res.WouldTakeAgainPct, err = number(pct); err != nil {
		return res, err
	}
	return res, nil
}

// number parses an optional float. Empty strings and N/A give nil.
func number(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "n/a") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse number %q: %w", s, err)
	}
	return &f, nil
}
