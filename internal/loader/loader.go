// Package loader reads the per-category CSV files of the input directory
// into normalized record tables.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"aadhaar/internal/core"
	"aadhaar/internal/log"
	"aadhaar/internal/normalize"
)

var (
	// ErrMalformedInput wraps every per-file failure: a file that cannot be
	// opened or read as the category's CSV schema. Bad counter cells are not
	// file failures; they read as zero and are tallied in the Report.
	ErrMalformedInput  = errors.New("malformed input")
	ErrMissingColumn   = errors.New("missing required column")
	ErrInputDirMissing = errors.New("input directory missing")
)

// ctxCheckEvery bounds how many rows are read between cancellation checks.
const ctxCheckEvery = 4096

// Report describes what a single category load saw.
type Report struct {
	Category     core.Category
	Files        []string
	RowsRead     int
	RowsKept     int
	RowsUnknown  int
	MissingDates int
	MissingState int
	Unmapped     map[string]int

	// Counter cells read as zero (empty or null marker), rounded from a
	// fraction, or unusable. FirstInvalid locates the first unusable cell.
	MissingCounters int
	RoundedCounters int
	InvalidCounters int
	FirstInvalid    string
}

// Loader reads category tables from a directory.
type Loader struct {
	dir    string
	logger *log.Logger
}

// New creates a loader rooted at dir.
func New(dir string, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Discard()
	}
	return &Loader{
		dir:    dir,
		logger: logger.WithComponent(log.ComponentLoader),
	}
}

// Dir returns the input directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Discover lists the files of a category in lexical order.
func (l *Loader) Discover(c core.Category) ([]string, error) {
	schema, err := SchemaFor(c)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputDirMissing, l.dir)
		}
		return nil, fmt.Errorf("stat input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInputDirMissing, l.dir)
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := filepath.Match(schema.Pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", schema.Pattern, err)
		}
		if ok {
			files = append(files, filepath.Join(l.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every file of a category and returns the concatenated,
// normalized table. Rows labelled UNKNOWN are dropped. A file that cannot
// be read as CSV or lacks a required column fails the whole category.
func (l *Loader) Load(ctx context.Context, c core.Category) (core.Table, Report, error) {
	start := time.Now()
	report := Report{Category: c, Unmapped: make(map[string]int)}
	table := core.Table{Category: c, Records: []core.Record{}}

	schema, err := SchemaFor(c)
	if err != nil {
		return table, report, err
	}

	files, err := l.Discover(c)
	if err != nil {
		return table, report, err
	}
	report.Files = files
	table.Files = files

	if len(files) == 0 {
		l.logger.WarnContext(ctx, "No files found",
			log.FieldCategory, c.String(),
			log.FieldDirectory, l.dir,
		)
		return table, report, nil
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return core.Table{Category: c, Records: []core.Record{}}, report, err
		}
		records, err := l.readFile(ctx, path, schema, &report)
		if err != nil {
			return core.Table{Category: c, Records: []core.Record{}}, report, err
		}
		table.Records = append(table.Records, records...)
		l.logger.DebugContext(ctx, "File loaded",
			log.FieldCategory, c.String(),
			log.FieldFile, filepath.Base(path),
			log.FieldRows, len(records),
		)
	}
	report.RowsKept = len(table.Records)

	l.logger.InfoContext(ctx, "Category loaded",
		log.FieldCategory, c.String(),
		log.FieldRows, report.RowsKept,
		"files", len(files),
		"dropped_unknown", report.RowsUnknown,
		"missing_dates", report.MissingDates,
		log.FieldDuration, time.Since(start).Milliseconds(),
	)
	if report.InvalidCounters > 0 || report.RoundedCounters > 0 {
		l.logger.WarnContext(ctx, "Counter cells coerced",
			log.FieldCategory, c.String(),
			"invalid_cells", report.InvalidCounters,
			"rounded_cells", report.RoundedCounters,
			"first_invalid", report.FirstInvalid,
		)
	}
	return table, report, nil
}

func (l *Loader) readFile(ctx context.Context, path string, schema Schema, report *Report) ([]core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedInput, filepath.Base(path), err)
	}
	defer f.Close()
	return parse(ctx, f, filepath.Base(path), schema, report)
}

// parse reads one CSV stream. name is used for error messages only.
func parse(ctx context.Context, r io.Reader, name string, schema Schema, report *Report) ([]core.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w: %s has no header", ErrMalformedInput, ErrMissingColumn, name)
		}
		return nil, fmt.Errorf("%w: read header of %s: %v", ErrMalformedInput, name, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = h
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	for _, col := range schema.Required() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %w: %s lacks %s", ErrMalformedInput, ErrMissingColumn, name, strings.Join(missing, ", "))
	}

	required := make(map[int]struct{}, len(schema.Required()))
	for _, col := range schema.Required() {
		required[index[col]] = struct{}{}
	}
	dateIdx, stateIdx := index[ColumnDate], index[ColumnState]
	counterIdx := make([]int, len(schema.Counters))
	for i, col := range schema.Counters {
		counterIdx[i] = index[col]
	}

	var records []core.Record
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, name, err)
		}
		line, _ := cr.FieldPos(0)
		report.RowsRead++

		stateCell, present := cell(row, stateIdx)
		state, ok := normalize.CanonicalizeState(stateCell, present && stateCell != "")
		if ok && normalize.IsUnknown(state) {
			report.RowsUnknown++
			continue
		}
		if !ok || state == "" {
			state = ""
			report.MissingState++
		} else if !normalize.IsCanonical(state) {
			report.Unmapped[state]++
		}

		rec := core.Record{
			State:    state,
			Counters: make([]int64, len(counterIdx)),
		}

		if raw, _ := cell(row, dateIdx); raw != "" {
			if t, err := time.Parse(DateLayout, strings.TrimSpace(raw)); err == nil {
				rec.Date = core.Date{Time: t}
			}
		}
		if rec.Date.IsMissing() {
			report.MissingDates++
		}

		for i, idx := range counterIdx {
			raw, _ := cell(row, idx)
			v, kind := core.ParseCount(raw)
			switch kind {
			case core.CountMissing:
				report.MissingCounters++
			case core.CountRounded:
				report.RoundedCounters++
			case core.CountInvalid:
				report.InvalidCounters++
				if report.FirstInvalid == "" {
					report.FirstInvalid = fmt.Sprintf("%s line %d column %s: %q", name, line, schema.Counters[i], raw)
				}
			}
			rec.Counters[i] = v
		}

		for i, h := range header {
			if _, skip := required[i]; skip || h == "" {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string, len(header)-len(required))
			}
			v, _ := cell(row, i)
			rec.Extra[h] = v
		}

		records = append(records, rec)
	}
	return records, nil
}

// cell returns the i-th field of a row. Short rows read as missing cells.
func cell(row []string, i int) (string, bool) {
	if i < len(row) {
		return row[i], true
	}
	return "", false
}
