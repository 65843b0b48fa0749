package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aadhaar/internal/core"
	"aadhaar/internal/log"
)

const enrolHeader = "date,state,district,pincode,age_0_5,age_5_17,age_18_greater\n"

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newLoader(dir string) *Loader {
	return New(dir, log.Discard())
}

func TestSchemaFor(t *testing.T) {
	for _, c := range core.Categories() {
		t.Run(c.String(), func(t *testing.T) {
			s, err := SchemaFor(c)
			require.NoError(t, err)
			assert.Equal(t, c, s.Category)
			assert.Contains(t, s.Pattern, string(c))
			assert.Equal(t, []string{ColumnDate, ColumnState}, s.Required()[:2])
		})
	}

	_, err := SchemaFor("payments")
	assert.Error(t, err)
}

func TestDiscoverSortsLexically(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "api_data_aadhar_enrolment_500000_1000000.csv", enrolHeader)
	writeFile(t, dir, "api_data_aadhar_enrolment_0_500000.csv", enrolHeader)
	writeFile(t, dir, "api_data_aadhar_biometric_0_500000.csv", "")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "api_data_aadhar_enrolment_dir.csv"), 0o755))

	files, err := newLoader(dir).Discover(core.Enrolment)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "api_data_aadhar_enrolment_0_500000.csv", filepath.Base(files[0]))
	assert.Equal(t, "api_data_aadhar_enrolment_500000_1000000.csv", filepath.Base(files[1]))
}

func TestLoadMissingDirectory(t *testing.T) {
	l := newLoader(filepath.Join(t.TempDir(), "gone"))

	table, _, err := l.Load(context.Background(), core.Enrolment)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInputDirMissing))
	assert.Equal(t, 0, table.Len())
}

func TestLoadNoFiles(t *testing.T) {
	table, report, err := newLoader(t.TempDir()).Load(context.Background(), core.Demographic)
	require.NoError(t, err)
	assert.Equal(t, core.Demographic, table.Category)
	assert.NotNil(t, table.Records)
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, report.Files)
}

func TestLoadConcatenatesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "api_data_aadhar_enrolment_b.csv", enrolHeader+
		"03-04-2025,Bihar,Patna,800001,1,2,3\n")
	writeFile(t, dir, "api_data_aadhar_enrolment_a.csv", enrolHeader+
		"01-03-2025,WESTBENGAL,Kolkata,700001,4,5,6\n"+
		"02-03-2025,West  Bengal ,Howrah,711101,7,8,9\n")

	table, report, err := newLoader(dir).Load(context.Background(), core.Enrolment)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	assert.Equal(t, "WEST BENGAL", table.Records[0].State)
	assert.Equal(t, "WEST BENGAL", table.Records[1].State)
	assert.Equal(t, "BIHAR", table.Records[2].State)
	assert.Equal(t, []int64{4, 5, 6}, table.Records[0].Counters)
	assert.Equal(t, core.NewDate(2025, 3, 1), table.Records[0].Date)
	assert.Equal(t, "Kolkata", table.Records[0].Extra["district"])
	assert.Equal(t, "700001", table.Records[0].Extra["pincode"])
	assert.NotContains(t, table.Records[0].Extra, "state")

	assert.Equal(t, 3, report.RowsRead)
	assert.Equal(t, 3, report.RowsKept)
	assert.Len(t, report.Files, 2)
}

func TestLoadRowHandling(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "api_data_aadhar_enrolment_0.csv", enrolHeader+
		"01-03-2025,100000,x,1,1,1,1\n"+
		"not-a-date,Kerala,x,1,1,,2\n"+
		"15-3-2025,Atlantis,x,1,0,0,1\n"+
		",,x,1,2.0,0,0\n"+
		"16-03-2025,Goa\n")

	table, report, err := newLoader(dir).Load(context.Background(), core.Enrolment)
	require.NoError(t, err)

	tests := []struct {
		name        string
		state       string
		missingDate bool
		counters    []int64
	}{
		{"bad date kept", "KERALA", true, []int64{1, 0, 2}},
		{"passthrough label", "ATLANTIS", false, []int64{0, 0, 1}},
		{"missing state", "", true, []int64{2, 0, 0}},
		{"short row", "GOA", false, []int64{0, 0, 0}},
	}
	require.Len(t, table.Records, len(tests))
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := table.Records[i]
			assert.Equal(t, tt.state, rec.State)
			assert.Equal(t, tt.missingDate, rec.Date.IsMissing())
			assert.Equal(t, tt.counters, rec.Counters)
		})
	}

	for _, rec := range table.Records {
		assert.NotEqual(t, core.UnknownState, rec.State)
	}
	assert.Equal(t, 5, report.RowsRead)
	assert.Equal(t, 1, report.RowsUnknown)
	assert.Equal(t, 2, report.MissingDates)
	assert.Equal(t, 1, report.MissingState)
	assert.Equal(t, map[string]int{"ATLANTIS": 1}, report.Unmapped)
}

func TestLoadMalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
		detail  string
	}{
		{
			name:    "missing counter column",
			content: "date,state,age_0_5,age_5_17\n01-03-2025,Goa,1,2\n",
			target:  ErrMissingColumn,
			detail:  "age_18_greater",
		},
		{
			name:    "empty file",
			content: "",
			target:  ErrMissingColumn,
		},
		{
			name:    "broken quoting",
			content: enrolHeader + "01-03-2025,\"Goa,North Goa,403001,1,2,3\n",
			target:  ErrMalformedInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "api_data_aadhar_enrolment_0.csv", tt.content)

			table, _, err := newLoader(dir).Load(context.Background(), core.Enrolment)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInput), "error %v should be malformed input", err)
			assert.True(t, errors.Is(err, tt.target))
			if tt.detail != "" {
				assert.Contains(t, err.Error(), tt.detail)
			}
			assert.Equal(t, 0, table.Len())
		})
	}
}

func TestLoadCoercesBadCounterCells(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "api_data_aadhar_enrolment_0.csv", enrolHeader+
		"01-03-2025,Bihar,Patna,800001,5,6,7\n"+
		"01-03-2025,Kerala,Kochi,682001,NA,1,2\n"+
		"02-03-2025,Goa,North Goa,403001,2.6,two,-3\n"+
		"03-03-2025,Goa,North Goa,403001,NaN,,null\n")

	table, report, err := newLoader(dir).Load(context.Background(), core.Enrolment)
	require.NoError(t, err)

	want := [][]int64{{5, 6, 7}, {0, 1, 2}, {3, 0, 0}, {0, 0, 0}}
	require.Len(t, table.Records, len(want))
	for i, counters := range want {
		assert.Equal(t, counters, table.Records[i].Counters, "row %d", i)
	}
	assert.Equal(t, "BIHAR", table.Records[0].State)

	assert.Equal(t, 4, report.RowsKept)
	assert.Equal(t, 4, report.MissingCounters)
	assert.Equal(t, 1, report.RoundedCounters)
	assert.Equal(t, 2, report.InvalidCounters)
	assert.Contains(t, report.FirstInvalid, "line 4 column age_5_17")
}

func TestLoadHeaderQuirks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "api_data_aadhar_biometric_0.csv",
		"\ufeffdate, state ,bio_age_5_17,bio_age_17_\n09-12-2025,Orissa,3,4\n")

	table, _, err := newLoader(dir).Load(context.Background(), core.Biometric)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "ODISHA", table.Records[0].State)
	assert.Equal(t, core.NewDate(2025, 12, 9), table.Records[0].Date)
	assert.Nil(t, table.Records[0].Extra)
}

func TestLoadCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "api_data_aadhar_enrolment_0.csv", enrolHeader+strings.Repeat("01-03-2025,Goa,x,1,1,1,1\n", 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newLoader(dir).Load(ctx, core.Enrolment)
	assert.ErrorIs(t, err, context.Canceled)
}
