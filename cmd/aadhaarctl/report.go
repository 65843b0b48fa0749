package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"aadhaar/internal/loader"
	"aadhaar/internal/pipeline"
)

var (
	reportDataDir string
	reportFormat  string
	reportSection string
	reportTimeout time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Load a data directory and print the derived tables",
	Long: `Run one full reload against --data-dir and print the result.

Sections:
  summary   per-state totals and ratios
  monthly   monthly enrolment series
  forecast  projected enrolments
  unmapped  state labels the alias table does not cover
  stats     grand totals
  reload    the reload report
  all       everything above`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportDataDir, "data-dir", "d", "", "Input directory (default: DATA_DIR)")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "text", "Output format: text or json")
	reportCmd.Flags().StringVarP(&reportSection, "section", "s", "all", "Section to print")
	reportCmd.Flags().DurationVar(&reportTimeout, "timeout", 5*time.Minute, "Reload timeout")
}

func runReport(cmd *cobra.Command, args []string) error {
	dir := reportDataDir
	if dir == "" {
		dir = cfg.DataDir
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), reportTimeout)
	defer cancel()

	logger := newLogger()
	p := pipeline.New(loader.New(dir, logger), logger)
	report := p.Reload(ctx, pipeline.TriggerCLI)

	if err := writeReport(cmd.OutOrStdout(), p, report, reportFormat, reportSection); err != nil {
		return err
	}
	if report.Status == pipeline.StatusFailed {
		return fmt.Errorf("reload failed: %s", report.Cause)
	}
	return nil
}

var sections = []string{"reload", "stats", "summary", "monthly", "forecast", "unmapped"}

func validSection(s string) bool {
	if s == "all" {
		return true
	}
	for _, v := range sections {
		if v == s {
			return true
		}
	}
	return false
}

// writeReport renders the requested sections of the current snapshot.
func writeReport(w io.Writer, p *pipeline.Pipeline, report pipeline.Report, format, section string) error {
	if !validSection(section) {
		return fmt.Errorf("unknown section %q", section)
	}
	selected := sections
	if section != "all" {
		selected = []string{section}
	}

	data := map[string]any{
		"reload":   report,
		"stats":    p.Stats(),
		"summary":  p.StateSummary(),
		"monthly":  p.MonthlySeries(),
		"forecast": p.Forecast(),
		"unmapped": p.UnmappedLabels(),
	}

	switch format {
	case "json":
		out := data[section]
		if section == "all" {
			out = data
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "text":
		for _, s := range selected {
			fmt.Fprintln(w, titleStyle.Render(s))
			fmt.Fprintln(w, renderSection(p, report, s))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

var titleStyle = lipgloss.NewStyle().Bold(true)

func newTable(headers ...string) *table.Table {
	return table.New().Border(lipgloss.NormalBorder()).Headers(headers...)
}

func renderSection(p *pipeline.Pipeline, report pipeline.Report, section string) string {
	switch section {
	case "reload":
		t := newTable("CATEGORY", "FILES", "ROWS READ", "ROWS KEPT", "UNKNOWN", "NO DATE", "ERROR")
		for _, c := range report.Categories {
			t.Row(string(c.Category), itoa(c.Files), itoa(c.RowsRead), itoa(c.RowsKept),
				itoa(c.RowsUnknown), itoa(c.MissingDates), c.Error)
		}
		return fmt.Sprintf("run %s  version %d  status %s  %dms\n%s",
			report.RunID, report.Version, report.Status, report.DurationMs, t.String())
	case "stats":
		s := p.Stats()
		return newTable("STATES", "ENROLMENTS", "DEMO UPDATES", "BIO UPDATES").
			Row(itoa(s.TotalStates), i64(s.TotalEnrolments), i64(s.TotalDemoUpdates), i64(s.TotalBioUpdates)).
			String()
	case "summary":
		t := newTable("STATE", "ENROL", "DEMO", "BIO", "DEMO/ENROL", "BIO/ENROL")
		for _, r := range p.StateSummary() {
			t.Row(r.State, i64(r.TotalEnrol), i64(r.TotalDemoUpdates), i64(r.TotalBioUpdates),
				ratio(r.DemoPerEnrol), ratio(r.BioPerEnrol))
		}
		return t.String()
	case "monthly":
		t := newTable("MONTH", "ENROL")
		for _, m := range p.MonthlySeries() {
			t.Row(m.Month, i64(m.TotalEnrol))
		}
		return t.String()
	case "forecast":
		t := newTable("MONTH", "LINEAR", "MOVING AVG")
		for _, f := range p.Forecast() {
			t.Row(f.Month, ratio(f.LinearRegression), ratio(f.MovingAverage))
		}
		return t.String()
	case "unmapped":
		t := newTable("CATEGORY", "LABEL", "ROWS")
		for _, u := range p.UnmappedLabels() {
			t.Row(string(u.Category), u.Label, itoa(u.Rows))
		}
		return t.String()
	}
	return ""
}

func itoa(n int) string      { return strconv.Itoa(n) }
func i64(n int64) string     { return strconv.FormatInt(n, 10) }
func ratio(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
