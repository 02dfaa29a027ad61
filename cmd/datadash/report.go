package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spektr-org/datadash/dataset"
	"github.com/spektr-org/datadash/engine"
	"github.com/spektr-org/datadash/schema"
)

type reportOptions struct {
	file        string
	mappingPath string
	pairs       []string
	from, to    string
	categories  []string
	regions     []string
	segments    []string
	topN        int
	rankBy      string
	format      string
	currency    string
	out         string
}

func newReportCmd() *cobra.Command {
	o := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute a dashboard report for a dataset",
		Long: `Compute KPIs, monthly series, breakdowns, rankings, customer and return
metrics for a dataset.

Without --mapping or --map the mapping is suggested from the column names.
--map pairs are applied on top of --mapping or the suggestion.

Formats:
  json      Full report as JSON (default)
  pretty    Indented JSON
  csv       Dashboard tables as CSV (ready for Sheets/Excel)
  text      Human-readable summary`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.file, "file", "", "Path to CSV or xlsx file (required)")
	f.StringVar(&o.mappingPath, "mapping", "", "YAML file of role: column entries")
	f.StringArrayVar(&o.pairs, "map", nil, "Role mapping override, role=Column (repeatable)")
	f.StringVar(&o.from, "from", "", "Earliest date to include")
	f.StringVar(&o.to, "to", "", "Latest date to include (a bare date covers the whole day)")
	f.StringSliceVar(&o.categories, "category", nil, "Keep only these categories")
	f.StringSliceVar(&o.regions, "region", nil, "Keep only these regions")
	f.StringSliceVar(&o.segments, "segment", nil, "Keep only these segments")
	f.IntVar(&o.topN, "top", 0, "Items per ranking (default from config)")
	f.StringVar(&o.rankBy, "rank-by", "", "Ranking metric: sales, profit, quantity (default from config)")
	f.StringVar(&o.format, "format", "json", "Output format: json, pretty, csv, text")
	f.StringVar(&o.currency, "currency", "$", "Currency symbol for csv and text output")
	f.StringVarP(&o.out, "out", "o", "", "Write output to file instead of stdout")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runReport(cmd *cobra.Command, o *reportOptions) error {
	ds, err := dataset.Load(o.file)
	if err != nil {
		return err
	}

	mapping, err := resolveMapping(ds, o.mappingPath, o.pairs)
	if err != nil {
		return err
	}
	sel, err := o.selection()
	if err != nil {
		return err
	}

	rankBy := cfg.RankMetric()
	if o.rankBy != "" {
		m, ok := engine.ParseRankMetric(o.rankBy)
		if !ok {
			return fmt.Errorf("--rank-by %q is not one of sales, profit, quantity", o.rankBy)
		}
		rankBy = m
	}

	report, err := engine.Run(cmd.Context(), engine.Request{
		Data:    ds,
		Mapping: mapping,
		Filters: sel,
		TopN:    o.topN,
		RankBy:  rankBy,
	}, cfg.EngineOptions()...)
	if err != nil {
		return err
	}
	log.Info().
		Str("file", o.file).
		Int("rows", report.Rows).
		Int("filtered_rows", report.FilteredRows).
		Str("mapping", mapping.String()).
		Msg("report computed")

	var w io.Writer = cmd.OutOrStdout()
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch o.format {
	case "csv":
		err = writeTablesCSV(w, report.Tables(o.currency))
	case "text":
		err = writeText(w, report, o.currency)
	case "json", "pretty":
		err = writeJSON(w, report, o.format)
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
	if err == nil && o.out != "" {
		log.Info().Str("path", o.out).Str("format", o.format).Msg("report written")
	}
	return err
}

// resolveMapping loads path or suggests a mapping, then applies the pairs.
func resolveMapping(ds *dataset.Dataset, path string, pairs []string) (schema.Mapping, error) {
	var m schema.Mapping
	if path != "" {
		loaded, err := schema.LoadMapping(path)
		if err != nil {
			return nil, err
		}
		m = loaded
	} else {
		m = schema.Suggest(schema.Detect(ds))
	}

	overrides, err := schema.ParsePairs(pairs)
	if err != nil {
		return nil, err
	}
	for r, col := range overrides {
		m = m.Set(r, col)
	}
	return m, nil
}

func (o *reportOptions) selection() (engine.Selection, error) {
	start, err := parseBound(o.from, false)
	if err != nil {
		return engine.Selection{}, fmt.Errorf("--from: %w", err)
	}
	end, err := parseBound(o.to, true)
	if err != nil {
		return engine.Selection{}, fmt.Errorf("--to: %w", err)
	}
	return engine.Selection{
		Start:      start,
		End:        end,
		Categories: o.categories,
		Regions:    o.regions,
		Segments:   o.segments,
	}, nil
}

// parseBound parses a date flag. An upper bound given without a time of day
// is moved to the last instant of that day.
func parseBound(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := dataset.ParseDate(s)
	if err != nil {
		return nil, err
	}
	if upper && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
