package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spektr-org/datadash/dataset"
	"github.com/spektr-org/datadash/schema"
)

type inspectOptions struct {
	file        string
	format      string
	saveMapping string
}

type inspectOutput struct {
	Source    string           `json:"source"`
	Detection schema.Detection `json:"detection"`
	Mapping   schema.Mapping   `json:"mapping"`
}

func newInspectCmd() *cobra.Command {
	o := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Profile a dataset and suggest a role mapping",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&o.file, "file", "", "Path to CSV or xlsx file (required)")
	cmd.Flags().StringVar(&o.format, "format", "text", "Output format: text, json, pretty")
	cmd.Flags().StringVar(&o.saveMapping, "save-mapping", "", "Write the suggested mapping to this YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runInspect(w io.Writer, o *inspectOptions) error {
	ds, err := dataset.Load(o.file)
	if err != nil {
		return err
	}
	det := schema.Detect(ds)
	mapping := schema.Suggest(det)
	log.Info().Str("file", o.file).Str("detection", det.String()).Msg("dataset profiled")

	if o.saveMapping != "" {
		if err := schema.SaveMapping(mapping, o.saveMapping); err != nil {
			return err
		}
		log.Info().Str("path", o.saveMapping).Msg("mapping saved")
	}

	if o.format != "text" {
		return writeJSON(w, inspectOutput{Source: o.file, Detection: det, Mapping: mapping}, o.format)
	}

	fmt.Fprintf(w, "%s: %s\n\n", o.file, det)
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tUNIQUE\tNULLS\tSAMPLES")
	for _, c := range det.Columns {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", c.Name, c.Type, c.UniqueCount, c.NullCount, strings.Join(c.SampleValues, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nSuggested mapping:")
	if len(mapping) == 0 {
		fmt.Fprintln(w, "  (none)")
		return nil
	}
	for _, r := range mapping.Roles() {
		fmt.Fprintf(w, "  %-14s %s\n", r.String(), mapping[r])
	}
	return nil
}
