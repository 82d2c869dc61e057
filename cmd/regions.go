package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zip-mapper/internal/boundary"
)

var regionsFormat string

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List known boundary regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := boundary.NewTable(cfg.Boundary.Regions...)
		return writeRegions(cmd.OutOrStdout(), table.All(), regionsFormat)
	},
}

func writeRegions(w io.Writer, regions []boundary.Region, format string) error {
	switch format {
	case "json":
		return writeJSON(w, regions, true)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(regions); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tFORMAT\tZOOM\tURL") //nolint:errcheck
		for _, r := range regions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Format, r.Zoom, r.URL) //nolint:errcheck
		}
		return tw.Flush()
	default:
		return eris.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func init() {
	regionsCmd.Flags().StringVar(&regionsFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(regionsCmd)
}
