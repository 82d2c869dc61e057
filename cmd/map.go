package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zip-mapper/internal/model"
	"github.com/sells-group/zip-mapper/internal/pipeline"
)

var (
	mapCodes    string
	mapFile     string
	mapStrategy string
	mapRegion   string
	mapCountry  string
	mapGeometry bool
	mapPretty   bool
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Geocode postal codes and print map data as JSON",
	Example: `  zipmap map --codes 06106,06511,06902 --region CT --strategy auto
  zipmap map --file zips.txt --strategy national`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		codes, err := readCodesInput(mapCodes, mapFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "map")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, codes, pipeline.Config{
			Strategy:        model.ParseStrategy(mapStrategy),
			Region:          mapRegion,
			Country:         mapCountry,
			IncludeGeometry: mapGeometry,
		})
		if err != nil {
			return err
		}

		return writeJSON(cmd.OutOrStdout(), result, mapPretty)
	},
}

// readCodesInput collects codes from --codes, --file or stdin ("-").
func readCodesInput(codes, file string, stdin io.Reader) ([]string, error) {
	out := pipeline.SplitCodes(codes)

	switch file {
	case "":
	case "-":
		fromStdin, err := pipeline.ReadCodes(stdin)
		if err != nil {
			return nil, err
		}
		out = append(out, fromStdin...)
	default:
		f, err := os.Open(file)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", file)
		}
		defer f.Close() //nolint:errcheck

		fromFile, err := pipeline.ReadCodes(f)
		if err != nil {
			return nil, err
		}
		out = append(out, fromFile...)
	}

	out = pipeline.NormalizeCodes(out)
	if len(out) == 0 {
		return nil, pipeline.ErrNoPostalCodes
	}
	return out, nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}

func init() {
	mapCmd.Flags().StringVar(&mapCodes, "codes", "", "comma-separated postal codes")
	mapCmd.Flags().StringVar(&mapFile, "file", "", "file with postal codes, one per line or comma-separated (- for stdin)")
	mapCmd.Flags().StringVar(&mapStrategy, "strategy", "national", "viewport strategy: national, region or auto")
	mapCmd.Flags().StringVar(&mapRegion, "region", "", "region id for boundary highlighting (see zipmap regions)")
	mapCmd.Flags().StringVar(&mapCountry, "country", "", "country restriction (default from config)")
	mapCmd.Flags().BoolVar(&mapGeometry, "geometry", false, "include matched polygons as GeoJSON")
	mapCmd.Flags().BoolVar(&mapPretty, "pretty", false, "indent JSON output")
	rootCmd.AddCommand(mapCmd)
}
