package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zip-mapper/internal/boundary"
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Boundary dataset commands",
}

var boundaryFetchCmd = &cobra.Command{
	Use:   "fetch <region>",
	Short: "Download and decode a region's boundary dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("boundary"); err != nil {
			return err
		}

		store := initStore(cfg)
		start := time.Now()
		ds, err := store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		if ds == nil {
			return eris.Errorf("unknown region %q", boundary.NormalizeRegionID(args[0]))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "region %s: %d polygons loaded in %s\n", //nolint:errcheck
			ds.RegionID, ds.Len(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	boundaryCmd.AddCommand(boundaryFetchCmd)
	rootCmd.AddCommand(boundaryCmd)
}
