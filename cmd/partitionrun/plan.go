package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Andrej220/go-utils/partition"
)

func newPlanCmd(root *rootFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the batches and worker count a run over --count ids would use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if count < 0 {
				return fmt.Errorf("count must be >= 0, got %d", count)
			}
			opts := cfg.Executor.Options()
			if err := opts.Validate(); err != nil {
				return err
			}

			bounds := partition.Bounds(count, opts.BatchSize)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "items=%d batch_size=%d batches=%d workers=%d\n",
				count, opts.BatchSize, len(bounds), min(opts.ThreadCount, len(bounds)))
			for i, b := range bounds {
				fmt.Fprintf(out, "batch %d: [%d, %d) size=%d\n", i, b[0], b[1], b[1]-b[0])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "number of ids")
	return cmd
}
