package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func processCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "process <ticket-id>",
		Short: "Summarize one ticket and upload its report, synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 0 {
				return fmt.Errorf("invalid ticket id %q", args[0])
			}
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			proc, _, err := a.processor(ctx)
			if err != nil {
				return err
			}
			if err := proc.Process(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded s3://%s/glpi_ticket_%d.pdf\n", a.cfg.Storage.S3.Bucket, id)
			return nil
		},
	}
}
