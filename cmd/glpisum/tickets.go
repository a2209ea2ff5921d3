package main

import (
	"context"
	"encoding/json"

	"github.com/mohammad-safakhou/glpisum/internal/glpi"
	"github.com/spf13/cobra"
)

func ticketsCMD(cfgPath *string) *cobra.Command {
	var rng string
	var tickets = &cobra.Command{
		Use:   "tickets",
		Short: "List tickets from GLPI as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.glpiClient()
			if err != nil {
				return err
			}
			ctx := context.Background()
			defer client.KillSession(ctx)

			list := client.GetTickets(ctx, rng)
			if list == nil {
				list = []glpi.Ticket{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		},
	}
	tickets.Flags().StringVar(&rng, "range", glpi.DefaultRange, "GLPI range, e.g. 0-10")
	return tickets
}
