package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmeshcher/tapranked/internal/service"
)

func newLeaderboardCmd(opts *options) *cobra.Command {
	var (
		businessID string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard of a business or the global one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(svc *service.Service) error {
				entries, err := svc.Leaderboard(cmd.Context(), businessID, limit)
				if err != nil {
					return err
				}

				if opts.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"leaderboard": entries})
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "RANK\tNAME\tTOTAL\tTIER")
				for _, e := range entries {
					fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", e.Rank, e.DisplayName, e.TotalPunches, e.Tier)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&businessID, "business-id", "", "business id, empty for the global leaderboard")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of entries, 1 to 50")

	return cmd
}
