package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmeshcher/tapranked/internal/service"
)

func newPrizeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prize",
		Short: "Manage prizes",
	}

	cmd.AddCommand(newPrizeCreateCmd(opts))
	cmd.AddCommand(newPrizeListCmd(opts))

	return cmd
}

func newPrizeCreateCmd(opts *options) *cobra.Command {
	var (
		in       service.CreatePrizeInput
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a prize for a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			active := !inactive
			in.IsActive = &active

			return opts.withService(cmd.Context(), func(svc *service.Service) error {
				p, err := svc.CreatePrize(cmd.Context(), in)
				if err != nil {
					return err
				}

				if opts.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"prize": p})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created prize %q (%s) for %d punches\n", p.Name, p.ID, p.PunchesRequired)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.BusinessID, "business-id", "", "business id")
	cmd.Flags().StringVar(&in.Name, "name", "", "prize name")
	cmd.Flags().StringVar(&in.Description, "description", "", "prize description")
	cmd.Flags().IntVar(&in.PunchesRequired, "punches-required", 0, "punches debited on redemption")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the prize disabled")
	_ = cmd.MarkFlagRequired("business-id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("punches-required")

	return cmd
}

func newPrizeListCmd(opts *options) *cobra.Command {
	var businessID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active prizes of a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(svc *service.Service) error {
				prizes, err := svc.ActivePrizes(cmd.Context(), businessID)
				if err != nil {
					return err
				}

				if opts.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"prizes": prizes})
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPUNCHES")
				for _, p := range prizes {
					fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, p.Name, p.PunchesRequired)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&businessID, "business-id", "", "business id")
	_ = cmd.MarkFlagRequired("business-id")

	return cmd
}
