package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmeshcher/tapranked/internal/service"
)

func newBusinessCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "business",
		Short: "Manage businesses",
	}

	cmd.AddCommand(newBusinessCreateCmd(opts))
	cmd.AddCommand(newBusinessListCmd(opts))

	return cmd
}

func newBusinessCreateCmd(opts *options) *cobra.Command {
	var (
		in         service.CreateBusinessInput
		maxPunches int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a business with a new NFC tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("max-punches") {
				in.MaxPunches = &maxPunches
			}

			return opts.withService(cmd.Context(), func(svc *service.Service) error {
				b, err := svc.CreateBusiness(cmd.Context(), in)
				if err != nil {
					return err
				}

				if opts.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"business": b,
						"nfc_url":  "/tap?nfc=" + b.NFCTagID,
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "created business %q\n", b.Name)
				fmt.Fprintf(out, "  id:          %s\n", b.ID)
				fmt.Fprintf(out, "  nfc tag:     %s\n", b.NFCTagID)
				fmt.Fprintf(out, "  nfc url:     /tap?nfc=%s\n", b.NFCTagID)
				fmt.Fprintf(out, "  max punches: %d\n", b.MaxPunches)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "business name")
	cmd.Flags().StringVar(&in.Description, "description", "", "business description")
	cmd.Flags().StringVar(&in.LogoURL, "logo-url", "", "logo URL")
	cmd.Flags().IntVar(&maxPunches, "max-punches", service.DefaultMaxPunches, "punches needed for the automatic reward")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBusinessListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List businesses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(svc *service.Service) error {
				list, err := svc.Businesses(cmd.Context())
				if err != nil {
					return err
				}

				if opts.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"businesses": list})
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tNFC TAG\tMAX PUNCHES")
				for _, b := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", b.ID, b.Name, b.NFCTagID, b.MaxPunches)
				}
				return w.Flush()
			})
		},
	}
}
