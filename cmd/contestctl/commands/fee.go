package commands

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

// NewFeeCmd reads or changes the platform fee.
func NewFeeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Platform fee in basis points",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				FeeBps uint32 `json:"feeBps"`
			}
			if err := NewClient().Do(cmd.Context(), http.MethodGet, "/v1/fee", false, nil, &out); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bps\n", out.FeeBps)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set BPS",
		Short: "Set the fee (owner or agent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bps, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid fee %q", args[0])
			}
			return putSettings(cmd, http.MethodPut, "/v1/admin/fee", map[string]any{"feeBps": bps})
		},
	})
	return cmd
}
