package commands

import (
	"fmt"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

// NewBalanceCmd prints an account balance, defaulting to the caller.
func NewBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [ACCOUNT]",
		Short: "Show an account balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := Caller
			if len(args) == 1 {
				account = args[0]
			}
			if account == "" {
				return fmt.Errorf("account required")
			}
			var out struct {
				Account string       `json:"account"`
				Balance *uint256.Int `json:"balance"`
			}
			if err := NewClient().Do(cmd.Context(), http.MethodGet, "/v1/accounts/"+account+"/balance", false, nil, &out); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out.Account, out.Balance)
			return nil
		},
	}
}
