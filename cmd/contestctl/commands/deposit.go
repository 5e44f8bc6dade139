package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"stakecurate/native/bank"
)

// NewDepositCmd credits the caller's balance from a supported token.
func NewDepositCmd() *cobra.Command {
	var token, memo string
	cmd := &cobra.Command{
		Use:   "deposit AMOUNT",
		Short: "Deposit tokens into the caller's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if Caller == "" {
				return fmt.Errorf("--as is required")
			}
			body := map[string]any{"token": token, "amount": args[0], "memo": memo}
			var d bank.Deposit
			if err := NewClient().Do(cmd.Context(), http.MethodPost, "/v1/accounts/"+Caller+"/deposits", true, body, &d); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deposit %d: %s %s (%s usd micros)\n", d.ID, d.Amount, d.Token, d.USDMicros)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "USDC", "token symbol")
	cmd.Flags().StringVar(&memo, "memo", "", "free-form note")
	cmd.AddCommand(&cobra.Command{
		Use:   "list ACCOUNT",
		Short: "List deposits for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []bank.Deposit
			if err := NewClient().Do(cmd.Context(), http.MethodGet, "/v1/accounts/"+args[0]+"/deposits", false, nil, &list); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), list)
			}
			rows := make([][]any, len(list))
			for i, d := range list {
				rows[i] = []any{d.ID, d.Token, d.Amount, d.USDMicros, d.Memo}
			}
			return table(cmd.OutOrStdout(), "ID\tTOKEN\tAMOUNT\tUSD_MICROS\tMEMO", rows)
		},
	})
	return cmd
}
