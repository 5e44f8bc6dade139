package commands

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"stakecurate/native/contest"
)

// NewStakeCmd places or switches the caller's stake.
func NewStakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stake ID OPTION AMOUNT",
		Short: "Stake on an option; a second stake switches and refunds the first",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			option, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid option index %q", args[1])
			}
			body := map[string]any{"option": option, "amount": args[2]}
			var entry contest.StakeEntry
			if err := NewClient().Do(cmd.Context(), http.MethodPost, fmt.Sprintf("/v1/contests/%d/stakes", id), true, body, &entry); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s staked %s on option %d of contest %d\n", entry.Account, entry.Amount, entry.Option, entry.ContestID)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list ACCOUNT",
		Short: "List every stake held by an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []contest.StakeEntry
			if err := NewClient().Do(cmd.Context(), http.MethodGet, "/v1/accounts/"+args[0]+"/stakes", false, nil, &list); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), list)
			}
			return stakeTable(cmd, list)
		},
	})
	return cmd
}
