package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"stakecurate/native/contest"
)

type closeResult struct {
	Settlement *contest.Settlement     `json:"settlement"`
	Dispatch   *contest.DispatchReport `json:"dispatch"`
}

// NewCloseCmd settles a contest and reports the dispatched transfers.
func NewCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close ID",
		Short: "Close an ended contest and pay out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var out closeResult
			if err := NewClient().Do(cmd.Context(), http.MethodPost, fmt.Sprintf("/v1/contests/%d/close", id), true, nil, &out); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			if out.Settlement != nil {
				if err := printSettlement(cmd, out.Settlement); err != nil {
					return err
				}
			}
			if out.Dispatch != nil && out.Dispatch.Failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d transfer(s) failed\n", out.Dispatch.Failed)
				for _, t := range out.Dispatch.Transfers {
					if t.Error != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s %s: %s\n", t.Account, t.Amount, t.Error)
					}
				}
			}
			return nil
		},
	}
}
