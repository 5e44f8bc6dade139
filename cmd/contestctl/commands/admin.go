package commands

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stakecurate/native/contest"
	"stakecurate/native/oracle"
)

// NewAdminCmd groups the owner-only settings commands.
func NewAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Ledger settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "settings",
			Short: "Show the current settings",
			RunE: func(cmd *cobra.Command, args []string) error {
				var s contest.Settings
				if err := NewClient().Do(cmd.Context(), http.MethodGet, "/v1/settings", false, nil, &s); err != nil {
					return err
				}
				return printSettings(cmd, &s)
			},
		},
		&cobra.Command{
			Use:   "pause",
			Short: "Reject state-changing operations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return putSettings(cmd, http.MethodPost, "/v1/admin/pause", nil)
			},
		},
		&cobra.Command{
			Use:   "resume",
			Short: "Accept state-changing operations again",
			RunE: func(cmd *cobra.Command, args []string) error {
				return putSettings(cmd, http.MethodPost, "/v1/admin/resume", nil)
			},
		},
		&cobra.Command{
			Use:   "agents [ACCOUNT...]",
			Short: "Replace the agent set",
			RunE: func(cmd *cobra.Command, args []string) error {
				agents := args
				if agents == nil {
					agents = []string{}
				}
				return putSettings(cmd, http.MethodPut, "/v1/admin/agents", map[string]any{"agents": agents})
			},
		},
		&cobra.Command{
			Use:   "platform ACCOUNT",
			Short: "Set the account that receives fees",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return putSettings(cmd, http.MethodPut, "/v1/admin/platform", map[string]any{"account": args[0]})
			},
		},
		newAdminPriceCmd(),
	)
	return cmd
}

func newAdminPriceCmd() *cobra.Command {
	var decimals uint8
	cmd := &cobra.Command{
		Use:   "price TOKEN USD_MICROS",
		Short: "Refresh the oracle price of a deposit token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			micros, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid USD_MICROS %q: %w", args[1], err)
			}
			var p oracle.Price
			path := "/v1/admin/prices/" + strings.ToUpper(args[0])
			body := map[string]any{"usdMicros": micros, "decimals": decimals}
			if err := NewClient().Do(cmd.Context(), http.MethodPut, path, true, body, &p); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), p)
			}
			return table(cmd.OutOrStdout(), "TOKEN\tUSD_MICROS\tDECIMALS\tENABLED\tUPDATED", [][]any{
				{p.Token, p.USDMicros, p.Decimals, p.Enabled, p.UpdatedAt.Format(time.RFC3339)},
			})
		},
	}
	cmd.Flags().Uint8Var(&decimals, "decimals", 6, "token decimals")
	return cmd
}

func putSettings(cmd *cobra.Command, method, path string, body any) error {
	var s contest.Settings
	if err := NewClient().Do(cmd.Context(), method, path, true, body, &s); err != nil {
		return err
	}
	return printSettings(cmd, &s)
}

func printSettings(cmd *cobra.Command, s *contest.Settings) error {
	if Output == "json" {
		return printJSON(cmd.OutOrStdout(), s)
	}
	return table(cmd.OutOrStdout(), "OWNER\tPLATFORM\tFEE_BPS\tPAUSED\tAGENTS", [][]any{
		{s.Owner, s.PlatformAccount, s.FeeBps, s.Paused, fmt.Sprint(s.Agents)},
	})
}
