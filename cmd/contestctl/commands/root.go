package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewRootCmd assembles the contestctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "contestctl",
		Short:         "Operate a contestd ledger",
		Long:          "Query contests, stake, close and administer a contestd instance over its HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&Endpoint, "endpoint", "http://127.0.0.1:7090", "contestd base URL")
	root.PersistentFlags().StringVar(&Caller, "as", "", "account to act as")
	root.PersistentFlags().StringVar(&SecretEnv, "secret-env", "CONTESTD_HMAC_SECRET", "environment variable holding the token signing secret")
	root.PersistentFlags().StringVarP(&Output, "output", "o", "", "output format: json or table")

	root.AddCommand(NewContestsCmd())
	root.AddCommand(NewStakeCmd())
	root.AddCommand(NewCloseCmd())
	root.AddCommand(NewFeeCmd())
	root.AddCommand(NewAdminCmd())
	root.AddCommand(NewDepositCmd())
	root.AddCommand(NewBalanceCmd())
	root.AddCommand(NewExportCmd())
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer, header string, rows [][]any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
