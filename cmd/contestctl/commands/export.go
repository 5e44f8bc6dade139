package commands

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"stakecurate/integrations/exports"
	"stakecurate/native/contest"
)

// NewExportCmd downloads every settlement as csv, jsonl or parquet.
func NewExportCmd() *cobra.Command {
	var format, path string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export settlements for reconciliation",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewClient()
			switch format {
			case "parquet":
				if path == "" {
					return fmt.Errorf("--file is required for parquet")
				}
				var list []*contest.Settlement
				if err := c.Do(cmd.Context(), http.MethodGet, "/v1/settlements?format=json", false, nil, &list); err != nil {
					return err
				}
				n, err := exports.WriteSettlementsParquet(path, list)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", n, path)
				return nil
			case "csv", "jsonl":
				body, header, err := c.Raw(cmd.Context(), "/v1/settlements?format="+format)
				if err != nil {
					return err
				}
				if path == "" {
					_, err = cmd.OutOrStdout().Write(body)
					return err
				}
				if err := os.WriteFile(path, body, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (sha256 %s)\n", path, header.Get("X-Checksum-SHA256"))
				return nil
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv, jsonl or parquet")
	cmd.Flags().StringVarP(&path, "file", "f", "", "destination file (stdout when empty, except parquet)")
	return cmd
}
