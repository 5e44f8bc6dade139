package commands

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stakecurate/native/contest"
)

type contestView struct {
	contest.Contest
	Status string `json:"status"`
}

// NewContestsCmd groups contest queries and lifecycle commands.
func NewContestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contests",
		Aliases: []string{"contest", "c"},
		Short:   "List, inspect and create contests",
	}
	cmd.AddCommand(newContestsListCmd(), newContestsGetCmd(), newContestsCreateCmd(),
		newParticipantsCmd(), newWhitelistCmd(), newSettlementCmd())
	return cmd
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid contest id %q", raw)
	}
	return id, nil
}

func newContestsListCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contests",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/contests"
			if active {
				path += "?active=true"
			}
			var list []contestView
			if err := NewClient().Do(cmd.Context(), http.MethodGet, path, false, nil, &list); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), list)
			}
			rows := make([][]any, len(list))
			for i, c := range list {
				rows[i] = []any{c.ID, c.Kind, c.Status, c.Creator, len(c.Options), c.Escrowed, c.Title}
			}
			return table(cmd.OutOrStdout(), "ID\tKIND\tSTATUS\tCREATOR\tOPTIONS\tESCROWED\tTITLE", rows)
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "only contests accepting stakes")
	return cmd
}

func newContestsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one contest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var c contestView
			if err := NewClient().Do(cmd.Context(), http.MethodGet, fmt.Sprintf("/v1/contests/%d", id), false, nil, &c); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), c)
			}
			rows := make([][]any, len(c.Options))
			for i, opt := range c.Options {
				rows[i] = []any{i, opt.Label, opt.Staked, opt.Recipient}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s (%s, %s) escrowed %s\n", c.ID, c.Title, c.Kind, c.Status, c.Escrowed)
			return table(cmd.OutOrStdout(), "OPTION\tLABEL\tSTAKED\tRECIPIENT", rows)
		},
	}
}

func newContestsCreateCmd() *cobra.Command {
	var (
		kind, title, description, duration string
		prize, maxStake, attached          string
		options                            []string
		creatorShare, backerShare          uint8
		public, allowCreatorStake          bool
		maxParticipants                    uint32
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a poll or bounty",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]contest.OptionSpec, 0, len(options))
			for _, raw := range options {
				label, recipient, _ := strings.Cut(raw, "=")
				specs = append(specs, contest.OptionSpec{Label: strings.TrimSpace(label), Recipient: strings.TrimSpace(recipient)})
			}
			body := map[string]any{
				"kind":              kind,
				"title":             title,
				"description":       description,
				"options":           specs,
				"duration":          duration,
				"basePrize":         prize,
				"creatorSharePct":   creatorShare,
				"backerSharePct":    backerShare,
				"isPublic":          public,
				"allowCreatorStake": allowCreatorStake,
				"maxParticipants":   maxParticipants,
			}
			if maxStake != "" {
				body["maxStakePerAccount"] = maxStake
			}
			if attached != "" {
				body["attached"] = attached
			}
			var c contestView
			if err := NewClient().Do(cmd.Context(), http.MethodPost, "/v1/contests", true, body, &c); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created contest %d\n", c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(contest.KindPoll), "poll or bounty")
	cmd.Flags().StringVar(&title, "title", "", "contest title")
	cmd.Flags().StringVar(&description, "description", "", "contest description")
	cmd.Flags().StringArrayVar(&options, "option", nil, "option label, optionally label=recipient (repeatable)")
	cmd.Flags().StringVar(&duration, "duration", "168h", "time until the contest ends")
	cmd.Flags().StringVar(&prize, "prize", "0", "base prize in base units")
	cmd.Flags().Uint8Var(&creatorShare, "creator-share", 0, "creator share of the net pool in percent")
	cmd.Flags().Uint8Var(&backerShare, "backer-share", 100, "backer share of the net pool in percent")
	cmd.Flags().BoolVar(&public, "public", true, "anyone may stake")
	cmd.Flags().BoolVar(&allowCreatorStake, "allow-creator-stake", false, "let the creator stake")
	cmd.Flags().StringVar(&maxStake, "max-stake", "", "per-account stake cap in base units")
	cmd.Flags().Uint32Var(&maxParticipants, "max-participants", 0, "participant cap (0 uses the ceiling)")
	cmd.Flags().StringVar(&attached, "attached", "", "value to attach (defaults to the prize)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newParticipantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "participants ID",
		Short: "List stakes in first-stake order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var list []contest.StakeEntry
			if err := NewClient().Do(cmd.Context(), http.MethodGet, fmt.Sprintf("/v1/contests/%d/participants", id), false, nil, &list); err != nil {
				return err
			}
			if Output == "json" {
				return printJSON(cmd.OutOrStdout(), list)
			}
			return stakeTable(cmd, list)
		},
	}
}

func stakeTable(cmd *cobra.Command, list []contest.StakeEntry) error {
	rows := make([][]any, len(list))
	for i, s := range list {
		rows[i] = []any{s.ContestID, s.Account, s.Option, s.Amount, s.Seq}
	}
	return table(cmd.OutOrStdout(), "CONTEST\tACCOUNT\tOPTION\tAMOUNT\tSEQ", rows)
}

func newWhitelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Edit the whitelist of a private contest",
	}
	for _, entry := range []struct {
		use    string
		method string
	}{{"add", http.MethodPost}, {"remove", http.MethodDelete}} {
		entry := entry
		cmd.AddCommand(&cobra.Command{
			Use:   entry.use + " ID ACCOUNT",
			Short: entry.use + " an account",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				path := fmt.Sprintf("/v1/contests/%d/whitelist/%s", id, args[1])
				return NewClient().Do(cmd.Context(), entry.method, path, true, nil, nil)
			},
		})
	}
	return cmd
}

func newSettlementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settlement ID",
		Short: "Show the settlement of a closed contest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var s contest.Settlement
			if err := NewClient().Do(cmd.Context(), http.MethodGet, fmt.Sprintf("/v1/contests/%d/settlement", id), false, nil, &s); err != nil {
				return err
			}
			return printSettlement(cmd, &s)
		},
	}
}

func printSettlement(cmd *cobra.Command, s *contest.Settlement) error {
	if Output == "json" {
		return printJSON(cmd.OutOrStdout(), s)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "contest %d %s pool %s fee %s digest %s\n", s.ContestID, s.Outcome, s.TotalPool, s.Fee, s.Digest)
	rows := make([][]any, len(s.Payments))
	for i, p := range s.Payments {
		rows[i] = []any{p.Account, p.Amount, p.Role}
	}
	return table(cmd.OutOrStdout(), "ACCOUNT\tAMOUNT\tROLE", rows)
}
