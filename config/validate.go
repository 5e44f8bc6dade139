package config

import (
	"fmt"
	"strings"
)

// Validate checks the parameters before they seed the ledger.
func Validate(c *Ledger) error {
	if c.Owner == "" {
		return fmt.Errorf("ledger: Owner required")
	}
	if c.PlatformAccount == "" {
		return fmt.Errorf("ledger: PlatformAccount required")
	}
	seen := make(map[string]struct{}, len(c.Agents))
	for _, agent := range c.Agents {
		agent = strings.TrimSpace(agent)
		if agent == "" {
			return fmt.Errorf("ledger: empty agent entry")
		}
		if _, dup := seen[agent]; dup {
			return fmt.Errorf("ledger: duplicate agent %s", agent)
		}
		seen[agent] = struct{}{}
	}
	limits, err := c.ContestLimits()
	if err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if c.FeeBps > limits.FeeCeilingBps {
		return fmt.Errorf("ledger: FeeBps %d above ceiling %d", c.FeeBps, limits.FeeCeilingBps)
	}
	if _, err := c.StorageCosts(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	for _, token := range c.Deposits.Tokens {
		if strings.TrimSpace(token.Symbol) == "" {
			return fmt.Errorf("deposits: token symbol required")
		}
		if token.Decimals > 77 {
			return fmt.Errorf("deposits: token %s decimals %d out of range", token.Symbol, token.Decimals)
		}
	}
	return nil
}
