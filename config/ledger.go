package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"stakecurate/native/contest"
)

func parseUintAmount(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return amount, nil
}

// ContestLimits merges the overrides into the default bounds.
func (c *Ledger) ContestLimits() (contest.Limits, error) {
	limits := contest.DefaultLimits()
	l := c.Limits
	limits.MinOptions = l.MinOptions
	limits.MaxOptions = l.MaxOptions
	limits.MaxLabelLen = l.MaxLabelLen
	limits.MaxTitleLen = l.MaxTitleLen
	limits.MaxDescriptionLen = l.MaxDescriptionLen
	limits.MaxDuration = time.Duration(l.MaxDurationDays) * 24 * time.Hour
	limits.ParticipantCeiling = l.ParticipantCeiling
	limits.MinCreatorShare = l.MinCreatorShare
	limits.FeeCeilingBps = l.FeeCeilingBps
	for name, field := range map[string]struct {
		raw string
		dst **uint256.Int
	}{
		"MinReward":   {l.MinReward, &limits.MinReward},
		"MaxReward":   {l.MaxReward, &limits.MaxReward},
		"MinStakeCap": {l.MinStakeCap, &limits.MinStakeCap},
		"MaxStakeCap": {l.MaxStakeCap, &limits.MaxStakeCap},
	} {
		amount, err := parseUintAmount(field.raw)
		if err != nil {
			return limits, fmt.Errorf("invalid Limits.%s: %w", name, err)
		}
		if amount != nil {
			*field.dst = amount
		}
	}
	if err := limits.Validate(); err != nil {
		return limits, err
	}
	return limits, nil
}

// StorageCosts parses the creation charge.
func (c *Ledger) StorageCosts() (contest.StorageCosts, error) {
	base, err := parseUintAmount(c.StorageBaseCost)
	if err != nil {
		return contest.StorageCosts{}, fmt.Errorf("invalid StorageBaseCost: %w", err)
	}
	perOption, err := parseUintAmount(c.StorageOptionCost)
	if err != nil {
		return contest.StorageCosts{}, fmt.Errorf("invalid StorageOptionCost: %w", err)
	}
	return contest.StorageCosts{Base: base, PerOption: perOption}, nil
}

// Settings returns the seed for the persisted settings record.
func (c *Ledger) Settings() contest.Settings {
	return contest.Settings{
		Owner:           c.Owner,
		Agents:          append([]string(nil), c.Agents...),
		PlatformAccount: c.PlatformAccount,
		FeeBps:          c.FeeBps,
		Paused:          c.PauseOnStart,
	}
}

// MaxPriceAge returns the oracle staleness window.
func (d Deposits) MaxPriceAge() time.Duration {
	return time.Duration(d.MaxPriceAgeHours) * time.Hour
}
