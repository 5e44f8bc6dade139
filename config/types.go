package config

import "time"

// Limits overrides the contest resource bounds. Zero values keep defaults;
// amounts are decimal strings in base units.
type Limits struct {
	MinOptions         int    `toml:"MinOptions"`
	MaxOptions         int    `toml:"MaxOptions"`
	MaxLabelLen        int    `toml:"MaxLabelLen"`
	MaxTitleLen        int    `toml:"MaxTitleLen"`
	MaxDescriptionLen  int    `toml:"MaxDescriptionLen"`
	MaxDurationDays    uint32 `toml:"MaxDurationDays"`
	MinReward          string `toml:"MinReward"`
	MaxReward          string `toml:"MaxReward"`
	MinStakeCap        string `toml:"MinStakeCap"`
	MaxStakeCap        string `toml:"MaxStakeCap"`
	ParticipantCeiling uint32 `toml:"ParticipantCeiling"`
	MinCreatorShare    uint8  `toml:"MinCreatorShare"`
	FeeCeilingBps      uint32 `toml:"FeeCeilingBps"`
}

func (l *Limits) applyDefaults() {
	if l.MinOptions == 0 {
		l.MinOptions = 2
	}
	if l.MaxOptions == 0 {
		l.MaxOptions = 100
	}
	if l.MaxLabelLen == 0 {
		l.MaxLabelLen = 120
	}
	if l.MaxTitleLen == 0 {
		l.MaxTitleLen = 120
	}
	if l.MaxDescriptionLen == 0 {
		l.MaxDescriptionLen = 600
	}
	if l.MaxDurationDays == 0 {
		l.MaxDurationDays = 365
	}
	if l.ParticipantCeiling == 0 {
		l.ParticipantCeiling = 150
	}
	if l.FeeCeilingBps == 0 {
		l.FeeCeilingBps = 2000
	}
}

// Token is a statically priced deposit token.
type Token struct {
	Symbol    string `toml:"Symbol"`
	Decimals  uint8  `toml:"Decimals"`
	USDMicros uint64 `toml:"USDMicros"`
	Enabled   bool   `toml:"Enabled"`
	// UpdatedAt is when USDMicros was observed. Zero means the time the file
	// is loaded. The price goes stale MaxPriceAgeHours later unless the owner
	// refreshes it through the admin API.
	UpdatedAt time.Time `toml:"UpdatedAt,omitempty"`
}

// Deposits configures oracle-priced deposits.
type Deposits struct {
	MinUSDMicros     uint64  `toml:"MinUSDMicros"`
	MaxPriceAgeHours uint32  `toml:"MaxPriceAgeHours"`
	Tokens           []Token `toml:"Tokens"`
}

func (d *Deposits) applyDefaults() {
	if d.MinUSDMicros == 0 {
		d.MinUSDMicros = 5_000_000
	}
	if d.MaxPriceAgeHours == 0 {
		d.MaxPriceAgeHours = 1
	}
	if d.Tokens == nil {
		d.Tokens = []Token{}
	}
}
