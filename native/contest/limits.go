package contest

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/holiman/uint256"

	"stakecurate/native/common"
)

// Limits bounds every contest at creation and the fee rate at configuration.
type Limits struct {
	MinOptions         int
	MaxOptions         int
	MaxLabelLen        int
	MaxTitleLen        int
	MaxDescriptionLen  int
	MaxDuration        time.Duration
	MinReward          *uint256.Int
	MaxReward          *uint256.Int
	MinStakeCap        *uint256.Int
	MaxStakeCap        *uint256.Int
	ParticipantCeiling uint32
	MinCreatorShare    uint8
	FeeCeilingBps      uint32
}

// unit is one whole token in base units (10^24).
var unit = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(24))

// Unit returns a fresh copy of one whole token in base units.
func Unit() *uint256.Int { return new(uint256.Int).Set(unit) }

// DefaultLimits returns the production bounds.
func DefaultLimits() Limits {
	minReward := new(uint256.Int).Div(unit, uint256.NewInt(10))
	maxReward := new(uint256.Int).Mul(unit, uint256.NewInt(100_000_000))
	return Limits{
		MinOptions:         2,
		MaxOptions:         100,
		MaxLabelLen:        120,
		MaxTitleLen:        120,
		MaxDescriptionLen:  600,
		MaxDuration:        365 * 24 * time.Hour,
		MinReward:          minReward,
		MaxReward:          maxReward,
		MinStakeCap:        uint256.NewInt(1),
		MaxStakeCap:        new(uint256.Int).Set(maxReward),
		ParticipantCeiling: 150,
		MinCreatorShare:    0,
		FeeCeilingBps:      2_000,
	}
}

func validationf(op, format string, args ...any) error {
	return common.Validation(op, format, args...)
}

// ValidateCreate checks every creation bound and returns the participant cap
// to persist, substituting the ceiling when the request leaves it zero.
func (l Limits) ValidateCreate(p CreateParams) (uint32, error) {
	const op = "create"
	if !p.Kind.Valid() {
		return 0, validationf(op, "kind %q must be poll or bounty", p.Kind)
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return 0, validationf(op, "title required")
	}
	if utf8.RuneCountInString(title) > l.MaxTitleLen {
		return 0, validationf(op, "title exceeds %d characters", l.MaxTitleLen)
	}
	if utf8.RuneCountInString(p.Description) > l.MaxDescriptionLen {
		return 0, validationf(op, "description exceeds %d characters", l.MaxDescriptionLen)
	}
	if len(p.Options) < l.MinOptions || len(p.Options) > l.MaxOptions {
		return 0, validationf(op, "option count %d outside [%d, %d]", len(p.Options), l.MinOptions, l.MaxOptions)
	}
	for i, opt := range p.Options {
		label := strings.TrimSpace(opt.Label)
		if label == "" {
			return 0, validationf(op, "option %d label required", i)
		}
		if utf8.RuneCountInString(label) > l.MaxLabelLen {
			return 0, validationf(op, "option %d label exceeds %d characters", i, l.MaxLabelLen)
		}
	}
	if p.Duration == 0 || p.Duration > uint64(l.MaxDuration) {
		return 0, validationf(op, "duration must be within (0, %s]", l.MaxDuration)
	}
	if p.BasePrize != nil && !p.BasePrize.IsZero() {
		if p.BasePrize.Lt(l.MinReward) {
			return 0, validationf(op, "base prize %s below minimum reward %s", p.BasePrize, l.MinReward)
		}
		if p.BasePrize.Gt(l.MaxReward) {
			return 0, validationf(op, "base prize %s above maximum reward %s", p.BasePrize, l.MaxReward)
		}
	}
	if p.MaxStakePerAccount != nil && !p.MaxStakePerAccount.IsZero() {
		if p.MaxStakePerAccount.Lt(l.MinStakeCap) || p.MaxStakePerAccount.Gt(l.MaxStakeCap) {
			return 0, validationf(op, "max stake per account %s outside [%s, %s]", p.MaxStakePerAccount, l.MinStakeCap, l.MaxStakeCap)
		}
	}
	participants := p.MaxParticipants
	if participants == 0 {
		participants = l.ParticipantCeiling
	}
	if participants > l.ParticipantCeiling {
		return 0, validationf(op, "max participants %d above ceiling %d", participants, l.ParticipantCeiling)
	}
	if int(p.CreatorSharePct)+int(p.BackerSharePct) != 100 {
		return 0, validationf(op, "creator share %d and backer share %d must sum to 100", p.CreatorSharePct, p.BackerSharePct)
	}
	if p.CreatorSharePct < l.MinCreatorShare {
		return 0, validationf(op, "creator share %d below minimum %d", p.CreatorSharePct, l.MinCreatorShare)
	}
	return participants, nil
}

// ValidateFee enforces the fee ceiling.
func (l Limits) ValidateFee(bps uint32) error {
	if bps > l.FeeCeilingBps {
		return validationf("set_fee_rate", "fee %d bps above ceiling %d", bps, l.FeeCeilingBps)
	}
	return nil
}

// Validate checks the limits are internally consistent.
func (l Limits) Validate() error {
	const op = "limits"
	switch {
	case l.MinOptions < 2 || l.MaxOptions < l.MinOptions:
		return validationf(op, "option bounds [%d, %d] invalid", l.MinOptions, l.MaxOptions)
	case l.MaxLabelLen <= 0 || l.MaxTitleLen <= 0 || l.MaxDescriptionLen < 0:
		return validationf(op, "text bounds must be positive")
	case l.MaxDuration <= 0:
		return validationf(op, "max duration must be positive")
	case l.MinReward == nil || l.MaxReward == nil || l.MaxReward.Lt(l.MinReward):
		return validationf(op, "reward bounds invalid")
	case l.MinStakeCap == nil || l.MaxStakeCap == nil || l.MaxStakeCap.Lt(l.MinStakeCap):
		return validationf(op, "stake cap bounds invalid")
	case l.ParticipantCeiling == 0:
		return validationf(op, "participant ceiling must be positive")
	case l.MinCreatorShare > 100:
		return validationf(op, "min creator share above 100")
	case l.FeeCeilingBps > 10_000:
		return validationf(op, "fee ceiling above 10000 bps")
	}
	return nil
}
