// Package contest implements the staking ledger behind curated polls and
// bounties: contest lifecycle, stake accounting and closure with settlement.
package contest

import (
	"strings"

	"github.com/holiman/uint256"
)

// ModuleName identifies the ledger for pause checks and logging.
const ModuleName = "contest"

// Kind labels a contest. Polls and bounties settle identically.
type Kind string

const (
	KindPoll   Kind = "poll"
	KindBounty Kind = "bounty"
)

// Valid reports whether the kind is one of the known labels.
func (k Kind) Valid() bool {
	return k == KindPoll || k == KindBounty
}

// Status is the lifecycle position of a contest at a given instant.
type Status string

const (
	StatusOpen           Status = "open"
	StatusExpired        Status = "expired"
	StatusClosedPaid     Status = "closed_paid"
	StatusClosedRefunded Status = "closed_refunded"
)

// Outcome records how a settlement distributed the pool.
type Outcome string

const (
	OutcomePaid     Outcome = "paid"
	OutcomeRefunded Outcome = "refunded"
	OutcomeEmpty    Outcome = "empty"
)

// Option is one choice of a poll or one submission of a bounty.
type Option struct {
	Label     string       `json:"label"`
	Recipient string       `json:"recipient,omitempty"`
	Staked    *uint256.Int `json:"staked"`
}

// Contest is the persisted record of a poll or bounty.
type Contest struct {
	ID                 uint64       `json:"id"`
	Kind               Kind         `json:"kind"`
	Creator            string       `json:"creator"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Options            []Option     `json:"options"`
	BasePrize          *uint256.Int `json:"basePrize"`
	CreatorSharePct    uint8        `json:"creatorSharePct"`
	BackerSharePct     uint8        `json:"backerSharePct"`
	IsPublic           bool         `json:"isPublic"`
	AllowCreatorStake  bool         `json:"allowCreatorStake"`
	MaxStakePerAccount *uint256.Int `json:"maxStakePerAccount"`
	MaxParticipants    uint32       `json:"maxParticipants"`
	CreatedAt          uint64       `json:"createdAt"`
	EndsAt             uint64       `json:"endsAt"`
	Escrowed           *uint256.Int `json:"escrowed"`
	IsClosed           bool         `json:"isClosed"`
	PayoutDone         bool         `json:"payoutDone"`
	HasWinner          bool         `json:"hasWinner"`
	WinnerIndex        uint32       `json:"winnerIndex"`
	TotalParticipants  uint32       `json:"totalParticipants"`
	Refunded           bool         `json:"refunded"`
}

// Status derives the lifecycle state at now (nanoseconds).
func (c *Contest) Status(now uint64) Status {
	switch {
	case c.IsClosed && c.Refunded:
		return StatusClosedRefunded
	case c.IsClosed:
		return StatusClosedPaid
	case now >= c.EndsAt:
		return StatusExpired
	default:
		return StatusOpen
	}
}

// Totals returns a copy of the per-option aggregate stakes.
func (c *Contest) Totals() []*uint256.Int {
	out := make([]*uint256.Int, len(c.Options))
	for i, opt := range c.Options {
		out[i] = amountOrZero(opt.Staked)
	}
	return out
}

// Clone returns a deep copy so changesets never alias committed records.
func (c *Contest) Clone() *Contest {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Options = make([]Option, len(c.Options))
	for i, opt := range c.Options {
		clone.Options[i] = Option{Label: opt.Label, Recipient: opt.Recipient, Staked: amountOrZero(opt.Staked)}
	}
	clone.BasePrize = amountOrZero(c.BasePrize)
	clone.MaxStakePerAccount = amountOrZero(c.MaxStakePerAccount)
	clone.Escrowed = amountOrZero(c.Escrowed)
	return &clone
}

// StakeEntry is the single stake an account holds in a contest.
type StakeEntry struct {
	Account   string       `json:"account"`
	ContestID uint64       `json:"contestId"`
	Option    uint32       `json:"option"`
	Amount    *uint256.Int `json:"amount"`
	StakedAt  uint64       `json:"stakedAt"`
	// Seq is the participant ordinal assigned on the first stake. Switching
	// options keeps it so enumeration stays in first-stake order.
	Seq uint32 `json:"seq"`
}

// Clone returns a deep copy of the entry.
func (s *StakeEntry) Clone() *StakeEntry {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Amount = amountOrZero(s.Amount)
	return &clone
}

// Settings is the administrative record shared by every contest.
type Settings struct {
	Owner           string   `json:"owner"`
	Agents          []string `json:"agents"`
	PlatformAccount string   `json:"platformAccount"`
	FeeBps          uint32   `json:"feeBps"`
	Paused          bool     `json:"paused"`
}

// IsPaused satisfies common.PauseView. The ledger is paused as a whole.
func (s *Settings) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s.Paused && strings.EqualFold(module, ModuleName)
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return &Settings{}
	}
	clone := *s
	clone.Agents = append([]string(nil), s.Agents...)
	return &clone
}

// SettlementPayment is one transfer owed at closure.
type SettlementPayment struct {
	Account string       `json:"account"`
	Amount  *uint256.Int `json:"amount"`
	Role    string       `json:"role"`
}

// Settlement is persisted atomically with the closed contest.
type Settlement struct {
	ContestID       uint64              `json:"contestId"`
	Outcome         Outcome             `json:"outcome"`
	WinnerIndex     uint32              `json:"winnerIndex"`
	HasWinner       bool                `json:"hasWinner"`
	TotalPool       *uint256.Int        `json:"totalPool"`
	Fee             *uint256.Int        `json:"fee"`
	PlatformAccount string              `json:"platformAccount"`
	Payments        []SettlementPayment `json:"payments"`
	SettledAt       uint64              `json:"settledAt"`
	Digest          string              `json:"digest"`
}

// OptionSpec describes an option supplied at creation.
type OptionSpec struct {
	Label     string `json:"label"`
	Recipient string `json:"recipient,omitempty"`
}

// CreateParams is the request to open a new contest.
type CreateParams struct {
	Kind               Kind
	Title              string
	Description        string
	Options            []OptionSpec
	Duration           uint64
	BasePrize          *uint256.Int
	CreatorSharePct    uint8
	BackerSharePct     uint8
	IsPublic           bool
	AllowCreatorStake  bool
	MaxStakePerAccount *uint256.Int
	MaxParticipants    uint32
	// Attached is the value the caller sent along with the request.
	Attached *uint256.Int
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
