// Package payout turns the final stake totals of a contest into the list of
// transfers owed at closure. Compute is pure: it never touches state and
// never panics, every arithmetic step is overflow checked.
package payout

import (
	"sort"
	"strings"

	"github.com/holiman/uint256"

	"stakecurate/native/common"
)

const (
	// BpsDenominator converts basis points into a ratio.
	BpsDenominator = 10_000
	// PercentDenominator converts share percentages into a ratio.
	PercentDenominator = 100
)

const op = "payout"

// Role tags why a payment is owed.
type Role string

const (
	RoleCreator Role = "creator"
	RoleBacker  Role = "backer"
	RoleRefund  Role = "refund"
)

// Staker is a single stake entry as seen at closure.
type Staker struct {
	Account  string
	Option   uint32
	Amount   *uint256.Int
	StakedAt uint64
}

// Payment is an amount owed to one account. Roles are joined with "+" when the
// same account is owed for more than one reason.
type Payment struct {
	Account string
	Amount  *uint256.Int
	Role    Role
}

// Input captures everything Compute needs about a closed contest.
type Input struct {
	OptionTotals    []*uint256.Int
	WinnerIndex     int
	BasePrize       *uint256.Int
	CreatorSharePct uint8
	BackerSharePct  uint8
	FeeBps          uint32
	// Creator receives refunds when the winning option has no stake.
	Creator string
	// CreatorRecipient receives the creator share when set; Creator otherwise.
	CreatorRecipient string
	Stakers          []Staker
}

// Result is the outcome of Compute. Sum(Payments) + Fee == TotalPool.
type Result struct {
	TotalPool     *uint256.Int
	Fee           *uint256.Int
	Net           *uint256.Int
	CreatorAmount *uint256.Int
	BackerPool    *uint256.Int
	Payments      []Payment
	Refunded      bool
	RemainderTo   string
	Remainder     *uint256.Int
}

func zero() *uint256.Int { return new(uint256.Int) }

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return zero()
	}
	return new(uint256.Int).Set(v)
}

// Winner returns the option with the greatest aggregate stake. Ties resolve to
// the lowest index. An empty slice yields -1.
func Winner(totals []*uint256.Int) int {
	if len(totals) == 0 {
		return -1
	}
	best := 0
	bestTotal := amountOrZero(totals[0])
	for i := 1; i < len(totals); i++ {
		candidate := amountOrZero(totals[i])
		if candidate.Gt(bestTotal) {
			best = i
			bestTotal = candidate
		}
	}
	return best
}

// Fee computes total * bps / 10000 with checked multiplication.
func Fee(total *uint256.Int, bps uint32) (*uint256.Int, error) {
	if bps > BpsDenominator {
		return nil, common.Computation(op, "fee rate %d bps exceeds %d", bps, BpsDenominator)
	}
	product, overflow := new(uint256.Int).MulOverflow(amountOrZero(total), uint256.NewInt(uint64(bps)))
	if overflow {
		return nil, common.Computation(op, "fee multiplication overflows 256 bits")
	}
	return product.Div(product, uint256.NewInt(BpsDenominator)), nil
}

func validate(in Input) error {
	if len(in.OptionTotals) == 0 {
		return common.Computation(op, "no option totals supplied")
	}
	if in.WinnerIndex < 0 || in.WinnerIndex >= len(in.OptionTotals) {
		return common.Computation(op, "winner index %d out of range [0, %d)", in.WinnerIndex, len(in.OptionTotals))
	}
	if int(in.CreatorSharePct)+int(in.BackerSharePct) != PercentDenominator {
		return common.Computation(op, "shares %d+%d do not sum to 100", in.CreatorSharePct, in.BackerSharePct)
	}
	if strings.TrimSpace(in.Creator) == "" {
		return common.Computation(op, "creator account required")
	}
	return nil
}

type backer struct {
	account  string
	amount   *uint256.Int
	stakedAt uint64
	order    int
}

// winningBackers aggregates stakes on the winning option per account, keeping
// first-appearance order. The aggregate must match the option total exactly.
func winningBackers(in Input, winnerTotal *uint256.Int) ([]*backer, error) {
	index := make(map[string]*backer)
	ordered := make([]*backer, 0)
	sum := zero()
	for _, s := range in.Stakers {
		if int(s.Option) != in.WinnerIndex || s.Amount == nil || s.Amount.IsZero() {
			continue
		}
		if _, overflow := sum.AddOverflow(sum, s.Amount); overflow {
			return nil, common.Computation(op, "winning stake sum overflows")
		}
		entry, ok := index[s.Account]
		if !ok {
			entry = &backer{account: s.Account, amount: zero(), stakedAt: s.StakedAt, order: len(ordered)}
			index[s.Account] = entry
			ordered = append(ordered, entry)
		}
		entry.amount.Add(entry.amount, s.Amount)
		if s.StakedAt < entry.stakedAt {
			entry.stakedAt = s.StakedAt
		}
	}
	if !sum.Eq(winnerTotal) {
		return nil, common.Computation(op, "winning stakes sum %s does not match option total %s", sum, winnerTotal)
	}
	return ordered, nil
}

// remainderRecipient picks the backer with the largest stake; ties go to the
// earliest stake and then to the lexicographically smallest account.
func remainderRecipient(backers []*backer) *backer {
	if len(backers) == 0 {
		return nil
	}
	sorted := append([]*backer(nil), backers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].amount.Cmp(sorted[j].amount); c != 0 {
			return c > 0
		}
		if sorted[i].stakedAt != sorted[j].stakedAt {
			return sorted[i].stakedAt < sorted[j].stakedAt
		}
		return sorted[i].account < sorted[j].account
	})
	return sorted[0]
}

type ledger struct {
	order    []string
	payments map[string]*Payment
}

func newLedger() *ledger { return &ledger{payments: make(map[string]*Payment)} }

func (l *ledger) credit(account string, amount *uint256.Int, role Role) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	existing, ok := l.payments[account]
	if !ok {
		l.payments[account] = &Payment{Account: account, Amount: new(uint256.Int).Set(amount), Role: role}
		l.order = append(l.order, account)
		return nil
	}
	if _, overflow := existing.Amount.AddOverflow(existing.Amount, amount); overflow {
		return common.Computation(op, "payment to %s overflows", account)
	}
	if !strings.Contains(string(existing.Role), string(role)) {
		existing.Role = existing.Role + "+" + role
	}
	return nil
}

func (l *ledger) list() []Payment {
	out := make([]Payment, 0, len(l.order))
	for _, account := range l.order {
		out = append(out, *l.payments[account])
	}
	return out
}

// Compute produces the fee and the deduplicated payment list for a contest.
func Compute(in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	total := amountOrZero(in.BasePrize)
	for i, t := range in.OptionTotals {
		if t == nil {
			continue
		}
		if _, overflow := total.AddOverflow(total, t); overflow {
			return nil, common.Computation(op, "total pool overflows at option %d", i)
		}
	}
	fee, err := Fee(total, in.FeeBps)
	if err != nil {
		return nil, err
	}
	net := new(uint256.Int).Sub(total, fee)
	res := &Result{
		TotalPool:     total,
		Fee:           fee,
		Net:           net,
		CreatorAmount: zero(),
		BackerPool:    zero(),
		Remainder:     zero(),
	}
	winnerTotal := amountOrZero(in.OptionTotals[in.WinnerIndex])
	payments := newLedger()
	if winnerTotal.IsZero() {
		res.Refunded = true
		res.CreatorAmount = new(uint256.Int).Set(net)
		if err := payments.credit(in.Creator, net, RoleRefund); err != nil {
			return nil, err
		}
		res.Payments = payments.list()
		return res, nil
	}

	backers, err := winningBackers(in, winnerTotal)
	if err != nil {
		return nil, err
	}
	creatorAmount, overflow := new(uint256.Int).MulOverflow(net, uint256.NewInt(uint64(in.CreatorSharePct)))
	if overflow {
		return nil, common.Computation(op, "creator share multiplication overflows")
	}
	creatorAmount.Div(creatorAmount, uint256.NewInt(PercentDenominator))
	backerPool := new(uint256.Int).Sub(net, creatorAmount)
	res.CreatorAmount = creatorAmount
	res.BackerPool = backerPool

	recipient := strings.TrimSpace(in.CreatorRecipient)
	if recipient == "" {
		recipient = in.Creator
	}
	if err := payments.credit(recipient, creatorAmount, RoleCreator); err != nil {
		return nil, err
	}

	shares := make([]*uint256.Int, len(backers))
	distributed := zero()
	for i, b := range backers {
		share, overflow := new(uint256.Int).MulDivOverflow(backerPool, b.amount, winnerTotal)
		if overflow {
			return nil, common.Computation(op, "backer share for %s overflows", b.account)
		}
		shares[i] = share
		distributed.Add(distributed, share)
	}
	remainder, underflow := new(uint256.Int).SubOverflow(backerPool, distributed)
	if underflow {
		return nil, common.Computation(op, "backer shares exceed backer pool")
	}
	if !remainder.IsZero() {
		target := remainderRecipient(backers)
		shares[target.order].Add(shares[target.order], remainder)
		res.RemainderTo = target.account
		res.Remainder = remainder
	}
	for i, b := range backers {
		if err := payments.credit(b.account, shares[i], RoleBacker); err != nil {
			return nil, err
		}
	}
	res.Payments = payments.list()

	check := new(uint256.Int).Set(fee)
	for _, p := range res.Payments {
		if _, overflow := check.AddOverflow(check, p.Amount); overflow {
			return nil, common.Computation(op, "payment sum overflows")
		}
	}
	if !check.Eq(total) {
		return nil, common.Computation(op, "distributed %s does not equal pool %s", check, total)
	}
	return res, nil
}
