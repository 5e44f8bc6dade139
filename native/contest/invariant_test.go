package contest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"stakecurate/native/common"
)

// checkLedger asserts the aggregate invariants of an open or closed contest.
func checkLedger(t *rapid.T, engine *Engine, id uint64) {
	ctx := context.Background()
	c, err := engine.GetContest(ctx, id)
	if err != nil {
		t.Fatalf("get contest: %v", err)
	}
	entries, err := engine.Participants(ctx, id)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	optionSum := new(uint256.Int)
	for _, opt := range c.Options {
		optionSum.Add(optionSum, opt.Staked)
	}
	entrySum := new(uint256.Int)
	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.Amount.IsZero() {
			t.Fatalf("zero stake stored for %s", entry.Account)
		}
		if seen[entry.Account] {
			t.Fatalf("duplicate stake entry for %s", entry.Account)
		}
		seen[entry.Account] = true
		entrySum.Add(entrySum, entry.Amount)
	}
	if !optionSum.Eq(entrySum) {
		t.Fatalf("option totals %s != stake entries %s", optionSum, entrySum)
	}
	if int(c.TotalParticipants) != len(entries) {
		t.Fatalf("participants %d != entries %d", c.TotalParticipants, len(entries))
	}
	if c.PayoutDone {
		if !c.IsClosed || !c.Escrowed.IsZero() {
			t.Fatalf("payout done with escrow %s closed=%v", c.Escrowed, c.IsClosed)
		}
		return
	}
	expected := new(uint256.Int).Add(c.BasePrize, optionSum)
	if !c.Escrowed.Eq(expected) {
		t.Fatalf("escrow %s != base prize + stakes %s", c.Escrowed, expected)
	}
}

func TestLedgerInvariantsHoldUnderRandomOperations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		now := uint64(1_000)
		paid := new(uint256.Int)
		engine := NewEngine()
		engine.SetState(NewMemoryStore())
		engine.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
		engine.SetNowFunc(func() uint64 { return now })
		engine.SetPayer(PayerFunc(func(_ context.Context, _ string, amount *uint256.Int) error {
			paid.Add(paid, amount)
			return nil
		}))
		if err := engine.SetLimits(testLimits()); err != nil {
			t.Fatalf("limits: %v", err)
		}
		fee := rapid.Uint32Range(0, 2_000).Draw(t, "feeBps")
		if _, err := engine.Bootstrap(Settings{Owner: "owner", PlatformAccount: "platform", FeeBps: fee}); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}

		options := rapid.IntRange(2, 6).Draw(t, "options")
		creatorPct := uint8(rapid.IntRange(0, 100).Draw(t, "creatorPct"))
		prize := rapid.Uint64Range(0, 1_000_000).Draw(t, "prize")
		params := defaultParams(prize, creatorPct, options)
		params.AllowCreatorStake = true
		c, err := engine.Create(context.Background(), "creator", params)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		accounts := []string{"creator", "a", "b", "c", "d"}
		steps := rapid.IntRange(0, 40).Draw(t, "steps")
		var escrowIn uint64 = prize
		for i := 0; i < steps; i++ {
			account := rapid.SampledFrom(accounts).Draw(t, "account")
			option := uint32(rapid.IntRange(0, options).Draw(t, "option"))
			amount := rapid.Uint64Range(0, 1_000_000).Draw(t, "amount")
			_, err := engine.Stake(context.Background(), account, c.ID, option, uint256.NewInt(amount))
			switch {
			case err == nil:
				escrowIn += amount
			case int(option) == options:
				if !errors.Is(err, common.ErrNotFound) {
					t.Fatalf("expected not found for option %d, got %v", option, err)
				}
			case amount == 0:
				if !errors.Is(err, common.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
			default:
				t.Fatalf("unexpected stake error: %v", err)
			}
			now++
			checkLedger(t, engine, c.ID)
		}

		now = c.EndsAt + 1
		settlement, report, err := engine.Close(context.Background(), "creator", c.ID)
		if err != nil {
			t.Fatalf("close: %v", err)
		}
		if report.Failed != 0 {
			t.Fatalf("unexpected failed transfers %+v", report)
		}
		checkLedger(t, engine, c.ID)
		sum := new(uint256.Int).Set(settlement.Fee)
		for _, p := range settlement.Payments {
			sum.Add(sum, p.Amount)
		}
		if !sum.Eq(settlement.TotalPool) {
			t.Fatalf("payments plus fee %s != pool %s", sum, settlement.TotalPool)
		}
		// every unit that entered the ledger left it: refunds, fee and payments.
		if paid.Uint64() != escrowIn {
			t.Fatalf("paid out %s, took in %d", paid, escrowIn)
		}
	})
}
