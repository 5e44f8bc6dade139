package bank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"stakecurate/native/common"
	"stakecurate/native/oracle"
	"stakecurate/storage"
)

func newPricedLedger(t *testing.T, updated time.Time) *Ledger {
	t.Helper()
	source := oracle.NewStaticSource()
	source.Set(oracle.Price{Token: "USDC", USDMicros: 1_000_000, Decimals: 6, Enabled: true, UpdatedAt: updated})
	ledger := NewLedger(storage.NewMemDB())
	ledger.SetOracle(oracle.NewReader(source, time.Hour), DefaultMinDepositUSDMicros)
	return ledger
}

func TestDepositCollectPay(t *testing.T) {
	ledger := newPricedLedger(t, time.Now())
	ctx := context.Background()
	if _, err := ledger.Deposit(ctx, "alice", "usdc", uint256.NewInt(10_000_000), "first"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := ledger.Collect("alice", uint256.NewInt(4_000_000)); err != nil {
		t.Fatalf("collect: %v", err)
	}
	balance, _ := ledger.Balance("alice")
	custody, _ := ledger.Custody()
	if balance.Uint64() != 6_000_000 || custody.Uint64() != 4_000_000 {
		t.Fatalf("unexpected balance %s custody %s", balance, custody)
	}
	if err := ledger.Pay(ctx, "bob", uint256.NewInt(3_000_000)); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := ledger.Pay(ctx, "bob", uint256.NewInt(2_000_000)); !errors.Is(err, errCustodyShort) {
		t.Fatalf("expected custody shortfall, got %v", err)
	}
	bob, _ := ledger.Balance("bob")
	if bob.Uint64() != 3_000_000 {
		t.Fatalf("unexpected bob balance %s", bob)
	}
	if err := ledger.Collect("alice", uint256.NewInt(7_000_000)); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for overdraft, got %v", err)
	}
	deposits, err := ledger.Deposits("alice")
	if err != nil || len(deposits) != 1 || deposits[0].USDMicros.Uint64() != 10_000_000 || deposits[0].Memo != "first" {
		t.Fatalf("unexpected deposits %v (%v)", deposits, err)
	}
}

func TestDepositRejections(t *testing.T) {
	ctx := context.Background()
	ledger := newPricedLedger(t, time.Now())
	if _, err := ledger.Deposit(ctx, "alice", "usdc", uint256.NewInt(4_999_999), ""); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected minimum deposit rejection, got %v", err)
	}
	if _, err := ledger.Deposit(ctx, "alice", "doge", uint256.NewInt(1), ""); !errors.Is(err, common.ErrNotFound) || !errors.Is(err, oracle.ErrUnknownToken) {
		t.Fatalf("expected unknown token, got %v", err)
	}
	stale := newPricedLedger(t, time.Now().Add(-2*time.Hour))
	if _, err := stale.Deposit(ctx, "alice", "usdc", uint256.NewInt(10_000_000), ""); !errors.Is(err, oracle.ErrStalePrice) || !errors.Is(err, common.ErrState) {
		t.Fatalf("expected stale price rejection, got %v", err)
	}
	unpriced := NewLedger(storage.NewMemDB())
	if _, err := unpriced.Deposit(ctx, "alice", "usdc", uint256.NewInt(10_000_000), ""); !errors.Is(err, common.ErrState) {
		t.Fatalf("expected deposits disabled, got %v", err)
	}
	balance, _ := ledger.Balance("alice")
	if !balance.IsZero() {
		t.Fatalf("rejected deposits must not credit, got %s", balance)
	}
}
