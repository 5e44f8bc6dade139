package contest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"

	"stakecurate/storage"
)

func TestLevelDBStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	h := newHarnessWithStore(t, NewStore(db))
	params := defaultParams(40, 25, 3)
	params.IsPublic = false
	params.Options[2].Recipient = "writer"
	c := h.create("creator", params)
	if err := h.engine.WhitelistAdd(context.Background(), "creator", c.ID, "alice"); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	h.stake("alice", c.ID, 2, 7)
	h.now = c.EndsAt
	settlement, _, err := h.engine.Close(context.Background(), "owner", c.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	db.Close()

	reopened, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer reopened.Close()
	store := NewStore(reopened)

	got, ok, err := store.Contest(c.ID)
	if err != nil || !ok {
		t.Fatalf("load contest: %v", err)
	}
	if got.Title != params.Title || got.Options[2].Recipient != "writer" || !got.PayoutDone || got.WinnerIndex != 2 {
		t.Fatalf("unexpected persisted contest %+v", got)
	}
	if got.BasePrize.Cmp(uint256.NewInt(40)) != 0 || !got.Options[2].Staked.Eq(uint256.NewInt(7)) {
		t.Fatalf("amounts not preserved: prize %s staked %s", got.BasePrize, got.Options[2].Staked)
	}
	stored, ok, err := store.Settlement(c.ID)
	if err != nil || !ok {
		t.Fatalf("load settlement: %v", err)
	}
	if stored.Digest != settlement.Digest {
		t.Fatalf("digest changed across reopen")
	}
	recomputed, err := SettlementDigest(stored)
	if err != nil || recomputed != stored.Digest {
		t.Fatalf("stored settlement does not hash to its digest (%v)", err)
	}
	if allowed, err := store.Whitelisted(c.ID, "alice"); err != nil || !allowed {
		t.Fatalf("whitelist lost (%v)", err)
	}
	settings, ok, err := store.Settings()
	if err != nil || !ok || settings.Owner != "owner" {
		t.Fatalf("settings lost: %+v (%v)", settings, err)
	}
	next, err := store.NextContestID()
	if err != nil || next != 2 {
		t.Fatalf("expected next id 2, got %d (%v)", next, err)
	}
}

func TestAccountIndexDoesNotMatchPrefixedAccounts(t *testing.T) {
	store := NewMemoryStore()
	cs := NewChangeset()
	cs.PutStake(&StakeEntry{Account: "al", ContestID: 1, Amount: uint256.NewInt(1)})
	cs.PutStake(&StakeEntry{Account: "alice", ContestID: 1, Amount: uint256.NewInt(2)})
	if err := store.Apply(cs); err != nil {
		t.Fatalf("apply: %v", err)
	}
	stakes, err := store.AccountStakes("al")
	if err != nil || len(stakes) != 1 || stakes[0].Amount.Uint64() != 1 {
		t.Fatalf("unexpected stakes for al: %v (%v)", stakes, err)
	}

	removal := NewChangeset()
	removal.DeleteStake(1, "al")
	if err := store.Apply(removal); err != nil {
		t.Fatalf("apply removal: %v", err)
	}
	if stakes, _ := store.AccountStakes("al"); len(stakes) != 0 {
		t.Fatalf("expected index entry removed, got %v", stakes)
	}
}

func TestRegistryOverlaysStagedWrites(t *testing.T) {
	store := NewMemoryStore()
	seed := NewChangeset()
	seed.PutStake(&StakeEntry{Account: "a", ContestID: 7, Amount: uint256.NewInt(3), Seq: 0})
	seed.PutStake(&StakeEntry{Account: "b", ContestID: 7, Amount: uint256.NewInt(4), Seq: 1})
	if err := store.Apply(seed); err != nil {
		t.Fatalf("apply: %v", err)
	}
	cs := NewChangeset()
	registry := NewRegistry(store, cs, 7)
	if _, err := registry.Withdraw("a"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, ok, _ := registry.Get("a"); ok {
		t.Fatalf("withdrawn stake still visible")
	}
	if err := registry.Put(&StakeEntry{Account: "c", ContestID: 7, Amount: uint256.NewInt(5), Seq: 2}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := registry.Put(&StakeEntry{Account: "d", ContestID: 7, Amount: new(uint256.Int), Seq: 3}); err == nil {
		t.Fatalf("zero stake must be rejected")
	}
	stakers, err := registry.Stakers()
	if err != nil || len(stakers) != 2 || stakers[0].Account != "b" || stakers[1].Account != "c" {
		t.Fatalf("unexpected stakers %v (%v)", stakers, err)
	}
	total, err := registry.Total()
	if err != nil || total.Uint64() != 9 {
		t.Fatalf("unexpected total %v (%v)", total, err)
	}
	if committed, _ := store.Stakes(7); len(committed) != 2 || committed[0].Account != "a" {
		t.Fatalf("staged writes leaked into committed state")
	}
}
