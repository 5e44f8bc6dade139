package contest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/holiman/uint256"

	"stakecurate/core/events"
	"stakecurate/native/common"
)

type transfer struct {
	account string
	amount  uint64
}

type harness struct {
	t         *testing.T
	engine    *Engine
	store     *Store
	now       uint64
	transfers []transfer
	failFor   map[string]error
	onPay     func(account string)
	recorder  *events.Recorder
}

func testLimits() Limits {
	limits := DefaultLimits()
	limits.MinReward = uint256.NewInt(1)
	return limits
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, store *Store) *harness {
	t.Helper()
	h := &harness{t: t, store: store, now: 1_000, failFor: make(map[string]error), recorder: &events.Recorder{}}
	engine := NewEngine()
	engine.SetState(store)
	engine.SetPayer(PayerFunc(h.pay))
	engine.SetEmitter(h.recorder)
	engine.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	engine.SetNowFunc(func() uint64 { return h.now })
	if err := engine.SetLimits(testLimits()); err != nil {
		t.Fatalf("set limits: %v", err)
	}
	if _, err := engine.Bootstrap(Settings{Owner: "owner", PlatformAccount: "platform"}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	h.engine = engine
	return h
}

func (h *harness) pay(_ context.Context, account string, amount *uint256.Int) error {
	if h.onPay != nil {
		h.onPay(account)
	}
	if err := h.failFor[account]; err != nil {
		return err
	}
	h.transfers = append(h.transfers, transfer{account: account, amount: amount.Uint64()})
	return nil
}

func (h *harness) paid() map[string]uint64 {
	out := make(map[string]uint64)
	for _, tr := range h.transfers {
		out[tr.account] += tr.amount
	}
	return out
}

func defaultParams(prize uint64, creatorPct uint8, options int) CreateParams {
	specs := make([]OptionSpec, options)
	for i := range specs {
		specs[i] = OptionSpec{Label: fmt.Sprintf("option %d", i)}
	}
	return CreateParams{
		Kind:            KindPoll,
		Title:           "Best post of the week",
		Options:         specs,
		Duration:        100,
		BasePrize:       uint256.NewInt(prize),
		CreatorSharePct: creatorPct,
		BackerSharePct:  100 - creatorPct,
		IsPublic:        true,
		Attached:        uint256.NewInt(prize),
	}
}

func (h *harness) create(creator string, params CreateParams) *Contest {
	h.t.Helper()
	c, err := h.engine.Create(context.Background(), creator, params)
	if err != nil {
		h.t.Fatalf("create: %v", err)
	}
	return c
}

func (h *harness) stake(account string, id uint64, option uint32, amount uint64) *StakeEntry {
	h.t.Helper()
	entry, err := h.engine.Stake(context.Background(), account, id, option, uint256.NewInt(amount))
	if err != nil {
		h.t.Fatalf("stake %s: %v", account, err)
	}
	return entry
}

func (h *harness) contest(id uint64) *Contest {
	h.t.Helper()
	c, err := h.engine.GetContest(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get contest: %v", err)
	}
	return c
}

func expectKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func TestCreateAssignsSequentialIDsAndEscrow(t *testing.T) {
	h := newHarness(t)
	first := h.create("alice", defaultParams(10, 50, 2))
	second := h.create("bob", defaultParams(0, 0, 3))
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.Escrowed.Uint64() != 10 || !second.Escrowed.IsZero() {
		t.Fatalf("unexpected escrow %s / %s", first.Escrowed, second.Escrowed)
	}
	if first.EndsAt != 1_100 || first.MaxParticipants != 150 {
		t.Fatalf("unexpected end %d or participant cap %d", first.EndsAt, first.MaxParticipants)
	}
	for _, opt := range second.Options {
		if !opt.Staked.IsZero() {
			t.Fatalf("new options must start at zero")
		}
	}
	if got := h.recorder.Types(); len(got) != 2 || got[0] != EventTypeContestCreated {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestCreateChargesStorageAndRefundsExcess(t *testing.T) {
	h := newHarness(t)
	h.engine.SetStorageCosts(StorageCosts{Base: uint256.NewInt(2), PerOption: uint256.NewInt(1)})
	params := defaultParams(10, 50, 2)
	params.Attached = uint256.NewInt(20)
	h.create("alice", params)
	paid := h.paid()
	if paid["alice"] != 6 || paid["platform"] != 4 {
		t.Fatalf("unexpected transfers %v", paid)
	}

	short := defaultParams(10, 50, 2)
	short.Attached = uint256.NewInt(13)
	_, err := h.engine.Create(context.Background(), "alice", short)
	expectKind(t, err, common.ErrValidation)
}

func TestCreateBoundsRejectionMutatesNothing(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.SetLimits(DefaultLimits()); err != nil {
		t.Fatalf("set limits: %v", err)
	}
	unit := Unit()
	cases := map[string]func(*CreateParams){
		"too many options": func(p *CreateParams) { p.Options = defaultParams(0, 0, 101).Options },
		"one option":       func(p *CreateParams) { p.Options = p.Options[:1] },
		"400 days":         func(p *CreateParams) { p.Duration = uint64(400 * 24 * 3600 * 1e9) },
		"reward below min": func(p *CreateParams) { p.BasePrize = uint256.NewInt(1); p.Attached = uint256.NewInt(1) },
		"shares":           func(p *CreateParams) { p.BackerSharePct = 10 },
		"empty title":      func(p *CreateParams) { p.Title = "  " },
		"blank label":      func(p *CreateParams) { p.Options[0].Label = "" },
		"kind":             func(p *CreateParams) { p.Kind = "raffle" },
		"participants":     func(p *CreateParams) { p.MaxParticipants = 151 },
	}
	for name, mutate := range cases {
		params := defaultParams(0, 50, 2)
		params.BasePrize = new(uint256.Int).Set(unit)
		params.Attached = new(uint256.Int).Set(unit)
		mutate(&params)
		_, err := h.engine.Create(context.Background(), "alice", params)
		if !errors.Is(err, common.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	next, err := h.store.NextContestID()
	if err != nil || next != 1 {
		t.Fatalf("expected no id consumed, got %d (%v)", next, err)
	}
	all, err := h.engine.ListContests(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("expected no contests, got %d (%v)", len(all), err)
	}
	if len(h.transfers) != 0 {
		t.Fatalf("rejected creates must not transfer")
	}
}

func TestStakeSwitchMovesTotalsAndRefunds(t *testing.T) {
	h := newHarness(t)
	c := h.create("creator", defaultParams(0, 0, 2))
	first := h.stake("alice", c.ID, 0, 5)
	h.now++
	second := h.stake("alice", c.ID, 1, 5)

	got := h.contest(c.ID)
	if !got.Options[0].Staked.IsZero() || got.Options[1].Staked.Uint64() != 5 {
		t.Fatalf("unexpected totals %s / %s", got.Options[0].Staked, got.Options[1].Staked)
	}
	if got.TotalParticipants != 1 || got.Escrowed.Uint64() != 5 {
		t.Fatalf("unexpected participants %d escrow %s", got.TotalParticipants, got.Escrowed)
	}
	if second.Seq != first.Seq || second.StakedAt != 1_001 {
		t.Fatalf("switch must keep ordinal and refresh time: %+v", second)
	}
	if h.paid()["alice"] != 5 {
		t.Fatalf("expected prior stake refunded, got %v", h.paid())
	}
	entries, err := h.engine.Participants(context.Background(), c.ID)
	if err != nil || len(entries) != 1 || entries[0].Option != 1 {
		t.Fatalf("expected single entry on option 1, got %v (%v)", entries, err)
	}
}

func TestStakeErrorOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	params := defaultParams(0, 0, 2)
	params.MaxStakePerAccount = uint256.NewInt(50)
	params.MaxParticipants = 1
	c := h.create("creator", params)
	private := defaultParams(0, 0, 2)
	private.IsPublic = false
	p := h.create("creator", private)

	_, err := h.engine.Stake(ctx, "alice", 99, 0, uint256.NewInt(1))
	expectKind(t, err, common.ErrNotFound)
	_, err = h.engine.Stake(ctx, "alice", c.ID, 2, uint256.NewInt(1))
	expectKind(t, err, common.ErrNotFound)
	_, err = h.engine.Stake(ctx, "creator", c.ID, 0, uint256.NewInt(1))
	expectKind(t, err, common.ErrAuthorization)
	_, err = h.engine.Stake(ctx, "alice", p.ID, 0, uint256.NewInt(1))
	expectKind(t, err, common.ErrAuthorization)
	_, err = h.engine.Stake(ctx, "", c.ID, 0, uint256.NewInt(1))
	expectKind(t, err, common.ErrAuthorization)
	_, err = h.engine.Stake(ctx, "alice", c.ID, 0, uint256.NewInt(0))
	expectKind(t, err, common.ErrValidation)
	_, err = h.engine.Stake(ctx, "alice", c.ID, 0, uint256.NewInt(51))
	expectKind(t, err, common.ErrValidation)

	h.stake("alice", c.ID, 0, 50)
	_, err = h.engine.Stake(ctx, "bob", c.ID, 0, uint256.NewInt(1))
	expectKind(t, err, common.ErrValidation)

	if _, err := h.engine.Pause(ctx, "owner"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	_, err = h.engine.Stake(ctx, "alice", 99, 0, uint256.NewInt(1))
	expectKind(t, err, common.ErrState)
	if !common.IsPaused(err) {
		t.Fatalf("expected pause error, got %v", err)
	}
	if _, err := h.engine.Resume(ctx, "owner"); err != nil {
		t.Fatalf("resume: %v", err)
	}

	h.now = c.EndsAt
	_, err = h.engine.Stake(ctx, "alice", c.ID, 1, uint256.NewInt(1))
	expectKind(t, err, common.ErrState)
}

func TestWhitelistControlsPrivateStaking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	params := defaultParams(0, 0, 2)
	params.IsPublic = false
	c := h.create("creator", params)

	expectKind(t, h.engine.WhitelistAdd(ctx, "mallory", c.ID, "alice"), common.ErrAuthorization)
	expectKind(t, h.engine.WhitelistAdd(ctx, "creator", 42, "alice"), common.ErrNotFound)
	expectKind(t, h.engine.WhitelistAdd(ctx, "creator", c.ID, " "), common.ErrValidation)
	for i := 0; i < 2; i++ {
		if err := h.engine.WhitelistAdd(ctx, "creator", c.ID, "alice"); err != nil {
			t.Fatalf("whitelist add: %v", err)
		}
	}
	if ok, err := h.engine.IsWhitelisted(ctx, c.ID, "alice"); err != nil || !ok {
		t.Fatalf("expected alice whitelisted (%v)", err)
	}
	h.stake("alice", c.ID, 0, 3)
	if err := h.engine.WhitelistRemove(ctx, "creator", c.ID, "alice"); err != nil {
		t.Fatalf("whitelist remove: %v", err)
	}
	_, err := h.engine.Stake(ctx, "alice", c.ID, 1, uint256.NewInt(3))
	expectKind(t, err, common.ErrAuthorization)
	whitelistEvents := 0
	for _, typ := range h.recorder.Types() {
		if typ == EventTypeWhitelistUpdated {
			whitelistEvents++
		}
	}
	if whitelistEvents != 2 {
		t.Fatalf("idempotent add must emit once, got %d whitelist events", whitelistEvents)
	}
}

func TestCloseZeroEngagementRefundsCreator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.engine.SetFeeRate(ctx, "owner", 500); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	c := h.create("alice", defaultParams(100, 90, 2))
	h.now = c.EndsAt
	settlement, report, err := h.engine.Close(ctx, "alice", c.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if settlement.Outcome != OutcomeRefunded || settlement.HasWinner {
		t.Fatalf("expected refund without winner, got %+v", settlement)
	}
	if paid := h.paid(); paid["alice"] != 95 || paid["platform"] != 5 {
		t.Fatalf("unexpected transfers %v", paid)
	}
	if report.Failed != 0 || len(report.Transfers) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	got := h.contest(c.ID)
	if !got.IsClosed || !got.PayoutDone || !got.Escrowed.IsZero() {
		t.Fatalf("closure not committed: %+v", got)
	}
	if got.Status(h.now) != StatusClosedRefunded {
		t.Fatalf("unexpected status %s", got.Status(h.now))
	}
}

func TestCloseRejectsDriftedOptionTotals(t *testing.T) {
	h := newHarness(t)
	c := h.create("alice", defaultParams(100, 50, 2))
	h.stake("bob", c.ID, 0, 40)
	h.stake("carol", c.ID, 1, 20)

	drifted := h.contest(c.ID)
	drifted.Options[1].Staked = uint256.NewInt(25)
	drifted.Escrowed = uint256.NewInt(165)
	cs := NewChangeset()
	cs.PutContest(drifted)
	if err := h.store.Apply(cs); err != nil {
		t.Fatalf("apply: %v", err)
	}

	h.now = c.EndsAt
	_, _, err := h.engine.Close(context.Background(), "alice", c.ID)
	expectKind(t, err, common.ErrComputation)
	if got := h.contest(c.ID); got.IsClosed || len(h.transfers) != 0 {
		t.Fatalf("close should not commit on drift: closed=%v transfers=%v", got.IsClosed, h.transfers)
	}
}

func TestCloseProportionalSplit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.create("creator", defaultParams(15, 90, 2))
	h.stake("a", c.ID, 0, 10)
	h.stake("b", c.ID, 0, 5)
	h.now = c.EndsAt

	settlement, _, err := h.engine.Close(ctx, "creator", c.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	want := map[string]uint64{"creator": 27, "a": 2, "b": 1}
	got := h.paid()
	for account, amount := range want {
		if got[account] != amount {
			t.Fatalf("expected %s to receive %d, got %v", account, amount, got)
		}
	}
	if settlement.Outcome != OutcomePaid || !settlement.HasWinner || settlement.WinnerIndex != 0 {
		t.Fatalf("unexpected settlement %+v", settlement)
	}
	digest, err := SettlementDigest(settlement)
	if err != nil || digest != settlement.Digest || len(digest) != 64 {
		t.Fatalf("digest mismatch %q vs %q (%v)", digest, settlement.Digest, err)
	}
	stored, err := h.engine.GetSettlement(ctx, c.ID)
	if err != nil || stored.Digest != settlement.Digest {
		t.Fatalf("stored settlement mismatch (%v)", err)
	}
	if h.contest(c.ID).Status(h.now) != StatusClosedPaid {
		t.Fatalf("expected closed_paid")
	}
}

func TestCloseTieBreaksToLowestIndex(t *testing.T) {
	h := newHarness(t)
	c := h.create("creator", defaultParams(0, 0, 3))
	h.stake("late", c.ID, 2, 5)
	h.stake("early", c.ID, 1, 5)
	h.now = c.EndsAt
	settlement, _, err := h.engine.Close(context.Background(), "owner", c.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if settlement.WinnerIndex != 1 {
		t.Fatalf("expected option 1 to win the tie, got %d", settlement.WinnerIndex)
	}
	if h.paid()["early"] != 10 {
		t.Fatalf("expected early backer to take the pool, got %v", h.paid())
	}
}

func TestCloseCreatorShareGoesToRecipient(t *testing.T) {
	h := newHarness(t)
	params := defaultParams(10, 50, 2)
	params.Kind = KindBounty
	params.Options[1].Recipient = "submitter"
	c := h.create("creator", params)
	h.stake("backer", c.ID, 1, 10)
	h.now = c.EndsAt
	if _, _, err := h.engine.Close(context.Background(), "creator", c.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	paid := h.paid()
	if paid["submitter"] != 10 || paid["backer"] != 10 || paid["creator"] != 0 {
		t.Fatalf("unexpected transfers %v", paid)
	}
}

func TestClosePrematureFailsForCreatorAndOwner(t *testing.T) {
	h := newHarness(t)
	c := h.create("creator", defaultParams(5, 50, 2))
	for _, caller := range []string{"creator", "owner"} {
		_, _, err := h.engine.Close(context.Background(), caller, c.ID)
		expectKind(t, err, common.ErrState)
	}
	h.now = c.EndsAt
	_, _, err := h.engine.Close(context.Background(), "stranger", c.ID)
	expectKind(t, err, common.ErrAuthorization)
	if h.contest(c.ID).IsClosed {
		t.Fatalf("failed closes must not mutate")
	}
}

func TestDoubleCloseDispatchesOnce(t *testing.T) {
	h := newHarness(t)
	c := h.create("creator", defaultParams(20, 50, 2))
	h.stake("alice", c.ID, 0, 4)
	h.now = c.EndsAt
	if _, _, err := h.engine.Close(context.Background(), "creator", c.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	dispatched := len(h.transfers)
	_, _, err := h.engine.Close(context.Background(), "owner", c.ID)
	expectKind(t, err, common.ErrState)
	if len(h.transfers) != dispatched {
		t.Fatalf("second close dispatched %d extra transfers", len(h.transfers)-dispatched)
	}
}

func TestReentrantCloseFromTransferCallback(t *testing.T) {
	h := newHarness(t)
	c := h.create("creator", defaultParams(20, 50, 2))
	h.stake("alice", c.ID, 0, 4)
	h.now = c.EndsAt

	var nested []error
	h.onPay = func(string) {
		_, _, err := h.engine.Close(context.Background(), "creator", c.ID)
		nested = append(nested, err)
	}
	if _, _, err := h.engine.Close(context.Background(), "creator", c.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(nested) == 0 {
		t.Fatalf("expected the payer to be invoked")
	}
	for _, err := range nested {
		expectKind(t, err, common.ErrState)
	}
	if paid := h.paid(); paid["creator"] != 12 || paid["alice"] != 12 {
		t.Fatalf("expected a single dispatch set, got %v", paid)
	}
}

func TestFailedTransferIsReportedNotReversed(t *testing.T) {
	h := newHarness(t)
	c := h.create("creator", defaultParams(10, 50, 2))
	h.stake("alice", c.ID, 0, 10)
	h.now = c.EndsAt
	h.failFor["alice"] = errors.New("account frozen")

	_, report, err := h.engine.Close(context.Background(), "creator", c.ID)
	if err != nil {
		t.Fatalf("close must succeed despite transfer failure: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected one failed transfer, got %+v", report)
	}
	var failed *TransferResult
	for i := range report.Transfers {
		if report.Transfers[i].Error != "" {
			failed = &report.Transfers[i]
		}
	}
	if failed == nil || failed.Account != "alice" || failed.Reason != "backer" {
		t.Fatalf("unexpected failed transfer %+v", failed)
	}
	if !h.contest(c.ID).PayoutDone {
		t.Fatalf("payout flag must stay committed")
	}
	last := h.recorder.Types()[len(h.recorder.Types())-1]
	if last != EventTypeTransferFailed {
		t.Fatalf("expected transfer failure event, got %s", last)
	}
}

func TestPauseBlocksCreateAndStakeButNotClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.create("creator", defaultParams(10, 50, 2))
	h.stake("alice", c.ID, 0, 1)

	_, err := h.engine.Pause(ctx, "creator")
	expectKind(t, err, common.ErrAuthorization)
	if _, err := h.engine.Pause(ctx, "owner"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	_, err = h.engine.Create(ctx, "creator", defaultParams(10, 50, 2))
	expectKind(t, err, common.ErrState)
	_, err = h.engine.Stake(ctx, "bob", c.ID, 0, uint256.NewInt(1))
	expectKind(t, err, common.ErrState)

	h.now = c.EndsAt
	if _, _, err := h.engine.Close(ctx, "creator", c.ID); err != nil {
		t.Fatalf("close while paused: %v", err)
	}
}

func TestSetFeeRateCeilingAppliesToEveryCaller(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, caller := range []string{"owner", "stranger", ""} {
		_, err := h.engine.SetFeeRate(ctx, caller, 2_001)
		expectKind(t, err, common.ErrValidation)
	}
	_, err := h.engine.SetFeeRate(ctx, "stranger", 100)
	expectKind(t, err, common.ErrAuthorization)
	settings, err := h.engine.SetFeeRate(ctx, "owner", 2_000)
	if err != nil || settings.FeeBps != 2_000 {
		t.Fatalf("expected ceiling to be accepted: %v", err)
	}
	bps, err := h.engine.GetFeeRate(ctx)
	if err != nil || bps != 2_000 {
		t.Fatalf("unexpected fee %d (%v)", bps, err)
	}
}

func TestAdminSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	settings, err := h.engine.SetAgents(ctx, "owner", []string{"agent-1", " agent-2 ", "agent-1"})
	if err != nil || len(settings.Agents) != 2 {
		t.Fatalf("unexpected agents %v (%v)", settings, err)
	}
	if err := h.engine.Authorize(ctx, OpAuditAppend, "agent-2"); err != nil {
		t.Fatalf("agent should be authorised: %v", err)
	}
	expectKind(t, h.engine.Authorize(ctx, OpAuditAppend, "owner"), common.ErrAuthorization)
	_, err = h.engine.SetPlatformAccount(ctx, "owner", "")
	expectKind(t, err, common.ErrValidation)
	if _, err := h.engine.SetPlatformAccount(ctx, "owner", "treasury"); err != nil {
		t.Fatalf("set platform: %v", err)
	}
	again, err := h.engine.Bootstrap(Settings{Owner: "someone-else"})
	if err != nil || again.Owner != "owner" || again.PlatformAccount != "treasury" {
		t.Fatalf("bootstrap must keep persisted settings: %+v (%v)", again, err)
	}
}

func TestQueries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	short := defaultParams(0, 0, 2)
	short.Duration = 10
	expiring := h.create("creator", short)
	open := h.create("creator", defaultParams(0, 0, 2))
	h.stake("bob", open.ID, 1, 2)
	h.stake("alice", open.ID, 0, 3)
	h.stake("alice", expiring.ID, 0, 1)
	h.now += 10

	active, err := h.engine.ListActive(ctx)
	if err != nil || len(active) != 1 || active[0].ID != open.ID {
		t.Fatalf("unexpected active list %v (%v)", active, err)
	}
	participants, err := h.engine.Participants(ctx, open.ID)
	if err != nil || len(participants) != 2 || participants[0].Account != "bob" {
		t.Fatalf("participants must be in first-stake order: %v (%v)", participants, err)
	}
	stakes, err := h.engine.AccountStakes(ctx, "alice")
	if err != nil || len(stakes) != 2 || stakes[0].ContestID != expiring.ID {
		t.Fatalf("unexpected account stakes %v (%v)", stakes, err)
	}
	if _, err := h.engine.GetStake(ctx, open.ID, "carol"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.engine.GetSettlement(ctx, open.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected no settlement, got %v", err)
	}
	if got := h.contest(expiring.ID).Status(h.now); got != StatusExpired {
		t.Fatalf("expected expired, got %s", got)
	}
}

func TestEngineRequiresState(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Create(context.Background(), "alice", defaultParams(0, 0, 2))
	if !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
	engine.SetState(NewMemoryStore())
	_, err = engine.Create(context.Background(), "alice", defaultParams(0, 0, 2))
	if !errors.Is(err, errNilPayer) {
		t.Fatalf("expected errNilPayer, got %v", err)
	}
}

type collectorStub struct {
	calls []string
	fail  error
}

func (c *collectorStub) Collect(account string, amount *uint256.Int) error {
	if c.fail != nil {
		return c.fail
	}
	c.calls = append(c.calls, fmt.Sprintf("%s:%s", account, amount.Dec()))
	return nil
}

func TestCollectRunsAfterEveryCheck(t *testing.T) {
	h := newHarness(t)
	collector := &collectorStub{}
	h.engine.SetCollector(collector)
	ctx := context.Background()

	_, err := h.engine.Stake(ctx, "alice", 42, 0, uint256.NewInt(5))
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.engine.Pause(ctx, "owner"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := h.engine.Create(ctx, "creator", defaultParams(100, 10, 2)); !errors.Is(err, common.ErrState) {
		t.Fatalf("expected state error while paused, got %v", err)
	}
	if _, err := h.engine.Resume(ctx, "owner"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(collector.calls) != 0 {
		t.Fatalf("rejected calls collected value: %v", collector.calls)
	}

	c := h.create("creator", defaultParams(100, 10, 2))
	h.stake("alice", c.ID, 1, 7)
	if len(collector.calls) != 2 || collector.calls[0] != "creator:100" || collector.calls[1] != "alice:7" {
		t.Fatalf("unexpected collections %v", collector.calls)
	}

	h.now = c.EndsAt
	if _, err := h.engine.Stake(ctx, "bob", c.ID, 0, uint256.NewInt(3)); !errors.Is(err, common.ErrState) {
		t.Fatalf("expected state error after end, got %v", err)
	}
	if len(collector.calls) != 2 {
		t.Fatalf("expired stake collected value: %v", collector.calls)
	}
}

func TestCollectFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	short := common.Validation("collect", "balance of bob below 5")
	collector := &collectorStub{fail: short}
	h.engine.SetCollector(collector)

	_, err := h.engine.Create(context.Background(), "creator", defaultParams(100, 10, 2))
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected collect error, got %v", err)
	}
	if _, err := h.engine.GetContest(context.Background(), 1); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("contest persisted despite failed collect: %v", err)
	}

	collector.fail = nil
	c := h.create("creator", defaultParams(100, 10, 2))
	collector.fail = short
	if _, err := h.engine.Stake(context.Background(), "bob", c.ID, 0, uint256.NewInt(5)); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected collect error, got %v", err)
	}
	got := h.contest(c.ID)
	if got.TotalParticipants != 0 || !got.Options[0].Staked.IsZero() || got.Escrowed.Uint64() != 100 {
		t.Fatalf("stake mutated state: %+v", got)
	}
	if len(h.transfers) != 0 {
		t.Fatalf("unexpected transfers %v", h.transfers)
	}
}
