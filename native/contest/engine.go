package contest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"stakecurate/core/events"
	"stakecurate/native/common"
)

var (
	errNilState    = errors.New("contest engine: state not configured")
	errNilPayer    = errors.New("contest engine: payer not configured")
	errNoRecipient = errors.New("contest engine: transfer recipient not configured")
)

// Payer moves value out of the ledger. Implementations are untrusted: they
// may fail or call back into the engine.
type Payer interface {
	Pay(ctx context.Context, account string, amount *uint256.Int) error
}

// PayerFunc adapts a function into a Payer.
type PayerFunc func(ctx context.Context, account string, amount *uint256.Int) error

// Pay implements Payer.
func (f PayerFunc) Pay(ctx context.Context, account string, amount *uint256.Int) error {
	return f(ctx, account, amount)
}

// Collector moves attached value from the caller into ledger custody. The
// engine calls it once every check of an operation has passed, right before
// the commit, so rejected calls never touch the caller's balance.
type Collector interface {
	Collect(account string, amount *uint256.Int) error
}

// Transfer reasons.
const (
	ReasonCreateRefund = "create_refund"
	ReasonStorageCost  = "storage_cost"
	ReasonSwitchRefund = "switch_refund"
	ReasonPlatformFee  = "platform_fee"
	ReasonCommitRefund = "commit_refund"
)

// Transfer is a payment the engine owes after a commit.
type Transfer struct {
	Account string       `json:"account"`
	Amount  *uint256.Int `json:"amount"`
	Reason  string       `json:"reason"`
}

// TransferResult records the outcome of one dispatched transfer.
type TransferResult struct {
	Transfer
	Error string `json:"error,omitempty"`
}

// DispatchReport lists every transfer attempted after a commit. Failed
// transfers are never retried or reversed.
type DispatchReport struct {
	ContestID uint64           `json:"contestId"`
	Transfers []TransferResult `json:"transfers"`
	Failed    int              `json:"failed"`
}

// StorageCosts is charged at creation: Base + PerOption * len(options).
type StorageCosts struct {
	Base      *uint256.Int
	PerOption *uint256.Int
}

// Engine runs every ledger operation under one mutex: validate, stage a
// changeset, commit, then dispatch transfers with the mutex released.
type Engine struct {
	mu      sync.Mutex
	state   State
	payer   Payer
	collect Collector
	emitter events.Emitter
	logger  *slog.Logger
	limits  Limits
	costs   StorageCosts
	nowFn   func() uint64
}

// NewEngine constructs a contest engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		limits:  DefaultLimits(),
		costs:   StorageCosts{Base: new(uint256.Int), PerOption: new(uint256.Int)},
		nowFn:   wallClock,
	}
}

func wallClock() uint64 { return uint64(time.Now().UnixNano()) }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetPayer configures the value-transfer primitive.
func (e *Engine) SetPayer(payer Payer) { e.payer = payer }

// SetCollector configures how attached value is taken from callers. Without
// one the attached value is assumed to be in custody already.
func (e *Engine) SetCollector(c Collector) { e.collect = c }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger configures the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the time source (nanoseconds) for deterministic testing.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = wallClock
		return
	}
	e.nowFn = now
}

// SetLimits replaces the resource bounds.
func (e *Engine) SetLimits(limits Limits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limits = limits
	return nil
}

// Limits returns the active resource bounds.
func (e *Engine) Limits() Limits {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limits
}

// SetStorageCosts configures the creation charge.
func (e *Engine) SetStorageCosts(costs StorageCosts) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.costs = StorageCosts{Base: amountOrZero(costs.Base), PerOption: amountOrZero(costs.PerOption)}
}

// Now returns the engine clock in nanoseconds.
func (e *Engine) Now() uint64 { return e.now() }

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return wallClock()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.payer == nil {
		return errNilPayer
	}
	return nil
}

// loadSettings returns the committed settings or the zero record.
func (e *Engine) loadSettings() (*Settings, error) {
	settings, ok, err := e.state.Settings()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Settings{}, nil
	}
	return settings, nil
}

func (e *Engine) loadContest(op Operation, id uint64) (*Contest, error) {
	c, ok, err := e.state.Contest(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NotFound(string(op), "contest %d not found", id)
	}
	return c, nil
}

// dispatch performs transfers in order. Failures are logged, emitted and
// reported, never retried.
func (e *Engine) dispatch(ctx context.Context, contestID uint64, transfers []Transfer) *DispatchReport {
	report := &DispatchReport{ContestID: contestID, Transfers: make([]TransferResult, 0, len(transfers))}
	for _, t := range transfers {
		if t.Amount == nil || t.Amount.IsZero() {
			continue
		}
		var err error
		switch {
		case t.Account == "":
			err = errNoRecipient
		default:
			err = e.payer.Pay(ctx, t.Account, t.Amount)
		}
		result := TransferResult{Transfer: t}
		if err != nil {
			result.Error = err.Error()
			report.Failed++
			e.logger.Error("contest transfer failed",
				slog.Uint64("contest_id", contestID),
				slog.String("account", t.Account),
				slog.String("amount", t.Amount.Dec()),
				slog.String("reason", t.Reason),
				slog.Any("error", err))
			e.emit(transferFailedEvent(contestID, t, err))
		}
		report.Transfers = append(report.Transfers, result)
	}
	return report
}

// collectAndApply takes amount from caller, then commits cs. When the commit
// fails the collected value is owed back to the caller.
func (e *Engine) collectAndApply(caller string, amount *uint256.Int, cs *Changeset) ([]Transfer, error) {
	if e.collect != nil && amount != nil && !amount.IsZero() {
		if err := e.collect.Collect(caller, amount); err != nil {
			return nil, err
		}
	}
	if err := e.state.Apply(cs); err != nil {
		if e.collect == nil {
			return nil, err
		}
		return []Transfer{{Account: caller, Amount: new(uint256.Int).Set(amount), Reason: ReasonCommitRefund}}, err
	}
	return nil, nil
}

func (e *Engine) storageCost(options int) (*uint256.Int, error) {
	cost, overflow := new(uint256.Int).MulOverflow(amountOrZero(e.costs.PerOption), uint256.NewInt(uint64(options)))
	if overflow {
		return nil, common.Computation(string(OpCreate), "storage cost overflows")
	}
	if _, overflow := cost.AddOverflow(cost, amountOrZero(e.costs.Base)); overflow {
		return nil, common.Computation(string(OpCreate), "storage cost overflows")
	}
	return cost, nil
}

// Create opens a contest, escrowing the base prize out of the attached value.
// The excess over base prize plus storage cost is refunded after commit.
func (e *Engine) Create(ctx context.Context, caller string, params CreateParams) (*Contest, error) {
	e.mu.Lock()
	contest, transfers, err := e.create(caller, params)
	e.mu.Unlock()
	if err != nil {
		if len(transfers) > 0 {
			e.dispatch(ctx, 0, transfers)
		}
		return nil, err
	}
	e.emit(contestCreatedEvent(contest))
	e.logger.Info("contest created",
		slog.Uint64("contest_id", contest.ID),
		slog.String("kind", string(contest.Kind)),
		slog.String("creator", contest.Creator))
	e.dispatch(ctx, contest.ID, transfers)
	return contest, nil
}

func (e *Engine) create(caller string, params CreateParams) (*Contest, []Transfer, error) {
	const op = string(OpCreate)
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	settings, err := e.loadSettings()
	if err != nil {
		return nil, nil, err
	}
	if err := common.Guard(settings, ModuleName, op); err != nil {
		return nil, nil, err
	}
	if err := Authorize(OpCreate, settings, nil, caller); err != nil {
		return nil, nil, err
	}
	participants, err := e.limits.ValidateCreate(params)
	if err != nil {
		return nil, nil, err
	}
	cost, err := e.storageCost(len(params.Options))
	if err != nil {
		return nil, nil, err
	}
	basePrize := amountOrZero(params.BasePrize)
	required, overflow := new(uint256.Int).AddOverflow(basePrize, cost)
	if overflow {
		return nil, nil, common.Computation(op, "required deposit overflows")
	}
	attached := amountOrZero(params.Attached)
	if attached.Lt(required) {
		return nil, nil, common.Validation(op, "attached value %s below required %s", attached, required)
	}
	now := e.now()
	endsAt := now + params.Duration
	if endsAt < now {
		return nil, nil, common.Computation(op, "end time overflows")
	}
	id, err := e.state.NextContestID()
	if err != nil {
		return nil, nil, err
	}

	options := make([]Option, len(params.Options))
	for i, spec := range params.Options {
		options[i] = Option{Label: trim(spec.Label), Recipient: trim(spec.Recipient), Staked: new(uint256.Int)}
	}
	contest := &Contest{
		ID:                 id,
		Kind:               params.Kind,
		Creator:            caller,
		Title:              trim(params.Title),
		Description:        params.Description,
		Options:            options,
		BasePrize:          basePrize,
		CreatorSharePct:    params.CreatorSharePct,
		BackerSharePct:     params.BackerSharePct,
		IsPublic:           params.IsPublic,
		AllowCreatorStake:  params.AllowCreatorStake,
		MaxStakePerAccount: amountOrZero(params.MaxStakePerAccount),
		MaxParticipants:    participants,
		CreatedAt:          now,
		EndsAt:             endsAt,
		Escrowed:           new(uint256.Int).Set(basePrize),
	}
	cs := NewChangeset()
	cs.PutContest(contest)
	cs.SetNextContestID(id + 1)
	if refunds, err := e.collectAndApply(caller, attached, cs); err != nil {
		return nil, refunds, err
	}

	transfers := []Transfer{
		{Account: caller, Amount: new(uint256.Int).Sub(attached, required), Reason: ReasonCreateRefund},
		{Account: settings.PlatformAccount, Amount: cost, Reason: ReasonStorageCost},
	}
	return contest.Clone(), transfers, nil
}

// Stake places or replaces the caller's stake. A replacement refunds the
// prior amount after commit.
func (e *Engine) Stake(ctx context.Context, caller string, contestID uint64, option uint32, amount *uint256.Int) (*StakeEntry, error) {
	e.mu.Lock()
	entry, prior, refunds, err := e.stake(caller, contestID, option, amount)
	e.mu.Unlock()
	if err != nil {
		if len(refunds) > 0 {
			e.dispatch(ctx, contestID, refunds)
		}
		return nil, err
	}
	e.emit(stakePlacedEvent(entry, prior))
	if prior != nil {
		e.dispatch(ctx, contestID, []Transfer{{Account: caller, Amount: prior.Amount, Reason: ReasonSwitchRefund}})
	}
	return entry, nil
}

func (e *Engine) stake(caller string, contestID uint64, option uint32, amount *uint256.Int) (*StakeEntry, *StakeEntry, []Transfer, error) {
	const op = string(OpStake)
	if err := e.ready(); err != nil {
		return nil, nil, nil, err
	}
	settings, err := e.loadSettings()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := common.Guard(settings, ModuleName, op); err != nil {
		return nil, nil, nil, err
	}
	contest, err := e.loadContest(OpStake, contestID)
	if err != nil {
		return nil, nil, nil, err
	}
	if int(option) >= len(contest.Options) {
		return nil, nil, nil, common.NotFound(op, "option %d not found in contest %d", option, contestID)
	}
	now := e.now()
	if contest.IsClosed {
		return nil, nil, nil, common.State(op, "contest %d is closed", contestID)
	}
	if now >= contest.EndsAt {
		return nil, nil, nil, common.State(op, "contest %d has ended", contestID)
	}
	if err := Authorize(OpStake, settings, contest, caller); err != nil {
		return nil, nil, nil, err
	}
	isCreator := IsContestCreator(contest, caller)
	if isCreator && !contest.AllowCreatorStake {
		return nil, nil, nil, common.Unauthorized(op, "creator may not stake in contest %d", contestID)
	}
	if !contest.IsPublic && !isCreator {
		allowed, err := e.state.Whitelisted(contestID, caller)
		if err != nil {
			return nil, nil, nil, err
		}
		if !allowed {
			return nil, nil, nil, common.Unauthorized(op, "%s is not whitelisted for contest %d", caller, contestID)
		}
	}
	if amount == nil || amount.IsZero() {
		return nil, nil, nil, common.Validation(op, "stake amount must be positive")
	}
	if limit := contest.MaxStakePerAccount; limit != nil && !limit.IsZero() && amount.Gt(limit) {
		return nil, nil, nil, common.Validation(op, "stake %s above per-account maximum %s", amount, limit)
	}

	cs := NewChangeset()
	registry := NewRegistry(e.state, cs, contestID)
	prior, hadStake, err := registry.Get(caller)
	if err != nil {
		return nil, nil, nil, err
	}
	if !hadStake && contest.TotalParticipants >= contest.MaxParticipants {
		return nil, nil, nil, common.Validation(op, "participant cap %d reached", contest.MaxParticipants)
	}

	seq := contest.TotalParticipants
	if hadStake {
		if _, err := registry.Withdraw(caller); err != nil {
			return nil, nil, nil, err
		}
		seq = prior.Seq
		previous := contest.Options[prior.Option].Staked
		if _, underflow := previous.SubOverflow(previous, prior.Amount); underflow {
			return nil, nil, nil, common.Computation(op, "option %d total underflows", prior.Option)
		}
		if _, underflow := contest.Escrowed.SubOverflow(contest.Escrowed, prior.Amount); underflow {
			return nil, nil, nil, common.Computation(op, "escrow underflows")
		}
	}
	target := contest.Options[option].Staked
	if _, overflow := target.AddOverflow(target, amount); overflow {
		return nil, nil, nil, common.Computation(op, "option %d total overflows", option)
	}
	if _, overflow := contest.Escrowed.AddOverflow(contest.Escrowed, amount); overflow {
		return nil, nil, nil, common.Computation(op, "escrow overflows")
	}
	if !hadStake {
		contest.TotalParticipants++
	}
	entry := &StakeEntry{
		Account:   caller,
		ContestID: contestID,
		Option:    option,
		Amount:    new(uint256.Int).Set(amount),
		StakedAt:  now,
		Seq:       seq,
	}
	if err := registry.Put(entry); err != nil {
		return nil, nil, nil, err
	}
	cs.PutContest(contest)
	if refunds, err := e.collectAndApply(caller, amount, cs); err != nil {
		return nil, nil, refunds, err
	}
	if !hadStake {
		prior = nil
	}
	return entry.Clone(), prior, nil, nil
}
