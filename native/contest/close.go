package contest

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"lukechampine.com/blake3"

	"stakecurate/native/common"
	"stakecurate/native/payout"
)

// Close finalises an expired contest. The settlement, the zeroed escrow and
// the payout flag are committed before the first transfer is attempted, so a
// payer calling back into Close observes a closed contest.
func (e *Engine) Close(ctx context.Context, caller string, contestID uint64) (*Settlement, *DispatchReport, error) {
	e.mu.Lock()
	settlement, transfers, err := e.close(caller, contestID)
	e.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	e.logger.Info("contest closed",
		slog.Uint64("contest_id", contestID),
		slog.String("outcome", string(settlement.Outcome)),
		slog.String("fee", amountString(settlement.Fee)),
		slog.Int("payments", len(settlement.Payments)))
	e.emit(contestClosedEvent(settlement))
	report := e.dispatch(ctx, contestID, transfers)
	return settlement, report, nil
}

func (e *Engine) close(caller string, contestID uint64) (*Settlement, []Transfer, error) {
	const op = string(OpClose)
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	settings, err := e.loadSettings()
	if err != nil {
		return nil, nil, err
	}
	contest, err := e.loadContest(OpClose, contestID)
	if err != nil {
		return nil, nil, err
	}
	now := e.now()
	if contest.IsClosed || contest.PayoutDone {
		return nil, nil, common.State(op, "contest %d already closed", contestID)
	}
	if now < contest.EndsAt {
		return nil, nil, common.State(op, "contest %d still open", contestID)
	}
	if err := Authorize(OpClose, settings, contest, caller); err != nil {
		return nil, nil, err
	}

	cs := NewChangeset()
	registry := NewRegistry(e.state, cs, contestID)
	stakers, err := registry.Stakers()
	if err != nil {
		return nil, nil, err
	}
	staked, err := registry.Total()
	if err != nil {
		return nil, nil, err
	}
	totals := contest.Totals()
	optionSum := new(uint256.Int)
	for _, amount := range totals {
		optionSum.Add(optionSum, amount)
	}
	if !staked.Eq(optionSum) {
		return nil, nil, common.Computation(op, "stakes %s do not match option totals %s", staked, optionSum)
	}
	winner := payout.Winner(totals)
	input := payout.Input{
		OptionTotals:     totals,
		WinnerIndex:      winner,
		BasePrize:        contest.BasePrize,
		CreatorSharePct:  contest.CreatorSharePct,
		BackerSharePct:   contest.BackerSharePct,
		FeeBps:           settings.FeeBps,
		Creator:          contest.Creator,
		CreatorRecipient: contest.Options[winner].Recipient,
		Stakers:          make([]payout.Staker, len(stakers)),
	}
	for i, s := range stakers {
		input.Stakers[i] = payout.Staker{Account: s.Account, Option: s.Option, Amount: s.Amount, StakedAt: s.StakedAt}
	}
	result, err := payout.Compute(input)
	if err != nil {
		return nil, nil, err
	}
	if !result.TotalPool.Eq(contest.Escrowed) {
		return nil, nil, common.Computation(op, "escrow %s does not match pool %s", contest.Escrowed, result.TotalPool)
	}

	settlement := &Settlement{
		ContestID:       contestID,
		Outcome:         outcomeOf(result),
		TotalPool:       result.TotalPool,
		Fee:             result.Fee,
		PlatformAccount: settings.PlatformAccount,
		SettledAt:       now,
		Payments:        make([]SettlementPayment, len(result.Payments)),
	}
	if !result.Refunded {
		settlement.HasWinner = true
		settlement.WinnerIndex = uint32(winner)
	}
	for i, p := range result.Payments {
		settlement.Payments[i] = SettlementPayment{Account: p.Account, Amount: p.Amount, Role: string(p.Role)}
	}
	digest, err := SettlementDigest(settlement)
	if err != nil {
		return nil, nil, err
	}
	settlement.Digest = digest

	contest.IsClosed = true
	contest.PayoutDone = true
	contest.Refunded = result.Refunded
	contest.HasWinner = settlement.HasWinner
	contest.WinnerIndex = settlement.WinnerIndex
	contest.Escrowed = new(uint256.Int)
	cs.PutContest(contest)
	cs.PutSettlement(settlement)
	if err := e.state.Apply(cs); err != nil {
		return nil, nil, err
	}

	transfers := make([]Transfer, 0, len(settlement.Payments)+1)
	transfers = append(transfers, Transfer{Account: settings.PlatformAccount, Amount: result.Fee, Reason: ReasonPlatformFee})
	for _, p := range settlement.Payments {
		transfers = append(transfers, Transfer{Account: p.Account, Amount: p.Amount, Reason: p.Role})
	}
	return settlement, transfers, nil
}

func outcomeOf(result *payout.Result) Outcome {
	switch {
	case result.TotalPool.IsZero():
		return OutcomeEmpty
	case result.Refunded:
		return OutcomeRefunded
	default:
		return OutcomePaid
	}
}

// SettlementDigest hashes the RLP encoding of the settlement with the digest
// field cleared.
func SettlementDigest(s *Settlement) (string, error) {
	clone := *s
	clone.Digest = ""
	raw, err := rlp.EncodeToBytes(&clone)
	if err != nil {
		return "", fmt.Errorf("contest: encode settlement: %w", err)
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
