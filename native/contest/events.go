package contest

import (
	"strconv"

	"github.com/holiman/uint256"

	"stakecurate/core/events"
)

const (
	// EventTypeContestCreated is emitted when a poll or bounty opens.
	EventTypeContestCreated = "contest.created"
	// EventTypeStakePlaced is emitted for first stakes and switches alike.
	EventTypeStakePlaced = "contest.stake.placed"
	// EventTypeContestClosed is emitted once the settlement is committed.
	EventTypeContestClosed = "contest.closed"
	// EventTypeTransferFailed is emitted for every transfer the payer rejected.
	EventTypeTransferFailed = "contest.transfer.failed"
	// EventTypeWhitelistUpdated is emitted when the creator edits the whitelist.
	EventTypeWhitelistUpdated = "contest.whitelist.updated"
	// EventTypeSettingsUpdated is emitted on any administrative change.
	EventTypeSettingsUpdated = "contest.settings.updated"
)

func idString(id uint64) string { return strconv.FormatUint(id, 10) }

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func contestCreatedEvent(c *Contest) events.Record {
	return events.Record{
		Type: EventTypeContestCreated,
		Attributes: map[string]string{
			"contestId": idString(c.ID),
			"kind":      string(c.Kind),
			"creator":   c.Creator,
			"basePrize": amountString(c.BasePrize),
			"endsAt":    strconv.FormatUint(c.EndsAt, 10),
			"options":   strconv.Itoa(len(c.Options)),
		},
	}
}

func stakePlacedEvent(entry *StakeEntry, prior *StakeEntry) events.Record {
	attrs := map[string]string{
		"contestId": idString(entry.ContestID),
		"account":   entry.Account,
		"option":    strconv.FormatUint(uint64(entry.Option), 10),
		"amount":    amountString(entry.Amount),
	}
	if prior != nil {
		attrs["previousOption"] = strconv.FormatUint(uint64(prior.Option), 10)
		attrs["refunded"] = amountString(prior.Amount)
	}
	return events.Record{Type: EventTypeStakePlaced, Attributes: attrs}
}

func contestClosedEvent(s *Settlement) events.Record {
	return events.Record{
		Type: EventTypeContestClosed,
		Attributes: map[string]string{
			"contestId": idString(s.ContestID),
			"outcome":   string(s.Outcome),
			"winner":    strconv.FormatUint(uint64(s.WinnerIndex), 10),
			"totalPool": amountString(s.TotalPool),
			"fee":       amountString(s.Fee),
			"payments":  strconv.Itoa(len(s.Payments)),
			"digest":    s.Digest,
		},
	}
}

func transferFailedEvent(contestID uint64, t Transfer, err error) events.Record {
	return events.Record{
		Type: EventTypeTransferFailed,
		Attributes: map[string]string{
			"contestId": idString(contestID),
			"account":   t.Account,
			"amount":    amountString(t.Amount),
			"reason":    t.Reason,
			"error":     err.Error(),
		},
	}
}

func whitelistEvent(contestID uint64, account string, allowed bool) events.Record {
	return events.Record{
		Type: EventTypeWhitelistUpdated,
		Attributes: map[string]string{
			"contestId": idString(contestID),
			"account":   account,
			"allowed":   strconv.FormatBool(allowed),
		},
	}
}

func settingsEvent(op Operation, s *Settings) events.Record {
	return events.Record{
		Type: EventTypeSettingsUpdated,
		Attributes: map[string]string{
			"operation":       string(op),
			"feeBps":          strconv.FormatUint(uint64(s.FeeBps), 10),
			"paused":          strconv.FormatBool(s.Paused),
			"platformAccount": s.PlatformAccount,
			"agents":          strconv.Itoa(len(s.Agents)),
		},
	}
}
