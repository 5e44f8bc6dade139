package contest

import (
	"github.com/holiman/uint256"

	"stakecurate/native/common"
)

// Registry is the working view of one contest's stakes during a single
// operation. Reads see committed state overlaid with the staged writes.
type Registry struct {
	state     State
	cs        *Changeset
	contestID uint64
}

// NewRegistry binds a registry to the contest and changeset of an operation.
func NewRegistry(state State, cs *Changeset, contestID uint64) *Registry {
	return &Registry{state: state, cs: cs, contestID: contestID}
}

// Get returns the stake of account, if any.
func (r *Registry) Get(account string) (*StakeEntry, bool, error) {
	if entry, staged := r.cs.pendingStake(r.contestID, account); staged {
		if entry == nil {
			return nil, false, nil
		}
		return entry.Clone(), true, nil
	}
	return r.state.Stake(r.contestID, account)
}

// Put stages entry, replacing any previous stake of the same account.
func (r *Registry) Put(entry *StakeEntry) error {
	if entry == nil || entry.Amount == nil || entry.Amount.IsZero() {
		return common.Validation(string(OpStake), "stake amount must be positive")
	}
	if entry.ContestID != r.contestID {
		return common.Computation(string(OpStake), "stake for contest %d staged on contest %d", entry.ContestID, r.contestID)
	}
	r.cs.PutStake(entry)
	return nil
}

// Withdraw removes the stake of account and returns it.
func (r *Registry) Withdraw(account string) (*StakeEntry, error) {
	entry, ok, err := r.Get(account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NotFound(string(OpStake), "no stake for %s in contest %d", account, r.contestID)
	}
	r.cs.DeleteStake(r.contestID, account)
	return entry, nil
}

// Stakers enumerates the contest's stakes in first-stake order.
func (r *Registry) Stakers() ([]*StakeEntry, error) {
	committed, err := r.state.Stakes(r.contestID)
	if err != nil {
		return nil, err
	}
	pending := r.cs.pendingStakes(r.contestID)
	out := make([]*StakeEntry, 0, len(committed)+len(pending))
	for _, entry := range committed {
		if staged, ok := pending[entry.Account]; ok {
			delete(pending, entry.Account)
			if staged == nil {
				continue
			}
			entry = staged
		}
		out = append(out, entry.Clone())
	}
	for _, staged := range pending {
		if staged != nil {
			out = append(out, staged.Clone())
		}
	}
	sortStakes(out)
	return out, nil
}

// Total sums every stake, used to check the aggregate invariant.
func (r *Registry) Total() (*uint256.Int, error) {
	stakers, err := r.Stakers()
	if err != nil {
		return nil, err
	}
	sum := new(uint256.Int)
	for _, s := range stakers {
		if _, overflow := sum.AddOverflow(sum, s.Amount); overflow {
			return nil, common.Computation("registry", "stake sum overflows")
		}
	}
	return sum, nil
}
