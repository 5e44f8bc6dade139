package contest

import "sort"

// State is the persistence backend of the engine. Reads observe committed
// data only; Apply commits a changeset atomically.
type State interface {
	Settings() (*Settings, bool, error)
	NextContestID() (uint64, error)
	Contest(id uint64) (*Contest, bool, error)
	Contests() ([]*Contest, error)
	Stake(contestID uint64, account string) (*StakeEntry, bool, error)
	Stakes(contestID uint64) ([]*StakeEntry, error)
	AccountStakes(account string) ([]*StakeEntry, error)
	Whitelisted(contestID uint64, account string) (bool, error)
	Settlement(contestID uint64) (*Settlement, bool, error)
	Apply(cs *Changeset) error
}

type stakeKey struct {
	contest uint64
	account string
}

// Changeset collects every write of one operation. Nothing becomes visible
// until State.Apply succeeds.
type Changeset struct {
	settings    *Settings
	nextID      uint64
	contests    map[uint64]*Contest
	contestIDs  []uint64
	stakes      map[stakeKey]*StakeEntry
	stakeKeys   []stakeKey
	whitelist   map[stakeKey]bool
	listKeys    []stakeKey
	settlements []*Settlement
}

// NewChangeset returns an empty changeset.
func NewChangeset() *Changeset {
	return &Changeset{
		contests:  make(map[uint64]*Contest),
		stakes:    make(map[stakeKey]*StakeEntry),
		whitelist: make(map[stakeKey]bool),
	}
}

// Empty reports whether the changeset carries no writes.
func (cs *Changeset) Empty() bool {
	return cs.settings == nil && cs.nextID == 0 && len(cs.contestIDs) == 0 &&
		len(cs.stakeKeys) == 0 && len(cs.listKeys) == 0 && len(cs.settlements) == 0
}

// PutSettings replaces the settings record.
func (cs *Changeset) PutSettings(s *Settings) { cs.settings = s.Clone() }

// SetNextContestID records the id to hand out after this one.
func (cs *Changeset) SetNextContestID(id uint64) { cs.nextID = id }

// PutContest stages a contest write.
func (cs *Changeset) PutContest(c *Contest) {
	if _, ok := cs.contests[c.ID]; !ok {
		cs.contestIDs = append(cs.contestIDs, c.ID)
	}
	cs.contests[c.ID] = c.Clone()
}

// PutStake stages a stake write.
func (cs *Changeset) PutStake(s *StakeEntry) {
	key := stakeKey{contest: s.ContestID, account: s.Account}
	if _, ok := cs.stakes[key]; !ok {
		cs.stakeKeys = append(cs.stakeKeys, key)
	}
	cs.stakes[key] = s.Clone()
}

// DeleteStake stages a stake removal.
func (cs *Changeset) DeleteStake(contestID uint64, account string) {
	key := stakeKey{contest: contestID, account: account}
	if _, ok := cs.stakes[key]; !ok {
		cs.stakeKeys = append(cs.stakeKeys, key)
	}
	cs.stakes[key] = nil
}

// SetWhitelisted stages a whitelist flag.
func (cs *Changeset) SetWhitelisted(contestID uint64, account string, allowed bool) {
	key := stakeKey{contest: contestID, account: account}
	if _, ok := cs.whitelist[key]; !ok {
		cs.listKeys = append(cs.listKeys, key)
	}
	cs.whitelist[key] = allowed
}

// PutSettlement stages a settlement record.
func (cs *Changeset) PutSettlement(s *Settlement) {
	clone := *s
	clone.Payments = append([]SettlementPayment(nil), s.Payments...)
	cs.settlements = append(cs.settlements, &clone)
}

// pendingStake returns the staged entry for key. The second value reports
// whether the changeset touches key at all; a nil entry means deleted.
func (cs *Changeset) pendingStake(contestID uint64, account string) (*StakeEntry, bool) {
	entry, ok := cs.stakes[stakeKey{contest: contestID, account: account}]
	return entry, ok
}

// pendingStakes returns every staged stake of a contest, deletions as nil.
func (cs *Changeset) pendingStakes(contestID uint64) map[string]*StakeEntry {
	out := make(map[string]*StakeEntry)
	for _, key := range cs.stakeKeys {
		if key.contest == contestID {
			out[key.account] = cs.stakes[key]
		}
	}
	return out
}

// sortStakes orders entries by participant ordinal.
func sortStakes(entries []*StakeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Seq != entries[j].Seq {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].Account < entries[j].Account
	})
}
