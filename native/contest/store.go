package contest

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"stakecurate/storage"
)

var (
	settingsKey = []byte("contest/settings")
	nextIDKey   = []byte("contest/next-id")

	contestPrefix    = []byte("contest/c/")
	stakePrefix      = []byte("contest/s/")
	accountPrefix    = []byte("contest/a/")
	whitelistPrefix  = []byte("contest/w/")
	settlementPrefix = []byte("contest/r/")
)

// Store persists ledger records as RLP over a key-value database. With
// storage.NewMemDB it doubles as the in-memory state used by tests.
type Store struct {
	db storage.Database
}

// NewStore wraps db.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// NewMemoryStore returns a store backed by a fresh in-memory database.
func NewMemoryStore() *Store {
	return NewStore(storage.NewMemDB())
}

func be64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func join(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func contestKey(id uint64) []byte { return join(contestPrefix, be64(id)) }

func stakeKeyBytes(id uint64, account string) []byte {
	return join(stakePrefix, be64(id), []byte(account))
}

// accountIndexKey length-prefixes the account so one account is never a key
// prefix of another.
func accountIndexKey(account string, id uint64) []byte {
	return join(accountIndexPrefix(account), be64(id))
}

func accountIndexPrefix(account string) []byte {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(account)))
	return join(accountPrefix, size[:], []byte(account))
}

func whitelistKey(id uint64, account string) []byte {
	return join(whitelistPrefix, be64(id), []byte(account))
}

func settlementKey(id uint64) []byte { return join(settlementPrefix, be64(id)) }

func (s *Store) load(key []byte, out any) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("contest store: read %q: %w", key, err)
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("contest store: decode %q: %w", key, err)
	}
	return true, nil
}

// Settings loads the administrative record.
func (s *Store) Settings() (*Settings, bool, error) {
	settings := new(Settings)
	ok, err := s.load(settingsKey, settings)
	if err != nil || !ok {
		return nil, ok, err
	}
	return settings, true, nil
}

// NextContestID returns the id the next contest will receive. Ids start at 1.
func (s *Store) NextContestID() (uint64, error) {
	raw, err := s.db.Get(nextIDKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("contest store: read next id: %w", err)
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("contest store: malformed next id")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Contest loads a contest by id.
func (s *Store) Contest(id uint64) (*Contest, bool, error) {
	c := new(Contest)
	ok, err := s.load(contestKey(id), c)
	if err != nil || !ok {
		return nil, ok, err
	}
	return c.Clone(), true, nil
}

// Contests returns every contest in id order.
func (s *Store) Contests() ([]*Contest, error) {
	var (
		out    []*Contest
		decErr error
	)
	err := s.db.Iterate(contestPrefix, func(key, value []byte) bool {
		c := new(Contest)
		if err := rlp.DecodeBytes(value, c); err != nil {
			decErr = fmt.Errorf("contest store: decode %q: %w", key, err)
			return false
		}
		out = append(out, c.Clone())
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("contest store: iterate contests: %w", err)
	}
	return out, decErr
}

// Stake loads the stake of account in a contest.
func (s *Store) Stake(contestID uint64, account string) (*StakeEntry, bool, error) {
	entry := new(StakeEntry)
	ok, err := s.load(stakeKeyBytes(contestID, account), entry)
	if err != nil || !ok {
		return nil, ok, err
	}
	return entry.Clone(), true, nil
}

// Stakes returns every stake of a contest in first-stake order.
func (s *Store) Stakes(contestID uint64) ([]*StakeEntry, error) {
	var (
		out    []*StakeEntry
		decErr error
	)
	err := s.db.Iterate(join(stakePrefix, be64(contestID)), func(key, value []byte) bool {
		entry := new(StakeEntry)
		if err := rlp.DecodeBytes(value, entry); err != nil {
			decErr = fmt.Errorf("contest store: decode %q: %w", key, err)
			return false
		}
		out = append(out, entry.Clone())
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("contest store: iterate stakes: %w", err)
	}
	if decErr != nil {
		return nil, decErr
	}
	sortStakes(out)
	return out, nil
}

// AccountStakes returns every stake held by account, by contest id.
func (s *Store) AccountStakes(account string) ([]*StakeEntry, error) {
	prefix := accountIndexPrefix(account)
	var ids []uint64
	err := s.db.Iterate(prefix, func(key, _ []byte) bool {
		ids = append(ids, binary.BigEndian.Uint64(key[len(prefix):]))
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("contest store: iterate account index: %w", err)
	}
	out := make([]*StakeEntry, 0, len(ids))
	for _, id := range ids {
		entry, ok, err := s.Stake(id, account)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Whitelisted reports whether account may stake in a private contest.
func (s *Store) Whitelisted(contestID uint64, account string) (bool, error) {
	_, err := s.db.Get(whitelistKey(contestID, account))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("contest store: read whitelist: %w", err)
	}
	return true, nil
}

// Settlement loads the settlement recorded at closure.
func (s *Store) Settlement(contestID uint64) (*Settlement, bool, error) {
	settlement := new(Settlement)
	ok, err := s.load(settlementKey(contestID), settlement)
	if err != nil || !ok {
		return nil, ok, err
	}
	return settlement, true, nil
}

// Apply writes the changeset in a single batch.
func (s *Store) Apply(cs *Changeset) error {
	if cs == nil || cs.Empty() {
		return nil
	}
	batch := s.db.NewBatch()
	put := func(key []byte, v any) error {
		raw, err := rlp.EncodeToBytes(v)
		if err != nil {
			return fmt.Errorf("contest store: encode %q: %w", key, err)
		}
		batch.Put(key, raw)
		return nil
	}
	if cs.settings != nil {
		if err := put(settingsKey, cs.settings); err != nil {
			return err
		}
	}
	if cs.nextID != 0 {
		batch.Put(nextIDKey, be64(cs.nextID))
	}
	for _, id := range cs.contestIDs {
		if err := put(contestKey(id), cs.contests[id]); err != nil {
			return err
		}
	}
	for _, key := range cs.stakeKeys {
		entry := cs.stakes[key]
		if entry == nil {
			batch.Delete(stakeKeyBytes(key.contest, key.account))
			batch.Delete(accountIndexKey(key.account, key.contest))
			continue
		}
		if err := put(stakeKeyBytes(key.contest, key.account), entry); err != nil {
			return err
		}
		batch.Put(accountIndexKey(key.account, key.contest), []byte{1})
	}
	for _, key := range cs.listKeys {
		if cs.whitelist[key] {
			batch.Put(whitelistKey(key.contest, key.account), []byte{1})
		} else {
			batch.Delete(whitelistKey(key.contest, key.account))
		}
	}
	for _, settlement := range cs.settlements {
		if err := put(settlementKey(settlement.ContestID), settlement); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("contest store: commit: %w", err)
	}
	return nil
}
