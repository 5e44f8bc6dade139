// Package bank holds account balances and the custody balance backing every
// escrowed contest. Value attached to a request leaves the caller's balance
// through Collect and comes back out of custody through Pay.
package bank

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"stakecurate/native/common"
	"stakecurate/native/oracle"
	"stakecurate/storage"
)

var (
	balancePrefix = []byte("bank/b/")
	depositPrefix = []byte("bank/d/")
	custodyKey    = []byte("bank/custody")
	nextDepositID = []byte("bank/next-deposit")
)

var errCustodyShort = errors.New("bank: custody balance insufficient")

// DefaultMinDepositUSDMicros is the smallest deposit accepted (5 USD).
const DefaultMinDepositUSDMicros = 5 * 1_000_000

// Deposit is a priced credit of an account balance.
type Deposit struct {
	ID        uint64       `json:"id"`
	Account   string       `json:"account"`
	Token     string       `json:"token"`
	Amount    *uint256.Int `json:"amount"`
	USDMicros *uint256.Int `json:"usdMicros"`
	Memo      string       `json:"memo,omitempty"`
	Timestamp uint64       `json:"timestamp"`
}

// Ledger stores balances in a key-value database.
type Ledger struct {
	mu         sync.Mutex
	db         storage.Database
	prices     *oracle.Reader
	minUSD     *uint256.Int
	maxMemoLen int
	logger     *slog.Logger
	nowFn      func() uint64
}

// NewLedger returns a ledger over db. Deposits are rejected until an oracle
// is configured.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{
		db:         db,
		minUSD:     uint256.NewInt(DefaultMinDepositUSDMicros),
		maxMemoLen: 256,
		logger:     slog.Default(),
		nowFn:      func() uint64 { return uint64(time.Now().UnixNano()) },
	}
}

// SetOracle configures deposit pricing.
func (l *Ledger) SetOracle(reader *oracle.Reader, minUSDMicros uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prices = reader
	l.minUSD = uint256.NewInt(minUSDMicros)
}

// SetLogger configures the structured logger.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetNowFunc overrides the clock (nanoseconds).
func (l *Ledger) SetNowFunc(now func() uint64) {
	if now != nil {
		l.nowFn = now
	}
}

func balanceKey(account string) []byte {
	return append(append([]byte(nil), balancePrefix...), account...)
}

func (l *Ledger) read(key []byte) (*uint256.Int, error) {
	raw, err := l.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("bank: read %q: %w", key, err)
	}
	return new(uint256.Int).SetBytes(raw), nil
}

func encodeAmount(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

// Balance returns the spendable balance of account.
func (l *Ledger) Balance(account string) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(balanceKey(account))
}

// Custody returns the value currently held on behalf of contests.
func (l *Ledger) Custody() (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(custodyKey)
}

// move debits from and credits to in one batch.
func (l *Ledger) move(from, to []byte, amount *uint256.Int, short error) error {
	debit, err := l.read(from)
	if err != nil {
		return err
	}
	if _, underflow := debit.SubOverflow(debit, amount); underflow {
		return short
	}
	credit, err := l.read(to)
	if err != nil {
		return err
	}
	if _, overflow := credit.AddOverflow(credit, amount); overflow {
		return common.Computation("bank", "balance overflows")
	}
	batch := l.db.NewBatch()
	batch.Put(from, encodeAmount(debit))
	batch.Put(to, encodeAmount(credit))
	if err := batch.Write(); err != nil {
		return fmt.Errorf("bank: commit: %w", err)
	}
	return nil
}

// Collect moves attached value from account into custody.
func (l *Ledger) Collect(account string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if strings.TrimSpace(account) == "" {
		return common.Validation("collect", "account required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	short := common.Validation("collect", "balance of %s below %s", account, amount)
	return l.move(balanceKey(account), custodyKey, amount, short)
}

// Pay releases value from custody to account. It satisfies contest.Payer.
func (l *Ledger) Pay(_ context.Context, account string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if strings.TrimSpace(account) == "" {
		return fmt.Errorf("bank: pay: account required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(custodyKey, balanceKey(account), amount, errCustodyShort)
}

// Deposit prices amount through the oracle and credits account when the USD
// value reaches the configured minimum.
func (l *Ledger) Deposit(ctx context.Context, account, token string, amount *uint256.Int, memo string) (*Deposit, error) {
	const op = "deposit"
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, common.Validation(op, "account required")
	}
	if amount == nil || amount.IsZero() {
		return nil, common.Validation(op, "amount must be positive")
	}
	if len(memo) > l.maxMemoLen {
		return nil, common.Validation(op, "memo exceeds %d bytes", l.maxMemoLen)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prices == nil {
		return nil, common.State(op, "deposits disabled: no price oracle")
	}
	usd, price, err := l.prices.USDValue(ctx, token, amount)
	switch {
	case errors.Is(err, oracle.ErrUnknownToken):
		return nil, fmt.Errorf("%w: %w", common.ErrNotFound, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", common.ErrState, err)
	}
	if usd.Lt(l.minUSD) {
		return nil, common.Validation(op, "deposit worth %s usd micros below minimum %s", usd, l.minUSD)
	}
	id, err := l.nextDeposit()
	if err != nil {
		return nil, err
	}
	record := &Deposit{
		ID:        id,
		Account:   account,
		Token:     price.Token,
		Amount:    new(uint256.Int).Set(amount),
		USDMicros: usd,
		Memo:      memo,
		Timestamp: l.nowFn(),
	}
	raw, err := rlp.EncodeToBytes(record)
	if err != nil {
		return nil, fmt.Errorf("bank: encode deposit: %w", err)
	}
	balance, err := l.read(balanceKey(account))
	if err != nil {
		return nil, err
	}
	if _, overflow := balance.AddOverflow(balance, amount); overflow {
		return nil, common.Computation(op, "balance overflows")
	}
	batch := l.db.NewBatch()
	batch.Put(balanceKey(account), encodeAmount(balance))
	batch.Put(depositKey(id), raw)
	batch.Put(nextDepositID, encodeID(id+1))
	if err := batch.Write(); err != nil {
		return nil, fmt.Errorf("bank: record deposit: %w", err)
	}
	l.logger.Info("deposit credited",
		slog.String("account", account),
		slog.String("token", price.Token),
		slog.String("amount", amount.Dec()),
		slog.String("usd_micros", usd.Dec()))
	return record, nil
}

// Deposits lists the deposits of account, oldest first.
func (l *Ledger) Deposits(account string) ([]*Deposit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var (
		out    []*Deposit
		decErr error
	)
	err := l.db.Iterate(depositPrefix, func(key, value []byte) bool {
		d := new(Deposit)
		if err := rlp.DecodeBytes(value, d); err != nil {
			decErr = fmt.Errorf("bank: decode deposit %q: %w", key, err)
			return false
		}
		if d.Account == account {
			out = append(out, d)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("bank: iterate deposits: %w", err)
	}
	return out, decErr
}

func depositKey(id uint64) []byte {
	return append(append([]byte(nil), depositPrefix...), encodeID(id)...)
}

func encodeID(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func (l *Ledger) nextDeposit() (uint64, error) {
	raw, err := l.db.Get(nextDepositID)
	if errors.Is(err, storage.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("bank: read deposit id: %w", err)
	}
	return binary.BigEndian.Uint64(raw), nil
}
