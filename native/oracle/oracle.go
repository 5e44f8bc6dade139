// Package oracle consumes USD prices for deposit tokens and rejects quotes
// older than the staleness window.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

// DefaultMaxAge is the oldest price the reader accepts.
const DefaultMaxAge = time.Hour

var (
	ErrUnknownToken  = errors.New("oracle: unknown token")
	ErrStalePrice    = errors.New("oracle: stale price")
	ErrPriceNotSet   = errors.New("oracle: price not configured")
	ErrTokenDisabled = errors.New("oracle: token disabled")
)

// Price is the USD value of one whole token in micro-dollars.
type Price struct {
	Token     string    `json:"token"`
	USDMicros uint64    `json:"usdMicros"`
	Decimals  uint8     `json:"decimals"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PriceSource returns the latest known price for a token.
type PriceSource interface {
	GetPrice(ctx context.Context, token string) (Price, error)
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// StaticSource serves prices set in process, from configuration or tests.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]Price
}

// NewStaticSource returns an empty source.
func NewStaticSource() *StaticSource {
	return &StaticSource{prices: make(map[string]Price)}
}

// Set stores or replaces the price of a token.
func (s *StaticSource) Set(p Price) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Token = normalizeToken(p.Token)
	s.prices[p.Token] = p
}

// GetPrice implements PriceSource.
func (s *StaticSource) GetPrice(_ context.Context, token string) (Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[normalizeToken(token)]
	if !ok {
		return Price{}, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return p, nil
}

// Reader wraps a PriceSource with staleness and configuration checks.
type Reader struct {
	source PriceSource
	maxAge time.Duration
	now    func() time.Time
}

// NewReader builds a reader. A non-positive maxAge selects DefaultMaxAge.
func NewReader(source PriceSource, maxAge time.Duration) *Reader {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Reader{source: source, maxAge: maxAge, now: time.Now}
}

// SetNowFunc overrides the clock for tests.
func (r *Reader) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.now = now
}

// Price returns a usable price or the reason it cannot be used.
func (r *Reader) Price(ctx context.Context, token string) (Price, error) {
	if r == nil || r.source == nil {
		return Price{}, ErrPriceNotSet
	}
	p, err := r.source.GetPrice(ctx, token)
	if err != nil {
		return Price{}, err
	}
	if !p.Enabled {
		return Price{}, fmt.Errorf("%w: %s", ErrTokenDisabled, token)
	}
	if p.USDMicros == 0 {
		return Price{}, fmt.Errorf("%w: %s", ErrPriceNotSet, token)
	}
	if age := r.now().Sub(p.UpdatedAt); age > r.maxAge {
		return Price{}, fmt.Errorf("%w: %s updated %s ago", ErrStalePrice, token, age.Truncate(time.Second))
	}
	return p, nil
}

// USDValue converts amount base units into micro-dollars, rounding down.
func (r *Reader) USDValue(ctx context.Context, token string, amount *uint256.Int) (*uint256.Int, Price, error) {
	p, err := r.Price(ctx, token)
	if err != nil {
		return nil, Price{}, err
	}
	if amount == nil {
		return new(uint256.Int), p, nil
	}
	denominator := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(p.Decimals)))
	value, overflow := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(p.USDMicros), denominator)
	if overflow {
		return nil, Price{}, fmt.Errorf("oracle: usd value of %s %s overflows", amount, token)
	}
	return value, p, nil
}
