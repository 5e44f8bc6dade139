// Package audit records agent activity: hashed queries and answers with their
// approximate cost grouped by session, and image classifications awaiting
// owner review. An owner-set profile pins the dataset the agent serves from
// and the one community it may log for.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stakecurate/native/common"
	"stakecurate/native/contest"
)

const maxHashLen = 128

// Interaction is one logged agent exchange.
type Interaction struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID    uuid.UUID `gorm:"type:uuid;index" json:"sessionId"`
	Agent        string    `gorm:"index" json:"agent"`
	QueryHash    string    `gorm:"not null" json:"queryHash"`
	AnswerHash   string    `gorm:"not null" json:"answerHash"`
	CostMicroUSD uint64    `json:"costMicroUsd"`
	CommunityID  string    `gorm:"index" json:"communityId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AppendParams is the payload of an interaction append.
type AppendParams struct {
	SessionID    string `json:"sessionId"`
	QueryHash    string `json:"queryHash"`
	AnswerHash   string `json:"answerHash"`
	CostMicroUSD uint64 `json:"costMicroUsd"`
	CommunityID  string `json:"communityId"`
}

// Authorizer checks settings-level permissions. *contest.Engine satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, op contest.Operation, caller string) error
}

// Open connects to the audit database. Driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", driver, err)
	}
	return db, nil
}

// AutoMigrate creates the interaction, profile and classification tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Interaction{}, &Profile{}, &Classification{})
}

// Log appends and reads interactions.
type Log struct {
	db   *gorm.DB
	auth Authorizer
	now  func() time.Time
}

// NewLog wires the log to its database and permission check.
func NewLog(db *gorm.DB, auth Authorizer) *Log {
	return &Log{db: db, auth: auth, now: time.Now}
}

func validHash(h string) bool {
	return h != "" && len(h) <= maxHashLen && !strings.ContainsAny(h, " \t\n")
}

// Append records an interaction on behalf of an authorised agent.
func (l *Log) Append(ctx context.Context, caller string, in AppendParams) (*Interaction, error) {
	const op = "audit_append"
	if l.auth == nil {
		return nil, common.Unauthorized(op, "no authorizer configured")
	}
	if err := l.auth.Authorize(ctx, contest.OpAuditAppend, caller); err != nil {
		return nil, err
	}
	session, err := uuid.Parse(strings.TrimSpace(in.SessionID))
	if err != nil {
		return nil, common.Validation(op, "session id must be a uuid")
	}
	if !validHash(in.QueryHash) || !validHash(in.AnswerHash) {
		return nil, common.Validation(op, "query and answer hashes required (at most %d characters)", maxHashLen)
	}
	community := strings.TrimSpace(in.CommunityID)
	if community != "" {
		profile, err := l.Profile(ctx)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		if profile != nil && profile.CommunityID != "" && profile.CommunityID != community {
			return nil, common.Validation(op, "community mismatch: agent serves %s", profile.CommunityID)
		}
	}
	record := &Interaction{
		ID:           uuid.New(),
		SessionID:    session,
		Agent:        caller,
		QueryHash:    in.QueryHash,
		AnswerHash:   in.AnswerHash,
		CostMicroUSD: in.CostMicroUSD,
		CommunityID:  community,
		CreatedAt:    l.now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("audit: insert interaction: %w", err)
	}
	return record, nil
}

// Session returns the interactions of a session, oldest first.
func (l *Log) Session(ctx context.Context, sessionID string) ([]Interaction, error) {
	session, err := uuid.Parse(strings.TrimSpace(sessionID))
	if err != nil {
		return nil, common.Validation("audit_session", "session id must be a uuid")
	}
	var out []Interaction
	err = l.db.WithContext(ctx).Where("session_id = ?", session).Order("created_at asc").Find(&out).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("audit: query session: %w", err)
	}
	if len(out) == 0 {
		return nil, common.NotFound("audit_session", "session %s has no interactions", session)
	}
	return out, nil
}

// TotalCost sums the logged cost of a community's interactions.
func (l *Log) TotalCost(ctx context.Context, communityID string) (uint64, error) {
	var total uint64
	err := l.db.WithContext(ctx).Model(&Interaction{}).
		Where("community_id = ?", communityID).
		Select("COALESCE(SUM(cost_micro_usd), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("audit: sum cost: %w", err)
	}
	return total, nil
}
