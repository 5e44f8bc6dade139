package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stakecurate/native/common"
	"stakecurate/native/contest"
)

const maxConfidenceBps = 10_000

// Classification is one labelled image, optionally confirmed or overridden by
// the owner.
type Classification struct {
	SessionID     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"sessionId"`
	Agent         string     `gorm:"index" json:"agent"`
	ImageHash     string     `gorm:"not null" json:"imageHash"`
	PromptHash    string     `gorm:"not null" json:"promptHash"`
	Label         string     `gorm:"not null" json:"label"`
	ConfidenceBps uint32     `json:"confidenceBps"`
	Model         string     `json:"model"`
	CreatedAt     time.Time  `json:"createdAt"`
	Reviewed      bool       `json:"reviewed"`
	FinalLabel    string     `json:"finalLabel,omitempty"`
	Reviewer      string     `json:"reviewer,omitempty"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty"`
}

// ClassifyParams is the payload of a classification append.
type ClassifyParams struct {
	SessionID     string `json:"sessionId"`
	ImageHash     string `json:"imageHash"`
	PromptHash    string `json:"promptHash"`
	Label         string `json:"label"`
	ConfidenceBps uint32 `json:"confidenceBps"`
	Model         string `json:"model"`
}

// Classify records an agent's label for an image. Each session holds one
// classification.
func (l *Log) Classify(ctx context.Context, caller string, in ClassifyParams) (*Classification, error) {
	const op = "audit_classify"
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
	if !validHash(in.ImageHash) || !validHash(in.PromptHash) {
		return nil, common.Validation(op, "image and prompt hashes required (at most %d characters)", maxHashLen)
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return nil, common.Validation(op, "label required")
	}
	if in.ConfidenceBps > maxConfidenceBps {
		return nil, common.Validation(op, "confidence %d exceeds %d bps", in.ConfidenceBps, maxConfidenceBps)
	}
	if _, err := l.Classification(ctx, session.String()); err == nil {
		return nil, common.State(op, "session %s already classified", session)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	record := &Classification{
		SessionID:     session,
		Agent:         caller,
		ImageHash:     in.ImageHash,
		PromptHash:    in.PromptHash,
		Label:         label,
		ConfidenceBps: in.ConfidenceBps,
		Model:         strings.TrimSpace(in.Model),
		CreatedAt:     l.now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("audit: insert classification: %w", err)
	}
	return record, nil
}

// Classification returns the classification logged for a session.
func (l *Log) Classification(ctx context.Context, sessionID string) (*Classification, error) {
	session, err := uuid.Parse(strings.TrimSpace(sessionID))
	if err != nil {
		return nil, common.Validation("audit_classification", "session id must be a uuid")
	}
	var c Classification
	err = l.db.WithContext(ctx).First(&c, "session_id = ?", session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFound("audit_classification", "session %s has no classification", session)
	}
	if err != nil {
		return nil, fmt.Errorf("audit: load classification: %w", err)
	}
	return &c, nil
}

// Review records the owner's final label. A later review replaces an
// earlier one.
func (l *Log) Review(ctx context.Context, caller, sessionID, finalLabel string) (*Classification, error) {
	const op = string(contest.OpAuditReview)
	if l.auth == nil {
		return nil, common.Unauthorized(op, "no authorizer configured")
	}
	if err := l.auth.Authorize(ctx, contest.OpAuditReview, caller); err != nil {
		return nil, err
	}
	finalLabel = strings.TrimSpace(finalLabel)
	if finalLabel == "" {
		return nil, common.Validation(op, "final label required")
	}
	c, err := l.Classification(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	at := l.now().UTC()
	c.Reviewed = true
	c.FinalLabel = finalLabel
	c.Reviewer = caller
	c.ReviewedAt = &at
	if err := l.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fmt.Errorf("audit: save review: %w", err)
	}
	return c, nil
}
