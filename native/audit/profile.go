package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stakecurate/native/common"
	"stakecurate/native/contest"
)

const profileID = 1

// Profile is the owner-maintained description of what the agent serves.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	DatasetHash string    `json:"datasetHash"`
	DatasetURI  string    `json:"datasetUri"`
	CommunityID string    `json:"communityId"`
	UpdatedBy   string    `json:"updatedBy"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProfileParams replaces the profile. Empty fields keep their current value.
type ProfileParams struct {
	DatasetHash string `json:"datasetHash"`
	DatasetURI  string `json:"datasetUri"`
	CommunityID string `json:"communityId"`
}

// Profile returns the current profile.
func (l *Log) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	err := l.db.WithContext(ctx).First(&p, profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFound("audit_profile", "no profile configured")
	}
	if err != nil {
		return nil, fmt.Errorf("audit: load profile: %w", err)
	}
	return &p, nil
}

// SetProfile updates the dataset metadata and community assignment.
func (l *Log) SetProfile(ctx context.Context, caller string, in ProfileParams) (*Profile, error) {
	const op = string(contest.OpAuditProfile)
	if l.auth == nil {
		return nil, common.Unauthorized(op, "no authorizer configured")
	}
	if err := l.auth.Authorize(ctx, contest.OpAuditProfile, caller); err != nil {
		return nil, err
	}
	in.DatasetHash = strings.TrimSpace(in.DatasetHash)
	if in.DatasetHash != "" && !validHash(in.DatasetHash) {
		return nil, common.Validation(op, "dataset hash at most %d characters without spaces", maxHashLen)
	}
	current, err := l.Profile(ctx)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if current == nil {
		current = &Profile{ID: profileID}
	}
	if in.DatasetHash != "" {
		current.DatasetHash = in.DatasetHash
	}
	if uri := strings.TrimSpace(in.DatasetURI); uri != "" {
		current.DatasetURI = uri
	}
	if community := strings.TrimSpace(in.CommunityID); community != "" {
		current.CommunityID = community
	}
	current.UpdatedBy = caller
	current.UpdatedAt = l.now().UTC()
	err = l.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(current).Error
	if err != nil {
		return nil, fmt.Errorf("audit: save profile: %w", err)
	}
	return current, nil
}
