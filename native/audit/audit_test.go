package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"stakecurate/native/common"
	"stakecurate/native/contest"
)

// roles authorizes "agent" for appends and "owner" for everything else.
type roles struct{}

func (roles) Authorize(_ context.Context, op contest.Operation, caller string) error {
	want := "owner"
	if op == contest.OpAuditAppend {
		want = "agent"
	}
	if caller != want {
		return common.Unauthorized(string(op), "caller %s lacks role %s", caller, want)
	}
	return nil
}

func setupLog(t *testing.T) *Log {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared", filepath.Join(t.TempDir(), "audit.db"))
	db, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewLog(db, roles{})
}

func TestAppendAndReadSession(t *testing.T) {
	log := setupLog(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	log.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }
	session := uuid.New().String()
	ctx := context.Background()
	for i, cost := range []uint64{150, 250} {
		_, err := log.Append(ctx, "agent", AppendParams{
			SessionID:    session,
			QueryHash:    fmt.Sprintf("q%d", i),
			AnswerHash:   fmt.Sprintf("a%d", i),
			CostMicroUSD: cost,
			CommunityID:  "gardening",
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	got, err := log.Session(ctx, session)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(got) != 2 || got[0].QueryHash != "q0" || got[1].Agent != "agent" {
		t.Fatalf("unexpected interactions %+v", got)
	}
	total, err := log.TotalCost(ctx, "gardening")
	if err != nil || total != 400 {
		t.Fatalf("expected total cost 400, got %d (%v)", total, err)
	}
}

func TestAppendRejections(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()
	valid := AppendParams{SessionID: uuid.New().String(), QueryHash: "q", AnswerHash: "a"}

	if _, err := log.Append(ctx, "owner", valid); !errors.Is(err, common.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	bad := valid
	bad.SessionID = "not-a-uuid"
	if _, err := log.Append(ctx, "agent", bad); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	bad = valid
	bad.AnswerHash = ""
	if _, err := log.Append(ctx, "agent", bad); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for empty hash, got %v", err)
	}
	if _, err := log.Session(ctx, uuid.New().String()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found for empty session, got %v", err)
	}
	if _, err := Open("mysql", ""); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestProfilePinsCommunity(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()
	if _, err := log.Profile(ctx); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected no profile, got %v", err)
	}
	entry := AppendParams{SessionID: uuid.New().String(), QueryHash: "q", AnswerHash: "a", CommunityID: "anything"}
	if _, err := log.Append(ctx, "agent", entry); err != nil {
		t.Fatalf("append without profile: %v", err)
	}

	if _, err := log.SetProfile(ctx, "agent", ProfileParams{CommunityID: "dw"}); !errors.Is(err, common.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	p, err := log.SetProfile(ctx, "owner", ProfileParams{DatasetHash: "sha256:abc", DatasetURI: "ipfs://data", CommunityID: "dw"})
	if err != nil {
		t.Fatalf("set profile: %v", err)
	}
	if p.CommunityID != "dw" || p.UpdatedBy != "owner" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := log.SetProfile(ctx, "owner", ProfileParams{DatasetURI: "https://mirror/data"}); err != nil {
		t.Fatalf("update uri: %v", err)
	}
	p, err = log.Profile(ctx)
	if err != nil || p.DatasetHash != "sha256:abc" || p.DatasetURI != "https://mirror/data" || p.CommunityID != "dw" {
		t.Fatalf("partial update lost fields: %+v (%v)", p, err)
	}

	entry.SessionID = uuid.New().String()
	entry.CommunityID = "other"
	if _, err := log.Append(ctx, "agent", entry); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected community mismatch, got %v", err)
	}
	entry.CommunityID = "dw"
	if _, err := log.Append(ctx, "agent", entry); err != nil {
		t.Fatalf("append matching community: %v", err)
	}
	entry.SessionID = uuid.New().String()
	entry.CommunityID = ""
	if _, err := log.Append(ctx, "agent", entry); err != nil {
		t.Fatalf("append without community: %v", err)
	}
}

func TestClassifyAndReview(t *testing.T) {
	log := setupLog(t)
	ctx := context.Background()
	session := uuid.New().String()
	params := ClassifyParams{SessionID: session, ImageHash: "img", PromptHash: "prompt", Label: "cat", ConfidenceBps: 9_100, Model: "vlm-small"}

	if _, err := log.Classify(ctx, "owner", params); !errors.Is(err, common.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	bad := params
	bad.ConfidenceBps = 10_001
	if _, err := log.Classify(ctx, "agent", bad); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, err := log.Classify(ctx, "agent", params)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Reviewed || got.Label != "cat" {
		t.Fatalf("unexpected classification %+v", got)
	}
	if _, err := log.Classify(ctx, "agent", params); !errors.Is(err, common.ErrState) {
		t.Fatalf("expected duplicate session to be rejected, got %v", err)
	}

	if _, err := log.Review(ctx, "agent", session, "dog"); !errors.Is(err, common.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if _, err := log.Review(ctx, "owner", uuid.New().String(), "dog"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := log.Review(ctx, "owner", session, "dog"); err != nil {
		t.Fatalf("review: %v", err)
	}
	got, err = log.Classification(ctx, session)
	if err != nil {
		t.Fatalf("classification: %v", err)
	}
	if !got.Reviewed || got.FinalLabel != "dog" || got.Label != "cat" || got.Reviewer != "owner" || got.ReviewedAt == nil {
		t.Fatalf("review not persisted: %+v", got)
	}
}
