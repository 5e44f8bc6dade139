package exports

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"stakecurate/native/contest"
)

func sampleSettlements() []*contest.Settlement {
	return []*contest.Settlement{
		{
			ContestID:       1,
			Outcome:         contest.OutcomePaid,
			HasWinner:       true,
			WinnerIndex:     2,
			TotalPool:       uint256.NewInt(30),
			Fee:             uint256.NewInt(3),
			PlatformAccount: "platform",
			Payments: []contest.SettlementPayment{
				{Account: "creator", Amount: uint256.NewInt(24), Role: "creator"},
				{Account: "alice", Amount: uint256.NewInt(3), Role: "backer"},
			},
			SettledAt: 1_700_000_000_000_000_000,
			Digest:    "abc",
		},
		nil,
		{
			ContestID: 2,
			Outcome:   contest.OutcomeEmpty,
			TotalPool: uint256.NewInt(0),
			Fee:       uint256.NewInt(0),
		},
	}
}

func TestFlatten(t *testing.T) {
	rows := Flatten(sampleSettlements())
	if len(rows) != 3 {
		t.Fatalf("expected fee row plus two payments, got %d", len(rows))
	}
	if rows[0].Role != contest.ReasonPlatformFee || rows[0].Account != "platform" || rows[0].Amount != "3" {
		t.Fatalf("unexpected fee row %+v", rows[0])
	}
	if rows[1].Winner != "2" || rows[2].Account != "alice" {
		t.Fatalf("unexpected payment rows %+v", rows[1:])
	}
}

func TestSettlementsCSV(t *testing.T) {
	data, sum, err := SettlementsCSV(sampleSettlements())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if sum == "" || len(sum) != 64 {
		t.Fatalf("expected checksum, got %q", sum)
	}
	output := string(data)
	if !strings.HasPrefix(output, "contest_id,outcome,winner,account,amount,role,settled_at,digest") {
		t.Fatalf("missing header: %s", output)
	}
	if !strings.Contains(output, "1,paid,2,creator,24,creator,2023-11-14T22:13:20Z,abc") {
		t.Fatalf("missing creator row: %s", output)
	}
}

func TestSettlementsJSONL(t *testing.T) {
	data, sum, err := SettlementsJSONL(sampleSettlements())
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if sum == "" || bytes.Count(data, []byte("\n")) != 3 {
		t.Fatalf("expected three lines and checksum, got %q", data)
	}
	if !strings.Contains(string(data), `"role":"backer"`) {
		t.Fatalf("missing backer row: %s", data)
	}
}

func TestWriteSettlementsParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settlements.parquet")
	n, err := WriteSettlementsParquet(path, sampleSettlements())
	if err != nil {
		t.Fatalf("parquet: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected parquet file on disk (%v)", err)
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	if err != nil {
		t.Fatalf("parquet reader: %v", err)
	}
	defer pr.ReadStop()
	if got := pr.GetNumRows(); got != 3 {
		t.Fatalf("expected 3 stored rows, got %d", got)
	}
	rows := make([]parquetRow, 3)
	if err := pr.Read(&rows); err != nil {
		t.Fatalf("read rows: %v", err)
	}
	var backer *parquetRow
	for i := range rows {
		if rows[i].Role == "backer" {
			backer = &rows[i]
		}
	}
	if backer == nil || backer.Account != "alice" || backer.Amount != "3" || backer.ContestID != 1 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
