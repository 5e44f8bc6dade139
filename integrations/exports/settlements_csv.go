package exports

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"stakecurate/native/contest"
)

// SettlementsCSV builds a CSV export and returns the payload alongside a
// SHA-256 checksum of it.
func SettlementsCSV(settlements []*contest.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"contest_id", "outcome", "winner", "account", "amount", "role", "settled_at", "digest"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, row := range Flatten(settlements) {
		record := []string{
			strconv.FormatUint(row.ContestID, 10),
			row.Outcome,
			row.Winner,
			row.Account,
			row.Amount,
			row.Role,
			row.SettledAt.Format(time.RFC3339Nano),
			row.Digest,
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
