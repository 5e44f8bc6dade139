package exports

import (
	"bytes"
	"encoding/json"
	"time"

	"stakecurate/native/contest"
)

// SettlementsJSONL builds a JSON Lines export and returns the payload
// alongside a checksum.
func SettlementsJSONL(settlements []*contest.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range Flatten(settlements) {
		payload := map[string]interface{}{
			"contest_id": row.ContestID,
			"outcome":    row.Outcome,
			"winner":     row.Winner,
			"account":    row.Account,
			"amount":     row.Amount,
			"role":       row.Role,
			"settled_at": row.SettledAt.Format(time.RFC3339Nano),
			"digest":     row.Digest,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
