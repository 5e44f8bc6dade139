// Package exports renders closed-contest settlements for reconciliation.
// Every settlement payment becomes one row.
package exports

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"stakecurate/native/contest"
)

// Row is one payment of one settlement. The platform fee is emitted as a row
// with role "platform_fee".
type Row struct {
	ContestID uint64
	Outcome   string
	Winner    string
	Account   string
	Amount    string
	Role      string
	SettledAt time.Time
	Digest    string
}

// Flatten expands settlements into rows, fee first.
func Flatten(settlements []*contest.Settlement) []Row {
	rows := make([]Row, 0, len(settlements))
	for _, s := range settlements {
		if s == nil {
			continue
		}
		winner := ""
		if s.HasWinner {
			winner = strconv.FormatUint(uint64(s.WinnerIndex), 10)
		}
		base := Row{
			ContestID: s.ContestID,
			Outcome:   string(s.Outcome),
			Winner:    winner,
			SettledAt: time.Unix(0, int64(s.SettledAt)).UTC(),
			Digest:    s.Digest,
		}
		if s.Fee != nil && !s.Fee.IsZero() {
			fee := base
			fee.Account = s.PlatformAccount
			fee.Amount = s.Fee.Dec()
			fee.Role = contest.ReasonPlatformFee
			rows = append(rows, fee)
		}
		for _, p := range s.Payments {
			row := base
			row.Account = p.Account
			row.Amount = "0"
			if p.Amount != nil {
				row.Amount = p.Amount.Dec()
			}
			row.Role = p.Role
			rows = append(rows, row)
		}
	}
	return rows
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
