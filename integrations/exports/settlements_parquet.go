package exports

import (
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"stakecurate/native/contest"
)

type parquetRow struct {
	ContestID int64  `parquet:"name=contest_id, type=INT64"`
	Outcome   string `parquet:"name=outcome, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Winner    string `parquet:"name=winner, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Account   string `parquet:"name=account, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Amount    string `parquet:"name=amount, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Role      string `parquet:"name=role, type=UTF8, encoding=PLAIN_DICTIONARY"`
	SettledAt string `parquet:"name=settled_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Digest    string `parquet:"name=digest, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// WriteSettlementsParquet writes the settlement rows to path with snappy
// compression and returns the number of rows written.
func WriteSettlementsParquet(path string, settlements []*contest.Settlement) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("exports: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.RowGroupSize = 16 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := Flatten(settlements)
	for _, row := range rows {
		pr := &parquetRow{
			ContestID: int64(row.ContestID),
			Outcome:   row.Outcome,
			Winner:    row.Winner,
			Account:   row.Account,
			Amount:    row.Amount,
			Role:      row.Role,
			SettledAt: row.SettledAt.Format(time.RFC3339Nano),
			Digest:    row.Digest,
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return 0, fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("exports: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("exports: close parquet file: %w", err)
	}
	return len(rows), nil
}
