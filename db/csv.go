package db

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"calhousing/housing"
)

// CSVLog appends records to a flat CSV file. There is no file locking:
// two processes appending at once can interleave rows.
type CSVLog struct {
	path string
}

func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

func (l *CSVLog) Path() string { return l.path }

func (l *CSVLog) Close() error { return nil }

// Append writes rec, preceded by the header row when the file is empty.
func (l *CSVLog) Append(ctx context.Context, rec housing.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rec.Features) != housing.NumFeatures {
		return fmt.Errorf("record has %d features, expected %d", len(rec.Features), housing.NumFeatures)
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(housing.Header()); err != nil {
			return err
		}
	}
	if err := writer.Write(rec.Row()); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

// LoadAll reads every record after the header row.
func (l *CSVLog) LoadAll(ctx context.Context) ([]housing.Record, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoLog, l.path)
		}
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records := make([]housing.Record, 0)
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 {
			continue
		}
		rec, err := housing.ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", l.path, line, err)
		}
		records = append(records, rec)
	}
}
