package tabular

import (
	"encoding/csv"
	"io"
	"os"

	"sheetpipe/internal/failure"
)

// WriteCSV encodes rows as comma-delimited records, one per row, LF line endings.
func WriteCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return failure.New(failure.KindWrite, "encode csv", err)
	}
	return nil
}

// WriteCSVFile creates (or truncates) path and writes rows to it.
func WriteCSVFile(path string, rows [][]string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, failure.New(failure.KindWrite, "create scratch file", err)
	}

	if err := WriteCSV(f, rows); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, failure.New(failure.KindWrite, "close scratch file", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return 0, failure.New(failure.KindWrite, "stat scratch file", err)
	}
	return st.Size(), nil
}
