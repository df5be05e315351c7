package tabular

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"sheetpipe/internal/failure"
)

// ParquetSchema describes one optional UTF8 column per sheet column,
// named col_1..col_n since sheets carry no reliable header.
func ParquetSchema(width int) []string {
	md := make([]string, 0, width)
	for i := 1; i <= width; i++ {
		md = append(md, fmt.Sprintf("name=col_%d, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=OPTIONAL", i))
	}
	return md
}

// WriteParquetFile writes rows to path as a single-row-group Parquet file.
// Missing trailing cells are stored as nulls.
func WriteParquetFile(path string, rows [][]string) error {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return failure.Newf(failure.KindWrite, "write parquet", "no columns to write")
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return failure.New(failure.KindWrite, "parquet file writer", err)
	}

	pw, err := writer.NewCSVWriter(ParquetSchema(width), fw, 1)
	if err != nil {
		_ = fw.Close()
		return failure.New(failure.KindWrite, "parquet writer", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED

	rec := make([]*string, width)
	for _, r := range rows {
		for i := range rec {
			rec[i] = nil
			if i < len(r) {
				v := r[i]
				rec[i] = &v
			}
		}
		if err := pw.WriteString(rec); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return failure.New(failure.KindWrite, "parquet write row", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return failure.New(failure.KindWrite, "parquet write stop", err)
	}
	if err := fw.Close(); err != nil {
		return failure.New(failure.KindWrite, "parquet close", err)
	}
	return nil
}
