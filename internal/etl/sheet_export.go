package etl

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"sheetpipe/internal/alerts"
	"sheetpipe/internal/config"
	"sheetpipe/internal/db"
	"sheetpipe/internal/failure"
	"sheetpipe/internal/gsheets"
	"sheetpipe/internal/storage"
	"sheetpipe/internal/tabular"
)

const (
	csvContentType     = "text/csv"
	parquetContentType = "application/octet-stream"
)

// SheetReader returns every value of a spreadsheet's first worksheet.
type SheetReader interface {
	ReadFirstSheet(ctx context.Context, name string) (*gsheets.Sheet, error)
}

// ExportResult is returned to the Lambda runtime.
type ExportResult struct {
	OK            bool   `json:"ok"`
	SpreadsheetID string `json:"spreadsheet_id"`
	Sheet         string `json:"sheet"`
	Rows          int    `json:"rows"`
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	ETag          string `json:"etag,omitempty"`
	Bytes         int64  `json:"bytes"`
	ParquetKey    string `json:"parquet_key,omitempty"`
	Recorded      bool   `json:"recorded"`
}

// SheetExport copies the first worksheet of a Google spreadsheet to S3 as CSV.
type SheetExport struct {
	cfg      *config.ExporterConfig
	log      *slog.Logger
	s3       storage.PutObjectAPI
	ledger   *db.Ledger
	notifier *alerts.Notifier
	connect  func(ctx context.Context) (SheetReader, error)
}

func NewSheetExport(awsCfg aws.Config, cfg *config.ExporterConfig, l *slog.Logger) *SheetExport {
	h := &SheetExport{
		cfg:      cfg,
		log:      l.WithGroup("sheets-to-s3"),
		s3:       s3.NewFromConfig(awsCfg),
		notifier: alerts.NewNotifier(sns.NewFromConfig(awsCfg), cfg.NotifyTopicARN),
		connect: func(ctx context.Context) (SheetReader, error) {
			keyJSON, err := cfg.ServiceAccount.JSON()
			if err != nil {
				return nil, err
			}
			ts, err := gsheets.Authenticate(ctx, keyJSON)
			if err != nil {
				return nil, err
			}
			return gsheets.NewClient(ctx, ts)
		},
	}
	if cfg.LedgerEnabled() {
		h.ledger = db.NewLedger(dynamodb.NewFromConfig(awsCfg), cfg.PipelineTable)
	}
	return h
}

// Handle is triggered by an EventBridge schedule; the event is not used.
func (h *SheetExport) Handle(ctx context.Context, _ events.CloudWatchEvent) (ExportResult, error) {
	h.log.Info("export started", "spreadsheet", h.cfg.SpreadsheetName, "bucket", h.cfg.Bucket, "key", h.cfg.Key)

	res, err := h.export(ctx)
	if err != nil {
		h.log.Error("export failed", "kind", string(failure.KindOf(err)), "error", err.Error())
		h.notify(ctx, "sheets-to-s3: failed", map[string]any{
			"Spreadsheet": h.cfg.SpreadsheetName,
			"Kind":        failure.KindOf(err),
			"Error":       err.Error(),
		})
		return ExportResult{OK: false}, err
	}

	h.log.Info("export finished", "rows", res.Rows, "bytes", res.Bytes, "etag", res.ETag)
	h.notify(ctx, "sheets-to-s3: ok", map[string]any{
		"Spreadsheet": h.cfg.SpreadsheetName,
		"Sheet":       res.Sheet,
		"Rows":        res.Rows,
		"Object":      "s3://" + res.Bucket + "/" + res.Key,
	})
	return res, nil
}

func (h *SheetExport) export(ctx context.Context) (ExportResult, error) {
	reader, err := h.connect(ctx)
	if err != nil {
		return ExportResult{}, err
	}

	sheet, err := reader.ReadFirstSheet(ctx, h.cfg.SpreadsheetName)
	if err != nil {
		return ExportResult{}, err
	}
	h.log.Debug("sheet read", "spreadsheet_id", sheet.SpreadsheetID, "sheet", sheet.Title, "rows", len(sheet.Rows))

	path := h.cfg.ScratchPath()
	defer func() { _ = os.Remove(path) }()

	if _, err := tabular.WriteCSVFile(path, sheet.Rows); err != nil {
		return ExportResult{}, err
	}

	obj, err := storage.UploadFile(ctx, h.s3, h.cfg.Bucket, h.cfg.Key, path, csvContentType)
	if err != nil {
		return ExportResult{}, err
	}
	h.log.Debug("csv uploaded", "bucket", obj.Bucket, "key", obj.Key, "bytes", obj.Size)

	res := ExportResult{
		OK:            true,
		SpreadsheetID: sheet.SpreadsheetID,
		Sheet:         sheet.Title,
		Rows:          len(sheet.Rows),
		Bucket:        obj.Bucket,
		Key:           obj.Key,
		ETag:          obj.ETag,
		Bytes:         obj.Size,
	}

	if h.cfg.ParquetKey != "" {
		if err := h.exportParquet(ctx, path+".parquet", sheet.Rows); err != nil {
			return ExportResult{}, err
		}
		if len(sheet.Rows) > 0 {
			res.ParquetKey = h.cfg.ParquetKey
		}
	}

	if h.ledger != nil {
		if err := h.ledger.RecordExport(ctx, db.ExportRecord{
			Bucket:        obj.Bucket,
			Key:           obj.Key,
			ETag:          obj.ETag,
			Rows:          res.Rows,
			Bytes:         obj.Size,
			SpreadsheetID: sheet.SpreadsheetID,
			Sheet:         sheet.Title,
		}); err != nil {
			return ExportResult{}, err
		}
		res.Recorded = true
	}

	return res, nil
}

func (h *SheetExport) exportParquet(ctx context.Context, path string, rows [][]string) error {
	if len(rows) == 0 {
		h.log.Warn("sheet is empty, parquet copy skipped", "key", h.cfg.ParquetKey)
		return nil
	}
	defer func() { _ = os.Remove(path) }()

	if err := tabular.WriteParquetFile(path, rows); err != nil {
		return err
	}
	obj, err := storage.UploadFile(ctx, h.s3, h.cfg.Bucket, h.cfg.ParquetKey, path, parquetContentType)
	if err != nil {
		return err
	}
	h.log.Debug("parquet uploaded", "key", obj.Key, "bytes", obj.Size)
	return nil
}

func (h *SheetExport) notify(ctx context.Context, subject string, fields map[string]any) {
	if err := h.notifier.Notify(ctx, subject, fields); err != nil {
		h.log.Warn("notification not sent", "error", err.Error())
	}
}
