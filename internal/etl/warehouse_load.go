package etl

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"sheetpipe/internal/alerts"
	"sheetpipe/internal/config"
	"sheetpipe/internal/db"
	"sheetpipe/internal/failure"
	"sheetpipe/internal/security"
	"sheetpipe/internal/warehouse"
)

// LoadResult is returned to the Lambda runtime.
type LoadResult struct {
	OK        bool   `json:"ok"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Procedure string `json:"procedure"`
	Bucket    string `json:"bucket,omitempty"`
	Key       string `json:"key,omitempty"`
	ETag      string `json:"etag,omitempty"`
	Rows      int    `json:"rows,omitempty"`
}

// WarehouseLoad runs the warehouse's CSV import procedure.
type WarehouseLoad struct {
	cfg      *config.LoaderConfig
	log      *slog.Logger
	ssm      security.ParameterAPI
	dial     warehouse.Dialer
	ledger   *db.Ledger
	notifier *alerts.Notifier
}

func NewWarehouseLoad(awsCfg aws.Config, cfg *config.LoaderConfig, l *slog.Logger) *WarehouseLoad {
	h := &WarehouseLoad{
		cfg:      cfg,
		log:      l.WithGroup("s3-to-redshift"),
		ssm:      ssm.NewFromConfig(awsCfg),
		dial:     warehouse.Dial,
		notifier: alerts.NewNotifier(sns.NewFromConfig(awsCfg), cfg.NotifyTopicARN),
	}
	if cfg.LedgerEnabled() {
		h.ledger = db.NewLedger(dynamodb.NewFromConfig(awsCfg), cfg.PipelineTable)
	}
	return h
}

// Handle is triggered by an EventBridge schedule; the event is not used.
//
// With a pipeline table configured the procedure only runs when the
// exporter has recorded an export that no other run has claimed.
func (h *WarehouseLoad) Handle(ctx context.Context, _ events.CloudWatchEvent) (LoadResult, error) {
	res := LoadResult{Procedure: h.cfg.Procedure}
	w := h.cfg.Warehouse
	h.log.Info("load started", "host", w.Host, "database", w.Database, "procedure", h.cfg.Procedure)

	password, err := security.ResolvePassword(ctx, h.ssm, w.Password, w.PasswordParam)
	if err != nil {
		return h.fail(ctx, res, err)
	}

	var claimedAt string
	if h.ledger != nil {
		rec, ok, err := h.ledger.ClaimExport(ctx, h.cfg.Bucket, h.cfg.Key, h.cfg.ClaimTTL)
		if err != nil {
			return h.fail(ctx, res, err)
		}
		if !ok {
			h.log.Info("nothing to load", "bucket", h.cfg.Bucket, "key", h.cfg.Key)
			res.OK, res.Skipped, res.Reason = true, true, "no pending export"
			return res, nil
		}
		res.Bucket, res.Key, res.ETag, res.Rows = rec.Bucket, rec.Key, rec.ETag, rec.Rows
		claimedAt = rec.ClaimedAt
		h.log.Debug("export claimed", "exported_at", rec.ExportedAt, "rows", rec.Rows, "etag", rec.ETag)
	}

	if err := warehouse.Run(ctx, h.dial, w.ConnString(password), h.cfg.Statement()); err != nil {
		if h.ledger != nil {
			if rerr := h.ledger.ReleaseLoad(ctx, h.cfg.Bucket, h.cfg.Key, claimedAt, err); rerr != nil {
				h.log.Warn("claim not released", "error", rerr.Error())
			}
		}
		return h.fail(ctx, res, err)
	}

	if h.ledger != nil {
		if err := h.ledger.CompleteLoad(ctx, h.cfg.Bucket, h.cfg.Key, claimedAt); err != nil {
			return h.fail(ctx, res, err)
		}
	}

	res.OK = true
	h.log.Info("load finished", "procedure", h.cfg.Procedure)
	h.notify(ctx, "s3-to-redshift: ok", map[string]any{
		"Procedure": h.cfg.Procedure,
		"Database":  w.Database,
		"Rows":      res.Rows,
	})
	return res, nil
}

func (h *WarehouseLoad) fail(ctx context.Context, res LoadResult, err error) (LoadResult, error) {
	h.log.Error("load failed", "kind", string(failure.KindOf(err)), "error", err.Error())
	h.notify(ctx, "s3-to-redshift: failed", map[string]any{
		"Procedure": h.cfg.Procedure,
		"Database":  h.cfg.Warehouse.Database,
		"Kind":      failure.KindOf(err),
		"Error":     err.Error(),
	})
	res.OK = false
	return res, err
}

func (h *WarehouseLoad) notify(ctx context.Context, subject string, fields map[string]any) {
	if err := h.notifier.Notify(ctx, subject, fields); err != nil {
		h.log.Warn("notification not sent", "error", err.Error())
	}
}
