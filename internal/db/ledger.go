package db

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"sheetpipe/internal/failure"
)

const (
	StatusPending = "PENDING"
	StatusLoading = "LOADING"
	StatusLoaded  = "LOADED"
)

// Fixed width so stored timestamps compare lexicographically.
const timeLayout = "2006-01-02T15:04:05.000Z"

// ExportRecord is the hand-off between the exporter and the loader:
// one item per export target, overwritten by every export.
type ExportRecord struct {
	PK            string `dynamodbav:"PK"`
	Bucket        string `dynamodbav:"Bucket"`
	Key           string `dynamodbav:"Key"`
	ETag          string `dynamodbav:"ETag,omitempty"`
	Rows          int    `dynamodbav:"Rows"`
	Bytes         int64  `dynamodbav:"Bytes"`
	SpreadsheetID string `dynamodbav:"SpreadsheetId,omitempty"`
	Sheet         string `dynamodbav:"Sheet,omitempty"`
	ExportedAt    string `dynamodbav:"ExportedAt"`
	Status        string `dynamodbav:"Status"`
	ClaimedAt     string `dynamodbav:"ClaimedAt,omitempty"`
	LoadedAt      string `dynamodbav:"LoadedAt,omitempty"`
	LastError     string `dynamodbav:"LastError,omitempty"`
}

func ExportPK(bucket, key string) string {
	return fmt.Sprintf("EXPORT#%s/%s", bucket, key)
}

// Ledger records exports and lets exactly one loader claim each of them.
type Ledger struct {
	api   DynamoAPI
	table string
	now   func() time.Time
}

func NewLedger(api DynamoAPI, table string) *Ledger {
	return &Ledger{api: api, table: table, now: time.Now}
}

func (l *Ledger) stamp() string {
	return l.now().UTC().Format(timeLayout)
}

// RecordExport stores rec as PENDING, replacing whatever state the target had.
func (l *Ledger) RecordExport(ctx context.Context, rec ExportRecord) error {
	rec.PK = ExportPK(rec.Bucket, rec.Key)
	rec.Status = StatusPending
	rec.ClaimedAt, rec.LoadedAt, rec.LastError = "", "", ""
	if rec.ExportedAt == "" {
		rec.ExportedAt = l.stamp()
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return failure.New(failure.KindLedger, "marshal export record", err)
	}

	if _, err := l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      item,
	}); err != nil {
		return failure.New(failure.KindLedger, "ddb put export record", err)
	}
	return nil
}

// ClaimExport moves a PENDING export (or one whose claim is older than ttl)
// to LOADING. It returns false when there is nothing to load. The returned
// record's ClaimedAt identifies the claim for CompleteLoad and ReleaseLoad.
func (l *Ledger) ClaimExport(ctx context.Context, bucket, key string, ttl time.Duration) (*ExportRecord, bool, error) {
	now := l.now().UTC()

	out, err := l.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(l.table),
		Key:                 pkKey(bucket, key),
		UpdateExpression:    aws.String("SET #status = :loading, #claimedAt = :now"),
		ConditionExpression: aws.String("#status = :pending OR (#status = :loading AND #claimedAt < :stale)"),
		ExpressionAttributeNames: map[string]string{
			"#status":    "Status",
			"#claimedAt": "ClaimedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: StatusPending},
			":loading": &types.AttributeValueMemberS{Value: StatusLoading},
			":now":     &types.AttributeValueMemberS{Value: now.Format(timeLayout)},
			":stale":   &types.AttributeValueMemberS{Value: now.Add(-ttl).Format(timeLayout)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, false, nil
		}
		return nil, false, failure.New(failure.KindLedger, "ddb claim export", err)
	}

	var rec ExportRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return nil, false, failure.New(failure.KindLedger, "unmarshal export record", err)
	}
	return &rec, true, nil
}

// CompleteLoad marks the export LOADED if the claim taken at claimedAt still holds it.
func (l *Ledger) CompleteLoad(ctx context.Context, bucket, key, claimedAt string) error {
	return l.finish(ctx, bucket, key, claimedAt, "SET #status = :next, #loadedAt = :now REMOVE #lastError", map[string]types.AttributeValue{
		":next": &types.AttributeValueMemberS{Value: StatusLoaded},
		":now":  &types.AttributeValueMemberS{Value: l.stamp()},
	}, map[string]string{"#loadedAt": "LoadedAt", "#lastError": "LastError"})
}

// ReleaseLoad returns the export to PENDING so the next run retries it,
// if the claim taken at claimedAt still holds it.
func (l *Ledger) ReleaseLoad(ctx context.Context, bucket, key, claimedAt string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return l.finish(ctx, bucket, key, claimedAt, "SET #status = :next, #lastError = :err REMOVE #claimedAt", map[string]types.AttributeValue{
		":next": &types.AttributeValueMemberS{Value: StatusPending},
		":err":  &types.AttributeValueMemberS{Value: msg},
	}, map[string]string{"#lastError": "LastError"})
}

func (l *Ledger) finish(ctx context.Context, bucket, key, claimedAt, update string, values map[string]types.AttributeValue, names map[string]string) error {
	values[":loading"] = &types.AttributeValueMemberS{Value: StatusLoading}
	values[":mine"] = &types.AttributeValueMemberS{Value: claimedAt}
	names["#status"] = "Status"
	names["#claimedAt"] = "ClaimedAt"

	_, err := l.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(l.table),
		Key:                       pkKey(bucket, key),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("#status = :loading AND #claimedAt = :mine"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		// The claim was retaken by another run or replaced by a newer export.
		// Either way the item now belongs to someone else.
		if isConditionFailed(err) {
			return nil
		}
		return failure.New(failure.KindLedger, "ddb finish load", err)
	}
	return nil
}

func pkKey(bucket, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: ExportPK(bucket, key)},
	}
}

func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}
