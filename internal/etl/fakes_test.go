package etl

import (
	"context"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sheetpipe/internal/db"
	"sheetpipe/internal/gsheets"
	"sheetpipe/internal/warehouse"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeReader struct {
	sheet *gsheets.Sheet
	err   error
	names []string
}

func (f *fakeReader) ReadFirstSheet(_ context.Context, name string) (*gsheets.Sheet, error) {
	f.names = append(f.names, name)
	return f.sheet, f.err
}

type putCall struct {
	bucket, key, contentType string
	body                     []byte
}

type fakeS3 struct {
	calls []putCall
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, putCall{
		bucket:      aws.ToString(in.Bucket),
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        b,
	})
	return &s3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
}

type fakeSNS struct {
	subjects []string
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.subjects = append(f.subjects, aws.ToString(in.Subject))
	return &sns.PublishOutput{}, nil
}

type fakeSSM struct {
	value string
	names []string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.names = append(f.names, aws.ToString(in.Name))
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(f.value)}}, nil
}

// fakeDynamo answers claims from claimed, or with claimErr.
type fakeDynamo struct {
	puts     []*dynamodb.PutItemInput
	updates  []*dynamodb.UpdateItemInput
	claimed  *db.ExportRecord
	claimErr error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if in.ReturnValues == "" {
		return &dynamodb.UpdateItemOutput{}, nil
	}
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	attrs, err := attributevalue.MarshalMap(f.claimed)
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{Attributes: attrs}, nil
}

type fakeTx struct {
	pgx.Tx
	execErr    error
	executed   []string
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.executed = append(t.executed, sql)
	return pgconn.NewCommandTag("CALL"), t.execErr
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeConn struct {
	tx      *fakeTx
	closed  bool
	dialed  int
	connStr string
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) { return c.tx, nil }

func (c *fakeConn) Close(context.Context) error {
	c.closed = true
	return nil
}

func (c *fakeConn) dial(_ context.Context, connString string) (warehouse.Conn, error) {
	c.dialed++
	c.connStr = connString
	return c, nil
}
