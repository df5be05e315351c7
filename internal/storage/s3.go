package storage

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sheetpipe/internal/failure"
)

type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object identifies an uploaded object.
type Object struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	ETag   string `json:"etag,omitempty"`
	Size   int64  `json:"bytes"`
}

// UploadFile puts the bytes of the local file at path to bucket/key,
// replacing any existing object.
func UploadFile(ctx context.Context, api PutObjectAPI, bucket, key, path, contentType string) (*Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.New(failure.KindUpload, "open "+path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, failure.New(failure.KindUpload, "stat "+path, err)
	}

	out, err := api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, failure.New(failure.KindUpload, "s3 putobject s3://"+bucket+"/"+key, err)
	}

	return &Object{
		Bucket: bucket,
		Key:    key,
		ETag:   strings.Trim(aws.ToString(out.ETag), `"`),
		Size:   st.Size(),
	}, nil
}
