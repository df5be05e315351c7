package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetpipe/internal/failure"
)

type fakeS3 struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{ETag: aws.String(`"9b2cf535f27731c974343645a3985328"`)}, nil
}

func TestUploadFile(t *testing.T) {
	t.Run("upload file bytes to bucket and key", func(t *testing.T) {
		// given
		path := filepath.Join(t.TempDir(), "output.csv")
		content := []byte("a,b\n1,2\n")
		require.NoError(t, os.WriteFile(path, content, 0o644))
		api := &fakeS3{}

		// when
		obj, err := UploadFile(context.Background(), api, "raw-data", "sheets/out.csv", path, "text/csv")

		// then
		require.NoError(t, err)
		assert.Equal(t, "raw-data", api.bucket)
		assert.Equal(t, "sheets/out.csv", api.key)
		assert.Equal(t, "text/csv", api.contentType)
		assert.Equal(t, content, api.body)
		assert.Equal(t, &Object{Bucket: "raw-data", Key: "sheets/out.csv", ETag: "9b2cf535f27731c974343645a3985328", Size: int64(len(content))}, obj)
	})
	t.Run("return upload error when file is missing", func(t *testing.T) {
		_, err := UploadFile(context.Background(), &fakeS3{}, "b", "k", filepath.Join(t.TempDir(), "missing.csv"), "text/csv")

		assert.Equal(t, failure.KindUpload, failure.KindOf(err))
	})
	t.Run("return upload error when s3 rejects", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "output.csv")
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))

		_, err := UploadFile(context.Background(), &fakeS3{err: errors.New("AccessDenied")}, "b", "k", path, "text/csv")

		assert.Equal(t, failure.KindUpload, failure.KindOf(err))
		assert.ErrorContains(t, err, "AccessDenied")
	})
}
