package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetpipe/internal/failure"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{}, f.err
}

func TestNotify(t *testing.T) {
	t.Run("do nothing without topic", func(t *testing.T) {
		api := &fakeSNS{}
		n := NewNotifier(api, " ")

		require.NoError(t, n.Notify(context.Background(), "x", nil))

		assert.False(t, n.Enabled())
		assert.Empty(t, api.inputs)
	})
	t.Run("treat nil notifier as disabled", func(t *testing.T) {
		var n *Notifier
		assert.NoError(t, n.Notify(context.Background(), "x", nil))
	})
	t.Run("publish sorted fields to topic", func(t *testing.T) {
		api := &fakeSNS{}
		n := NewNotifier(api, "arn:aws:sns:us-east-1:123456789012:pipeline")
		n.now = func() time.Time { return time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC) }

		err := n.Notify(context.Background(), "sheets-to-s3: ok", map[string]any{"rows": 3, "bucket": "raw-data"})

		require.NoError(t, err)
		require.Len(t, api.inputs, 1)
		in := api.inputs[0]
		assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:pipeline", aws.ToString(in.TopicArn))
		assert.Equal(t, "sheets-to-s3: ok", aws.ToString(in.Subject))
		assert.Equal(t, "bucket: raw-data\nrows: 3\n\nSentAt: 2026-10-15T08:00:00Z", aws.ToString(in.Message))
	})
	t.Run("truncate long subject", func(t *testing.T) {
		api := &fakeSNS{}
		n := NewNotifier(api, "arn")

		require.NoError(t, n.Notify(context.Background(), strings.Repeat("s", 150), nil))

		assert.Len(t, aws.ToString(api.inputs[0].Subject), maxSubjectLen)
	})
	t.Run("return notify error when publish fails", func(t *testing.T) {
		n := NewNotifier(&fakeSNS{err: errors.New("throttled")}, "arn")

		err := n.Notify(context.Background(), "x", nil)

		assert.Equal(t, failure.KindNotify, failure.KindOf(err))
	})
}
