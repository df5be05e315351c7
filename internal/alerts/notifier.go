package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"sheetpipe/internal/failure"
)

// SNS rejects subjects longer than this.
const maxSubjectLen = 100

type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier publishes run outcomes to an SNS topic. With no topic it does nothing.
type Notifier struct {
	api      PublishAPI
	topicARN string
	now      func() time.Time
}

func NewNotifier(api PublishAPI, topicARN string) *Notifier {
	return &Notifier{api: api, topicARN: strings.TrimSpace(topicARN), now: time.Now}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.topicARN != "" && n.api != nil
}

// Notify sends subject with fields rendered as sorted "key: value" lines.
func (n *Notifier) Notify(ctx context.Context, subject string, fields map[string]any) error {
	if !n.Enabled() {
		return nil
	}

	_, err := n.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(truncate(subject, maxSubjectLen)),
		Message:  aws.String(n.body(fields)),
	})
	if err != nil {
		return failure.New(failure.KindNotify, "sns publish", err)
	}
	return nil
}

func (n *Notifier) body(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+2)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, fields[k]))
	}
	lines = append(lines, "", fmt.Sprintf("SentAt: %s", n.now().UTC().Format(time.RFC3339)))
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
