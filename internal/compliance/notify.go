package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Shopify compliance topic names, used as event kinds.
const (
	EventCustomerDataRequest = "customers/data_request"
	EventCustomerRedact      = "customers/redact"
	EventShopRedact          = "shop/redact"
)

type Event struct {
	Kind      string `json:"event"`
	RequestID string `json:"request_id"`
	SubjectID string `json:"subject_id"`
	At        string `json:"at"`
}

// Notifier records that a compliance request was served.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes each event as JSON to one topic (audit trail / alerting).
type SNSNotifier struct {
	client   SNSPublisher
	topicArn string
}

func NewSNSNotifier(client SNSPublisher, topicArn string) *SNSNotifier {
	return &SNSNotifier{client: client, topicArn: strings.TrimSpace(topicArn)}
}

func (n *SNSNotifier) Notify(ctx context.Context, ev Event) error {
	if ev.At == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(fmt.Sprintf("convexbot: %s", ev.Kind)),
		Message:  aws.String(string(b)),
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", ev.Kind, err)
	}
	return nil
}
