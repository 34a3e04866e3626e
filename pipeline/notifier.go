// Package pipeline implements the four-stage batch driver (ingest, extract,
// verify, analyze) that ties the repositories, adapters, verification
// engine, and discrepancy analyzer together into one resumable run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Notifier publishes a one-line stage-completion notification. Grounded on
// the teacher's sns_client.go singleton-client pattern, generalized to an
// interface so the orchestrator can be tested against a fake.
type Notifier interface {
	Notify(ctx context.Context, stage string, summary interface{}) error
}

// SNSNotifier publishes stage-completion summaries to one SNS topic.
type SNSNotifier struct {
	client   *sns.Client
	topicARN string
}

var (
	snsClientOnce sync.Once
	sharedClient  *sns.Client
)

// NewSNSNotifier returns an SNSNotifier for topicARN, lazily initializing
// the underlying SNS client from the default AWS credential chain.
func NewSNSNotifier(ctx context.Context, region, topicARN string) (*SNSNotifier, error) {
	var initErr error
	snsClientOnce.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			initErr = fmt.Errorf("failed to load AWS config for SNS: %w", err)
			return
		}
		sharedClient = sns.NewFromConfig(cfg)
		log.Println("SNS client initialized")
	})
	if initErr != nil {
		return nil, initErr
	}
	return &SNSNotifier{client: sharedClient, topicARN: topicARN}, nil
}

// Notify publishes stage and summary as one JSON message to the topic.
func (n *SNSNotifier) Notify(ctx context.Context, stage string, summary interface{}) error {
	if n.topicARN == "" {
		return nil
	}
	encoded, err := json.Marshal(struct {
		Stage   string      `json:"stage"`
		Summary interface{} `json:"summary"`
	}{Stage: stage, Summary: summary})
	if err != nil {
		return fmt.Errorf("failed to encode notification for stage %s: %w", stage, err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(encoded)),
		Subject:  aws.String(fmt.Sprintf("claimauditor: %s complete", stage)),
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", stage, err)
	}
	return nil
}

// NopNotifier discards all notifications, used when no SNS topic is
// configured.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, stage string, summary interface{}) error { return nil }
