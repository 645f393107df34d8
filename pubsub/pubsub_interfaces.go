package pubsub

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
)

// pubsubClient abstracts *pubsub.Client for testing.
type pubsubClient interface {
	Publisher(topic string) pubsubPublisher
	TopicAdmin() topicAdmin
	SubscriptionAdmin() subscriptionAdmin
}

// pubsubPublisher abstracts *pubsub.Publisher for testing.
type pubsubPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) pubsubPublishResult
	Stop()
	SetDelayThreshold(d time.Duration)
	SetCountThreshold(n int)
	SetByteThreshold(n int)
}

// pubsubPublishResult abstracts *pubsub.PublishResult for testing.
type pubsubPublishResult interface {
	Get(ctx context.Context) (serverID string, err error)
}

// topicAdmin abstracts the topic admin client for testing.
type topicAdmin interface {
	CreateTopic(ctx context.Context, topic *pubsubpb.Topic) (*pubsubpb.Topic, error)
}

// subscriptionAdmin abstracts the unary subscription RPCs used for explicit
// lease management.
type subscriptionAdmin interface {
	CreateSubscription(ctx context.Context, sub *pubsubpb.Subscription) (*pubsubpb.Subscription, error)
	Pull(ctx context.Context, req *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error)
	ModifyAckDeadline(ctx context.Context, req *pubsubpb.ModifyAckDeadlineRequest) error
	Acknowledge(ctx context.Context, req *pubsubpb.AcknowledgeRequest) error
}
