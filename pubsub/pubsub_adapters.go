package pubsub

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub/v2"
	vkit "cloud.google.com/go/pubsub/v2/apiv1"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
)

// realPubSubClient wraps *pubsub.Client to implement pubsubClient.
type realPubSubClient struct {
	client *pubsub.Client
}

//nolint:ireturn // Returns interface for dependency injection pattern
func newRealPubSubClient(client *pubsub.Client) pubsubClient {
	return &realPubSubClient{client: client}
}

//nolint:ireturn // Interface required by pubsubClient interface
func (r *realPubSubClient) Publisher(topic string) pubsubPublisher {
	return newRealPublisher(r.client.Publisher(topic))
}

//nolint:ireturn // Interface required by pubsubClient interface
func (r *realPubSubClient) TopicAdmin() topicAdmin {
	return &realTopicAdmin{admin: r.client.TopicAdminClient}
}

//nolint:ireturn // Interface required by pubsubClient interface
func (r *realPubSubClient) SubscriptionAdmin() subscriptionAdmin {
	return &realSubscriptionAdmin{admin: r.client.SubscriptionAdminClient}
}

// realPublisher wraps *pubsub.Publisher to implement pubsubPublisher.
type realPublisher struct {
	publisher *pubsub.Publisher
}

//nolint:ireturn // Returns interface for dependency injection pattern
func newRealPublisher(publisher *pubsub.Publisher) pubsubPublisher {
	return &realPublisher{publisher: publisher}
}

//nolint:ireturn // Interface required by pubsubPublisher interface
func (r *realPublisher) Publish(ctx context.Context, msg *pubsub.Message) pubsubPublishResult {
	return r.publisher.Publish(ctx, msg)
}

func (r *realPublisher) Stop() {
	r.publisher.Stop()
}

func (r *realPublisher) SetDelayThreshold(d time.Duration) {
	r.publisher.PublishSettings.DelayThreshold = d
}

func (r *realPublisher) SetCountThreshold(n int) {
	r.publisher.PublishSettings.CountThreshold = n
}

func (r *realPublisher) SetByteThreshold(n int) {
	r.publisher.PublishSettings.ByteThreshold = n
}

// realTopicAdmin wraps the generated topic admin client to implement topicAdmin.
type realTopicAdmin struct {
	admin *vkit.TopicAdminClient
}

func (r *realTopicAdmin) CreateTopic(ctx context.Context, topic *pubsubpb.Topic) (*pubsubpb.Topic, error) {
	return r.admin.CreateTopic(ctx, topic)
}

// realSubscriptionAdmin wraps the generated subscription admin client to
// implement subscriptionAdmin.
type realSubscriptionAdmin struct {
	admin *vkit.SubscriptionAdminClient
}

func (r *realSubscriptionAdmin) CreateSubscription(ctx context.Context, sub *pubsubpb.Subscription) (*pubsubpb.Subscription, error) {
	return r.admin.CreateSubscription(ctx, sub)
}

func (r *realSubscriptionAdmin) Pull(ctx context.Context, req *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error) {
	return r.admin.Pull(ctx, req)
}

func (r *realSubscriptionAdmin) ModifyAckDeadline(ctx context.Context, req *pubsubpb.ModifyAckDeadlineRequest) error {
	return r.admin.ModifyAckDeadline(ctx, req)
}

func (r *realSubscriptionAdmin) Acknowledge(ctx context.Context, req *pubsubpb.AcknowledgeRequest) error {
	return r.admin.Acknowledge(ctx, req)
}
