package pubsub

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/slackmgr/types"
)

// mockPubSubClient implements pubsubClient for testing.
type mockPubSubClient struct {
	publisherFunc  func(topic string) pubsubPublisher
	defaultPub     pubsubPublisher
	topics         *mockTopicAdmin
	subscriptions  *mockSubscriptionAdmin
	publisherCalls []string
	mu             sync.Mutex
}

func newMockPubSubClient() *mockPubSubClient {
	return &mockPubSubClient{
		defaultPub:    newMockPublisher(),
		topics:        &mockTopicAdmin{},
		subscriptions: &mockSubscriptionAdmin{},
	}
}

//nolint:ireturn // Returns interface required by pubsubClient interface
func (m *mockPubSubClient) Publisher(topic string) pubsubPublisher {
	m.mu.Lock()
	m.publisherCalls = append(m.publisherCalls, topic)
	m.mu.Unlock()

	if m.publisherFunc != nil {
		return m.publisherFunc(topic)
	}
	return m.defaultPub
}

//nolint:ireturn // Returns interface required by pubsubClient interface
func (m *mockPubSubClient) TopicAdmin() topicAdmin {
	return m.topics
}

//nolint:ireturn // Returns interface required by pubsubClient interface
func (m *mockPubSubClient) SubscriptionAdmin() subscriptionAdmin {
	return m.subscriptions
}

// mockTopicAdmin implements topicAdmin for testing.
type mockTopicAdmin struct {
	createTopicFunc func(ctx context.Context, topic *pubsubpb.Topic) (*pubsubpb.Topic, error)
	created         []string
	mu              sync.Mutex
}

func (m *mockTopicAdmin) CreateTopic(ctx context.Context, topic *pubsubpb.Topic) (*pubsubpb.Topic, error) {
	m.mu.Lock()
	m.created = append(m.created, topic.GetName())
	m.mu.Unlock()

	if m.createTopicFunc != nil {
		return m.createTopicFunc(ctx, topic)
	}
	return topic, nil
}

// mockSubscriptionAdmin implements subscriptionAdmin for testing.
type mockSubscriptionAdmin struct {
	createSubscriptionFunc func(ctx context.Context, sub *pubsubpb.Subscription) (*pubsubpb.Subscription, error)
	pullFunc               func(ctx context.Context, req *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error)
	modifyAckDeadlineFunc  func(ctx context.Context, req *pubsubpb.ModifyAckDeadlineRequest) error
	acknowledgeFunc        func(ctx context.Context, req *pubsubpb.AcknowledgeRequest) error
	createdSubscriptions   []*pubsubpb.Subscription
	modifyRequests         []*pubsubpb.ModifyAckDeadlineRequest
	ackRequests            []*pubsubpb.AcknowledgeRequest
	mu                     sync.Mutex
}

func (m *mockSubscriptionAdmin) CreateSubscription(ctx context.Context, sub *pubsubpb.Subscription) (*pubsubpb.Subscription, error) {
	m.mu.Lock()
	m.createdSubscriptions = append(m.createdSubscriptions, sub)
	m.mu.Unlock()

	if m.createSubscriptionFunc != nil {
		return m.createSubscriptionFunc(ctx, sub)
	}
	return sub, nil
}

func (m *mockSubscriptionAdmin) Pull(ctx context.Context, req *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error) {
	if m.pullFunc != nil {
		return m.pullFunc(ctx, req)
	}
	return &pubsubpb.PullResponse{}, nil
}

func (m *mockSubscriptionAdmin) ModifyAckDeadline(ctx context.Context, req *pubsubpb.ModifyAckDeadlineRequest) error {
	m.mu.Lock()
	m.modifyRequests = append(m.modifyRequests, req)
	m.mu.Unlock()

	if m.modifyAckDeadlineFunc != nil {
		return m.modifyAckDeadlineFunc(ctx, req)
	}
	return nil
}

func (m *mockSubscriptionAdmin) Acknowledge(ctx context.Context, req *pubsubpb.AcknowledgeRequest) error {
	m.mu.Lock()
	m.ackRequests = append(m.ackRequests, req)
	m.mu.Unlock()

	if m.acknowledgeFunc != nil {
		return m.acknowledgeFunc(ctx, req)
	}
	return nil
}

// mockPublisher implements pubsubPublisher for testing.
type mockPublisher struct {
	publishFunc       func(ctx context.Context, msg *pubsub.Message) pubsubPublishResult
	stopCalled        atomic.Bool
	delayThreshold    time.Duration
	countThreshold    int
	byteThreshold     int
	publishedMessages []*pubsub.Message
	mu                sync.Mutex
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{}
}

//nolint:ireturn // Returns interface required by pubsubPublisher interface
func (m *mockPublisher) Publish(ctx context.Context, msg *pubsub.Message) pubsubPublishResult {
	m.mu.Lock()
	m.publishedMessages = append(m.publishedMessages, msg)
	m.mu.Unlock()

	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}
	return &mockPublishResult{}
}

func (m *mockPublisher) Stop() {
	m.stopCalled.Store(true)
}

func (m *mockPublisher) SetDelayThreshold(d time.Duration) {
	m.mu.Lock()
	m.delayThreshold = d
	m.mu.Unlock()
}

func (m *mockPublisher) SetCountThreshold(n int) {
	m.mu.Lock()
	m.countThreshold = n
	m.mu.Unlock()
}

func (m *mockPublisher) SetByteThreshold(n int) {
	m.mu.Lock()
	m.byteThreshold = n
	m.mu.Unlock()
}

// mockPublishResult implements pubsubPublishResult for testing.
type mockPublishResult struct {
	serverID string
	err      error
}

func (m *mockPublishResult) Get(_ context.Context) (string, error) {
	return m.serverID, m.err
}

// mockLogger implements types.Logger for testing.
type mockLogger struct {
	debugLogs []string
	errorLogs []string
	fields    map[string]any
	mu        sync.Mutex
}

func newMockLogger() *mockLogger {
	return &mockLogger{
		fields: make(map[string]any),
	}
}

func (m *mockLogger) Debug(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugLogs = append(m.debugLogs, msg)
}

func (m *mockLogger) Debugf(format string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugLogs = append(m.debugLogs, format)
}

func (m *mockLogger) Info(_ string) {}

func (m *mockLogger) Infof(_ string, _ ...any) {}

func (m *mockLogger) Warn(_ string) {}

func (m *mockLogger) Warnf(_ string, _ ...any) {}

func (m *mockLogger) Error(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorLogs = append(m.errorLogs, msg)
}

func (m *mockLogger) Errorf(format string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorLogs = append(m.errorLogs, format)
}

func (m *mockLogger) Fatal(_ string) {}

func (m *mockLogger) Fatalf(_ string, _ ...any) {}

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithField(key string, value any) types.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	newLogger := newMockLogger()
	maps.Copy(newLogger.fields, m.fields)
	newLogger.fields[key] = value
	return newLogger
}

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithFields(fields map[string]any) types.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	newLogger := newMockLogger()
	maps.Copy(newLogger.fields, m.fields)
	maps.Copy(newLogger.fields, fields)
	return newLogger
}
