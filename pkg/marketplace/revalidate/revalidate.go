// Package revalidate emits page-cache invalidation notices to the rendering layer.
package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/mikepea/marketplace/pkg/marketplace/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	PathAdminProducts = "/admin/products"
	PathHome          = "/"
	PathProducts      = "/products"
)

// ProductPath is the detail page of a product
func ProductPath(slug string) string {
	return PathProducts + "/" + slug
}

// Notice is the payload published on every sink
type Notice struct {
	Paths []string  `json:"paths"`
	At    time.Time `json:"at"`
}

// Notifier delivers invalidation notices
type Notifier interface {
	Notify(ctx context.Context, paths ...string) error
	Close() error
}

// New builds the notifier selected by cfg.Driver
func New(cfg config.Revalidate, logger *zap.Logger) (Notifier, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisNotifier(client, cfg.RedisChannel), nil
	case "kafka":
		return NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("unknown revalidate driver %q", cfg.Driver)
	}
}

// LogNotifier only records notices; used when no rendering layer listens
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, paths ...string) error {
	n.logger.Info("revalidate", zap.Strings("paths", paths))
	return nil
}

func (n *LogNotifier) Close() error { return nil }

// RedisNotifier publishes notices on a pub/sub channel
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, paths ...string) error {
	payload, err := json.Marshal(Notice{Paths: paths, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", n.channel, err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// KafkaNotifier produces one message per notice, keyed by the first path
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating producer: %w", err)
	}
	return &KafkaNotifier{producer: p, topic: topic}, nil
}

func (n *KafkaNotifier) Notify(_ context.Context, paths ...string) error {
	payload, err := json.Marshal(Notice{Paths: paths, At: time.Now().UTC()})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Value: sarama.ByteEncoder(payload),
	}
	if len(paths) > 0 {
		msg.Key = sarama.StringEncoder(paths[0])
	}

	if _, _, err := n.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
