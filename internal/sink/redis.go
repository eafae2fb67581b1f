package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisClient is the part of *redis.Client the sink uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Close() error
}

// RedisConfig selects the server and key layout.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Channel receives every message via PUBLISH.
	Channel string
	// KeyPrefix names the history list: <prefix>:<device>:data.
	KeyPrefix string
	// HistoryLen bounds the history list; zero disables it.
	HistoryLen int64
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		PoolSize:   4,
		Channel:    "picoctl:measurements",
		KeyPrefix:  "picoctl",
		HistoryLen: 1000,
	}
}

// Message is the JSON document published for each event.
type Message struct {
	Kind        string                `json:"kind"`
	Device      string                `json:"device"`
	Burst       string                `json:"burst,omitempty"`
	Time        time.Time             `json:"time"`
	Measurement *protocol.Measurement `json:"measurement,omitempty"`
	Summary     *protocol.Summary     `json:"summary,omitempty"`
}

// RedisSink publishes measurements and summaries to a channel and keeps the
// latest ones in a trimmed list.
type RedisSink struct {
	client  redisClient
	cfg     RedisConfig
	device  string
	listKey string
	logger  zerolog.Logger
	now     func() time.Time
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, cfg RedisConfig, device string, logger zerolog.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis sink: connect %s: %w", cfg.Addr, err)
	}
	logger.Info().Str("addr", cfg.Addr).Str("channel", cfg.Channel).Msg("redis connected")
	return newRedisSink(client, cfg, device, logger), nil
}

func newRedisSink(client redisClient, cfg RedisConfig, device string, logger zerolog.Logger) *RedisSink {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(device), " ", "_"))
	if slug == "" {
		slug = "unknown"
	}
	return &RedisSink{
		client:  client,
		cfg:     cfg,
		device:  device,
		listKey: fmt.Sprintf("%s:%s:data", cfg.KeyPrefix, slug),
		logger:  logger,
		now:     time.Now,
	}
}

// ListKey is the history list key.
func (s *RedisSink) ListKey() string {
	return s.listKey
}

func (s *RedisSink) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis sink: encode: %w", err)
	}
	if err := s.client.Publish(ctx, s.cfg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis sink: publish: %w", err)
	}
	if s.cfg.HistoryLen <= 0 {
		return nil
	}
	if err := s.client.LPush(ctx, s.listKey, payload).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", s.listKey).Msg("history push failed")
		return nil
	}
	if err := s.client.LTrim(ctx, s.listKey, 0, s.cfg.HistoryLen-1).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", s.listKey).Msg("history trim failed")
	}
	return nil
}

func (s *RedisSink) HandleMeasurement(ctx context.Context, m protocol.Measurement) error {
	return s.publish(ctx, Message{
		Kind:        "measurement",
		Device:      s.device,
		Time:        s.now(),
		Measurement: &m,
	})
}

func (s *RedisSink) HandleSummary(ctx context.Context, sum protocol.Summary) error {
	return s.publish(ctx, Message{
		Kind:    "summary",
		Device:  s.device,
		Burst:   sum.ID,
		Time:    s.now(),
		Summary: &sum,
	})
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
