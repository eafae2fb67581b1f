package config

import (
	"github.com/danmuck/picoctl/internal/protocol"
	"github.com/danmuck/picoctl/internal/protocol/session"
	"github.com/danmuck/picoctl/internal/serial"
	"github.com/danmuck/picoctl/internal/sink"
)

// SerialConfig returns the port settings for device.
func (c Config) SerialConfig(device string) serial.Config {
	cfg := serial.DefaultConfig(device)
	cfg.Baud = c.Device.Baud
	return cfg
}

// SessionConfig overlays the session section on session defaults.
func (c Config) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.ReadTimeout = c.Session.ReadTimeout
	cfg.VersionTimeout = c.Session.VersionTimeout
	cfg.WriteChunkSize = c.Session.WriteChunkSize
	cfg.WriteChunkDelay = c.Session.WriteChunkDelay
	cfg.ProbeAttempts = c.Session.ProbeAttempts
	cfg.Decoder = protocol.DecoderConfig{
		Encoding: c.Protocol.Encoding,
		Tally:    c.Protocol.Tally,
	}
	return cfg
}

// RedisSinkConfig maps the redis section to the sink settings.
func (c Config) RedisSinkConfig() sink.RedisConfig {
	cfg := sink.DefaultRedisConfig()
	cfg.Addr = c.Redis.Addr
	cfg.Password = c.Redis.Password
	cfg.DB = c.Redis.DB
	cfg.Channel = c.Redis.Channel
	cfg.KeyPrefix = c.Redis.KeyPrefix
	cfg.HistoryLen = c.Redis.HistoryLen
	return cfg
}
