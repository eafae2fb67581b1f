package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/picoctl/internal/protocol"
)

// Config is the resolved picoctl runtime configuration.
type Config struct {
	Device   DeviceConfig
	Protocol ProtocolConfig
	Session  SessionConfig
	Output   OutputConfig
	Redis    RedisConfig
	Monitor  MonitorConfig
}

type DeviceConfig struct {
	// Port is the serial device. Empty probes ProbePatterns.
	Port          string
	ProbePatterns []string
	Baud          int
}

type ProtocolConfig struct {
	Encoding protocol.Encoding
	Tally    protocol.Tally
}

type SessionConfig struct {
	ReadTimeout     time.Duration
	VersionTimeout  time.Duration
	WriteChunkSize  int
	WriteChunkDelay time.Duration
	ProbeAttempts   int
}

type OutputConfig struct {
	Script          string
	CSV             string
	ReportDir       string
	LogMeasurements bool
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	Channel    string
	KeyPrefix  string
	HistoryLen int64
}

type MonitorConfig struct {
	Enabled     bool
	Addr        string
	CorsOrigins []string
	Capacity    int
}

// DefaultConfig returns a config that probes for an EmStat Pico over USB.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			ProbePatterns: []string{"/dev/ttyUSB*", "/dev/ttyACM*"},
			Baud:          230400,
		},
		Protocol: ProtocolConfig{
			Encoding: protocol.EncodingMethodSCRIPT,
			Tally:    protocol.TallyPerLine,
		},
		Session: SessionConfig{
			ReadTimeout:    30 * time.Second,
			VersionTimeout: 2 * time.Second,
			ProbeAttempts:  2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			Channel:    "picoctl:measurements",
			KeyPrefix:  "picoctl",
			HistoryLen: 1000,
		},
		Monitor: MonitorConfig{
			Addr:     ":9200",
			Capacity: 4096,
		},
	}
}

// picoctl config.toml key mapping.
type fileConfig struct {
	Device struct {
		Port          string   `toml:"port"`
		ProbePatterns []string `toml:"probe_patterns"`
		Baud          int      `toml:"baud"`
	} `toml:"device"`
	Protocol struct {
		Encoding string `toml:"encoding"`
		Tally    string `toml:"tally"`
	} `toml:"protocol"`
	Session struct {
		ReadTimeout     string `toml:"read_timeout"`
		VersionTimeout  string `toml:"version_timeout"`
		WriteChunkSize  int    `toml:"write_chunk_size"`
		WriteChunkDelay string `toml:"write_chunk_delay"`
		ProbeAttempts   int    `toml:"probe_attempts"`
	} `toml:"session"`
	Output struct {
		Script          string `toml:"script"`
		CSV             string `toml:"csv"`
		ReportDir       string `toml:"report_dir"`
		LogMeasurements bool   `toml:"log_measurements"`
	} `toml:"output"`
	Redis struct {
		Enabled    bool   `toml:"enabled"`
		Addr       string `toml:"addr"`
		Password   string `toml:"password"`
		DB         int    `toml:"db"`
		Channel    string `toml:"channel"`
		KeyPrefix  string `toml:"key_prefix"`
		HistoryLen int64  `toml:"history_len"`
	} `toml:"redis"`
	Monitor struct {
		Enabled     bool     `toml:"enabled"`
		Addr        string   `toml:"addr"`
		CorsOrigins []string `toml:"cors_origins"`
		Capacity    int      `toml:"capacity"`
	} `toml:"monitor"`
}

// Load reads path over DefaultConfig. Only keys present in the file
// override defaults; unknown keys are rejected.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load picoctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("load picoctl config: unknown keys: %s", strings.Join(keys, ", "))
	}

	cfg, err := overlay(DefaultConfig(), raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("load picoctl config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("load picoctl config: %w", err)
	}
	return cfg, nil
}

func overlay(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	var err error

	if meta.IsDefined("device", "port") {
		cfg.Device.Port = strings.TrimSpace(raw.Device.Port)
	}
	if meta.IsDefined("device", "probe_patterns") {
		cfg.Device.ProbePatterns = trimAll(raw.Device.ProbePatterns)
	}
	if meta.IsDefined("device", "baud") {
		cfg.Device.Baud = raw.Device.Baud
	}

	if meta.IsDefined("protocol", "encoding") {
		if cfg.Protocol.Encoding, err = protocol.ParseEncoding(raw.Protocol.Encoding); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("protocol", "tally") {
		if cfg.Protocol.Tally, err = protocol.ParseTally(strings.TrimSpace(raw.Protocol.Tally)); err != nil {
			return Config{}, err
		}
	}

	if meta.IsDefined("session", "read_timeout") {
		if cfg.Session.ReadTimeout, err = parseDuration("session.read_timeout", raw.Session.ReadTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("session", "version_timeout") {
		if cfg.Session.VersionTimeout, err = parseDuration("session.version_timeout", raw.Session.VersionTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("session", "write_chunk_size") {
		cfg.Session.WriteChunkSize = raw.Session.WriteChunkSize
	}
	if meta.IsDefined("session", "write_chunk_delay") {
		if cfg.Session.WriteChunkDelay, err = parseDuration("session.write_chunk_delay", raw.Session.WriteChunkDelay); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("session", "probe_attempts") {
		cfg.Session.ProbeAttempts = raw.Session.ProbeAttempts
	}

	if meta.IsDefined("output", "script") {
		cfg.Output.Script = strings.TrimSpace(raw.Output.Script)
	}
	if meta.IsDefined("output", "csv") {
		cfg.Output.CSV = strings.TrimSpace(raw.Output.CSV)
	}
	if meta.IsDefined("output", "report_dir") {
		cfg.Output.ReportDir = strings.TrimSpace(raw.Output.ReportDir)
	}
	if meta.IsDefined("output", "log_measurements") {
		cfg.Output.LogMeasurements = raw.Output.LogMeasurements
	}

	if meta.IsDefined("redis", "enabled") {
		cfg.Redis.Enabled = raw.Redis.Enabled
	}
	if meta.IsDefined("redis", "addr") {
		cfg.Redis.Addr = strings.TrimSpace(raw.Redis.Addr)
	}
	if meta.IsDefined("redis", "password") {
		cfg.Redis.Password = raw.Redis.Password
	}
	if meta.IsDefined("redis", "db") {
		cfg.Redis.DB = raw.Redis.DB
	}
	if meta.IsDefined("redis", "channel") {
		cfg.Redis.Channel = strings.TrimSpace(raw.Redis.Channel)
	}
	if meta.IsDefined("redis", "key_prefix") {
		cfg.Redis.KeyPrefix = strings.TrimSpace(raw.Redis.KeyPrefix)
	}
	if meta.IsDefined("redis", "history_len") {
		cfg.Redis.HistoryLen = raw.Redis.HistoryLen
	}

	if meta.IsDefined("monitor", "enabled") {
		cfg.Monitor.Enabled = raw.Monitor.Enabled
	}
	if meta.IsDefined("monitor", "addr") {
		cfg.Monitor.Addr = strings.TrimSpace(raw.Monitor.Addr)
	}
	if meta.IsDefined("monitor", "cors_origins") {
		cfg.Monitor.CorsOrigins = trimAll(raw.Monitor.CorsOrigins)
	}
	if meta.IsDefined("monitor", "capacity") {
		cfg.Monitor.Capacity = raw.Monitor.Capacity
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func Validate(cfg Config) error {
	if cfg.Device.Port == "" && len(cfg.Device.ProbePatterns) == 0 {
		return fmt.Errorf("device.port or device.probe_patterns is required")
	}
	if cfg.Device.Baud <= 0 {
		return fmt.Errorf("device.baud must be positive")
	}
	if cfg.Session.ReadTimeout < 0 || cfg.Session.VersionTimeout < 0 || cfg.Session.WriteChunkDelay < 0 {
		return fmt.Errorf("session durations must not be negative")
	}
	if cfg.Session.WriteChunkSize < 0 {
		return fmt.Errorf("session.write_chunk_size must not be negative")
	}
	if cfg.Session.ProbeAttempts <= 0 {
		return fmt.Errorf("session.probe_attempts must be positive")
	}
	if cfg.Redis.Enabled {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis.enabled=true")
		}
		if cfg.Redis.Channel == "" {
			return fmt.Errorf("redis.channel is required when redis.enabled=true")
		}
	}
	if cfg.Monitor.Enabled && cfg.Monitor.Addr == "" {
		return fmt.Errorf("monitor.addr is required when monitor.enabled=true")
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
