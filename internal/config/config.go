package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP request-surface settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" default:":8080"`
}

// CaptureConfig holds the capture pipeline settings.
type CaptureConfig struct {
	Binary                string `yaml:"binary" default:"tshark"`
	WindowSeconds         int    `yaml:"window_seconds" default:"60"`
	WindowMaxPackets      int    `yaml:"window_max_packets" default:"50000"`
	FlowPublishIntervalMS int    `yaml:"flow_publish_interval_ms" default:"200"`
}

// Window returns the sliding-window width as a duration.
func (c CaptureConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// FlowPublishInterval returns the flow publication cadence as a duration.
func (c CaptureConfig) FlowPublishInterval() time.Duration {
	return time.Duration(c.FlowPublishIntervalMS) * time.Millisecond
}

// MLConfig holds the ML classifier endpoint settings.
type MLConfig struct {
	Endpoint   string `yaml:"endpoint" default:"http://localhost:8000/predict"`
	DeadlineMS int    `yaml:"deadline_ms" default:"600"`
}

// Deadline returns the per-call ML deadline as a duration.
func (c MLConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineMS) * time.Millisecond
}

// ReputationConfig holds the IP-reputation service settings.
type ReputationConfig struct {
	Endpoint            string `yaml:"endpoint" default:"https://api.abuseipdb.com/api/v2/check"`
	Key                 string `yaml:"key"`
	DeadlineMS          int    `yaml:"deadline_ms" default:"400"`
	TTLMS               int    `yaml:"ttl_ms" default:"300000"`
	AbuseScoreThreshold int    `yaml:"abuse_score_threshold" default:"25"`
}

// Deadline returns the per-call reputation deadline as a duration.
func (c ReputationConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineMS) * time.Millisecond
}

// TTL returns the cache entry lifetime as a duration.
func (c ReputationConfig) TTL() time.Duration {
	return time.Duration(c.TTLMS) * time.Millisecond
}

// FabricConfig holds the event fabric settings.
type FabricConfig struct {
	SubscriberQueueCap  int `yaml:"subscriber_queue_cap" default:"256"`
	HeartbeatIntervalMS int `yaml:"heartbeat_interval_ms" default:"100"`
}

// HeartbeatInterval returns the heartbeat cadence as a duration.
func (c FabricConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// NATSConfig holds the optional event-mirror settings. An empty URL disables
// the mirror.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix" default:"sentinel.events"`
}

// SMTPConfig holds the optional verdict-notification settings. An empty host
// disables the notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" default:"587"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"` // comma-separated
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" default:"info"`
}

// Config is the top-level configuration for the entire service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Capture    CaptureConfig    `yaml:"capture"`
	ML         MLConfig         `yaml:"ml"`
	Reputation ReputationConfig `yaml:"reputation"`
	Fabric     FabricConfig     `yaml:"fabric"`
	NATS       NATSConfig       `yaml:"nats"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads the configuration from a YAML file, fills unset fields with
// defaults, expands ${ENV} references in string fields and applies the
// flat environment overrides. An empty path yields the default config.
func Load(path string) (*Config, error) {
	cfg := new(Config)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	expandConfig(reflect.ValueOf(cfg).Elem())
	applyEnvOverrides(cfg)

	return cfg, nil
}

// expandConfig expands environment variables in config strings.
func expandConfig(reflected reflect.Value) {
	for i := 0; i < reflected.NumField(); i++ {
		f := reflected.Field(i)
		if f.Kind() == reflect.Struct {
			expandConfig(f)
		} else if f.Kind() == reflect.String {
			f.SetString(os.ExpandEnv(f.String()))
		}
	}
}

// applyEnvOverrides maps the flat deployment environment variables onto the
// config tree. Unset variables leave the file/default values intact.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			var n int
			if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
				*dst = n
			}
		}
	}

	setString("ML_ENDPOINT", &cfg.ML.Endpoint)
	setInt("ML_DEADLINE_MS", &cfg.ML.DeadlineMS)
	setString("REPUTATION_ENDPOINT", &cfg.Reputation.Endpoint)
	setString("REPUTATION_KEY", &cfg.Reputation.Key)
	setInt("REPUTATION_DEADLINE_MS", &cfg.Reputation.DeadlineMS)
	setInt("REPUTATION_TTL_MS", &cfg.Reputation.TTLMS)
	setInt("ABUSE_SCORE_THRESHOLD", &cfg.Reputation.AbuseScoreThreshold)
	setString("CAPTURE_BIN", &cfg.Capture.Binary)
	setInt("CAPTURE_WINDOW_SECONDS", &cfg.Capture.WindowSeconds)
	setInt("WINDOW_MAX_PACKETS", &cfg.Capture.WindowMaxPackets)
	setInt("FLOW_PUBLISH_INTERVAL_MS", &cfg.Capture.FlowPublishIntervalMS)
	setInt("HEARTBEAT_INTERVAL_MS", &cfg.Fabric.HeartbeatIntervalMS)
	setInt("SUBSCRIBER_QUEUE_CAP", &cfg.Fabric.SubscriberQueueCap)
	setString("LISTEN_ADDR", &cfg.Server.ListenAddr)
	setString("NATS_URL", &cfg.NATS.URL)
}
