// Package conf loads and validates application settings from config.yaml,
// environment variables and command-line flags via viper.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/sentinel-go/internal/errors"
)

// CameraConfig describes a single video source.
type CameraConfig struct {
	ID     string `yaml:"id" mapstructure:"id"`
	Name   string `yaml:"name" mapstructure:"name"`
	Source string `yaml:"source" mapstructure:"source"`
}

// DetectorConfig describes the external detection oracle.
type DetectorConfig struct {
	Endpoint            string        `yaml:"endpoint" mapstructure:"endpoint"`
	ConfidenceThreshold float64       `yaml:"confidencethreshold" mapstructure:"confidencethreshold"`
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Classes             []string      `yaml:"classes" mapstructure:"classes"`
}

// CooldownConfig controls alert suppression.
type CooldownConfig struct {
	Window   time.Duration `yaml:"window" mapstructure:"window"`
	GridSize int           `yaml:"gridsize" mapstructure:"gridsize"`
}

// HistoryConfig controls the bounded alert history store.
type HistoryConfig struct {
	MaxEntries  int    `yaml:"maxentries" mapstructure:"maxentries"`
	ArtifactDir string `yaml:"artifactdir" mapstructure:"artifactdir"`
}

// WorkerConfig bounds the blocking operations of a camera worker.
type WorkerConfig struct {
	ReadTimeout    time.Duration `yaml:"readtimeout" mapstructure:"readtimeout"`
	FailureWindow  time.Duration `yaml:"failurewindow" mapstructure:"failurewindow"`
	StopTimeout    time.Duration `yaml:"stoptimeout" mapstructure:"stoptimeout"`
	OpenTimeout    time.Duration `yaml:"opentimeout" mapstructure:"opentimeout"`
	DetectorBudget time.Duration `yaml:"detectorbudget" mapstructure:"detectorbudget"`
}

// WebhookConfig configures a webhook notification provider.
type WebhookConfig struct {
	URL     string            `yaml:"url" mapstructure:"url"`
	Method  string            `yaml:"method" mapstructure:"method"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// MQTTConfig configures an MQTT notification provider.
type MQTTConfig struct {
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	ClientID string `yaml:"clientid" mapstructure:"clientid"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// ProviderConfig configures one notification channel.
type ProviderConfig struct {
	Name    string        `yaml:"name" mapstructure:"name"`
	Type    string        `yaml:"type" mapstructure:"type"` // shoutrrr, webhook, mqtt
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string      `yaml:"urls" mapstructure:"urls"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Webhook WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
	MQTT    MQTTConfig    `yaml:"mqtt" mapstructure:"mqtt"`
}

// RateLimitConfig bounds outbound notification volume.
type RateLimitConfig struct {
	PerMinute int `yaml:"perminute" mapstructure:"perminute"`
	Burst     int `yaml:"burst" mapstructure:"burst"`
}

// NotificationConfig configures the dispatcher and its providers.
type NotificationConfig struct {
	QueueSize int              `yaml:"queuesize" mapstructure:"queuesize"`
	RateLimit RateLimitConfig  `yaml:"ratelimit" mapstructure:"ratelimit"`
	Providers []ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// WebServerConfig configures the operator/observer HTTP surface.
type WebServerConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    string `yaml:"port" mapstructure:"port"`
}

// LogConfig configures file logging.
type LogConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `yaml:"maxsizemb" mapstructure:"maxsizemb"`
	MaxBackups int    `yaml:"maxbackups" mapstructure:"maxbackups"`
	MaxAgeDays int    `yaml:"maxagedays" mapstructure:"maxagedays"`
}

// Settings is the root configuration object.
type Settings struct {
	Debug        bool               `yaml:"debug" mapstructure:"debug"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Cameras      []CameraConfig     `yaml:"cameras" mapstructure:"cameras"`
	Detector     DetectorConfig     `yaml:"detector" mapstructure:"detector"`
	Cooldown     CooldownConfig     `yaml:"cooldown" mapstructure:"cooldown"`
	History      HistoryConfig      `yaml:"history" mapstructure:"history"`
	Worker       WorkerConfig       `yaml:"worker" mapstructure:"worker"`
	Notification NotificationConfig `yaml:"notification" mapstructure:"notification"`
	WebServer    WebServerConfig    `yaml:"webserver" mapstructure:"webserver"`
}

// setDefaults registers default values with viper before unmarshalling.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 3)
	v.SetDefault("log.maxagedays", 28)

	v.SetDefault("detector.endpoint", "http://localhost:5000/detect-image")
	v.SetDefault("detector.confidencethreshold", 0.5)
	v.SetDefault("detector.timeout", 10*time.Second)
	v.SetDefault("detector.classes", []string{"knife", "pistol"})

	v.SetDefault("cooldown.window", 30*time.Second)
	v.SetDefault("cooldown.gridsize", 50)

	v.SetDefault("history.maxentries", 100)
	v.SetDefault("history.artifactdir", "alerts")

	v.SetDefault("worker.readtimeout", 2*time.Second)
	v.SetDefault("worker.failurewindow", 2*time.Second)
	v.SetDefault("worker.stoptimeout", 5*time.Second)
	v.SetDefault("worker.opentimeout", 10*time.Second)
	v.SetDefault("worker.detectorbudget", 10*time.Second)

	v.SetDefault("notification.queuesize", 256)
	v.SetDefault("notification.ratelimit.perminute", 60)
	v.SetDefault("notification.ratelimit.burst", 10)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.port", "8080")
}

// Load reads settings from the given config file path. An empty path makes
// viper search the working directory for config.yaml. Environment
// variables prefixed SENTINEL_ override file values.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("sentinel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("config_path", configPath).
				Build()
		}
		// No config file is fine, defaults apply.
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (s *Settings) Validate() error {
	if s.Detector.Endpoint == "" {
		return errors.Newf("detector endpoint is required").
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	if s.Detector.ConfidenceThreshold < 0 || s.Detector.ConfidenceThreshold > 1 {
		return errors.Newf("detector confidence threshold %.2f outside [0,1]", s.Detector.ConfidenceThreshold).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	if s.Cooldown.Window <= 0 {
		return errors.Newf("cooldown window must be positive, got %s", s.Cooldown.Window).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	if s.History.MaxEntries <= 0 {
		return errors.Newf("history max entries must be positive, got %d", s.History.MaxEntries).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	seen := make(map[string]bool, len(s.Cameras))
	for i := range s.Cameras {
		cam := &s.Cameras[i]
		if cam.ID == "" {
			return errors.Newf("camera at index %d is missing an id", i).
				Component("conf").
				Category(errors.CategoryValidation).
				Build()
		}
		if seen[cam.ID] {
			return errors.Newf("duplicate camera id %q", cam.ID).
				Component("conf").
				Category(errors.CategoryValidation).
				Build()
		}
		seen[cam.ID] = true
		if cam.Source == "" {
			return errors.Newf("camera %q is missing a source", cam.ID).
				Component("conf").
				Category(errors.CategoryValidation).
				Build()
		}
		if cam.Name == "" {
			cam.Name = fmt.Sprintf("Camera %s", cam.ID)
		}
	}

	for i := range s.Notification.Providers {
		p := &s.Notification.Providers[i]
		switch p.Type {
		case "shoutrrr", "webhook", "mqtt":
		default:
			return errors.Newf("provider %q has unknown type %q", p.Name, p.Type).
				Component("conf").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	return nil
}
