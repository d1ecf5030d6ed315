// Package config loads the daemon configuration from an optional YAML file
// with environment variable overrides. Every field has a usable default so an
// empty environment points the daemon at a local backend.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// TrackerName names this tracker instance; it is also the event topic.
	TrackerName string `yaml:"tracker_name"`

	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`

	OperatorID   string `yaml:"operator_id"`
	OperatorName string `yaml:"operator_name"`

	TickInterval Duration `yaml:"tick_interval"`
	RefreshEvery int      `yaml:"refresh_every"`
	ResyncSpec   string   `yaml:"resync_spec"`

	// KafkaBrokers enables the Kafka event streamer when non-empty; otherwise
	// events stay on the in-process streamer.
	KafkaBrokers []string `yaml:"kafka_brokers"`

	// CachePath is the SQLite record cache file. Empty disables caching.
	CachePath string `yaml:"cache_path"`

	ListenAddr string `yaml:"listen_addr"`
}

// Duration is a time.Duration that decodes YAML strings such as "2s" as well
// as raw nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrap(err, "parse duration", j.KV("value", s))
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	err := value.Decode(&n)
	if err != nil {
		return errors.Wrap(err, "parse duration")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func Default() Config {
	return Config{
		TrackerName:  "floortrack",
		BaseURL:      "http://localhost:8000",
		TickInterval: Duration(time.Second),
		RefreshEvery: 5,
		CachePath:    "floortrack.db",
		ListenAddr:   ":8080",
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	conf := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config", j.KV("path", path))
		}

		err = yaml.Unmarshal(b, &conf)
		if err != nil {
			return Config{}, errors.Wrap(err, "parse config", j.KV("path", path))
		}
	}

	applyEnv(&conf)

	if conf.RefreshEvery < 1 {
		conf.RefreshEvery = 1
	}

	return conf, nil
}

func applyEnv(conf *Config) {
	setString(&conf.TrackerName, "FLOORTRACK_NAME")
	setString(&conf.BaseURL, "FLOORTRACK_BASE_URL")
	setString(&conf.AuthToken, "FLOORTRACK_AUTH_TOKEN")
	setString(&conf.OperatorID, "FLOORTRACK_OPERATOR_ID")
	setString(&conf.OperatorName, "FLOORTRACK_OPERATOR_NAME")
	setString(&conf.ResyncSpec, "FLOORTRACK_RESYNC_SPEC")
	setString(&conf.CachePath, "FLOORTRACK_CACHE_PATH")
	setString(&conf.ListenAddr, "FLOORTRACK_LISTEN_ADDR")

	if v, ok := os.LookupEnv("FLOORTRACK_TICK_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			conf.TickInterval = Duration(d)
		}
	}

	if v, ok := os.LookupEnv("FLOORTRACK_REFRESH_EVERY"); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			conf.RefreshEvery = n
		}
	}

	if v, ok := os.LookupEnv("FLOORTRACK_KAFKA_BROKERS"); ok {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		conf.KafkaBrokers = brokers
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}
