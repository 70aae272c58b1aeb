package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yeonjoon13/Flight-State-Relay/internal/dispatch"
	"github.com/yeonjoon13/Flight-State-Relay/internal/opensky"
	"github.com/yeonjoon13/Flight-State-Relay/internal/relay"
)

// Config is everything the ingestor needs. Values are layered: defaults,
// then the optional YAML file, then environment, then flags.
type Config struct {
	ConnectionString string        `yaml:"connection_string"`
	Topic            string        `yaml:"topic"`
	Partitions       int           `yaml:"partitions"`
	Interval         time.Duration `yaml:"interval"`
	CreateTopic      bool          `yaml:"create_topic"`
	HTTPAddr         string        `yaml:"http_addr"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	OpenSky          OpenSky       `yaml:"opensky"`
}

type OpenSky struct {
	URL      string               `yaml:"url"`
	Username string               `yaml:"username"`
	Password string               `yaml:"password"`
	Timeout  time.Duration        `yaml:"timeout"`
	Box      *opensky.BoundingBox `yaml:"bounding_box"`
}

func Default() Config {
	return Config{
		Topic:      "flight_states",
		Partitions: dispatch.DefaultPartitions,
		Interval:   relay.DefaultInterval,
		HTTPAddr:   ":8080",
		LogLevel:   "info",
		LogFormat:  "text",
		OpenSky: OpenSky{
			URL:     opensky.DefaultBaseURL,
			Timeout: opensky.DefaultTimeout,
		},
	}
}

// Load builds a Config from command-line args and the environment. Usage
// goes to stderr; -h returns an error matching flag.ErrHelp.
func Load(args []string, getenv func(string) string) (Config, error) {
	return load(args, getenv, os.Stderr)
}

func load(args []string, getenv func(string) string, usage io.Writer) (Config, error) {
	cfg := Default()

	var (
		fl         Config
		configPath string
		bbox       string
	)
	fs := flag.NewFlagSet("ingestor", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.StringVar(&configPath, "config", getenv("CONFIG_FILE"), "YAML config file")
	fs.StringVar(&fl.ConnectionString, "conn", "", "Event Hubs connection string or Kafka broker list")
	fs.StringVar(&fl.Topic, "topic", "", "event hub / Kafka topic")
	fs.IntVar(&fl.Partitions, "partitions", 0, "partition count of the topic")
	fs.DurationVar(&fl.Interval, "interval", 0, "poll interval")
	fs.BoolVar(&fl.CreateTopic, "create-topic", false, "create the topic on startup (Kafka only)")
	fs.StringVar(&fl.HTTPAddr, "http", "", "address for /metrics, /flights and /ws; empty disables")
	fs.StringVar(&fl.LogLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&fl.LogFormat, "log-format", "", "text or json")
	fs.StringVar(&fl.OpenSky.URL, "url", "", "OpenSky API base URL")
	fs.StringVar(&bbox, "bbox", "", "bounding box as minLat,minLon,maxLat,maxLon")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if configPath != "" {
		if err := loadFile(configPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "conn":
			cfg.ConnectionString = fl.ConnectionString
		case "topic":
			cfg.Topic = fl.Topic
		case "partitions":
			cfg.Partitions = fl.Partitions
		case "interval":
			cfg.Interval = fl.Interval
		case "create-topic":
			cfg.CreateTopic = fl.CreateTopic
		case "http":
			cfg.HTTPAddr = fl.HTTPAddr
		case "log-level":
			cfg.LogLevel = fl.LogLevel
		case "log-format":
			cfg.LogFormat = fl.LogFormat
		case "url":
			cfg.OpenSky.URL = fl.OpenSky.URL
		case "bbox":
			box, err := ParseBoundingBox(bbox)
			if err != nil {
				flagErr = err
				return
			}
			cfg.OpenSky.Box = box
		}
	})
	if flagErr != nil {
		return Config{}, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	str(&cfg.ConnectionString, "EVENT_HUB_CONNECTION_STRING", "KAFKA_BROKER")
	str(&cfg.Topic, "EVENT_HUB_NAME", "KAFKA_TOPIC")
	str(&cfg.HTTPAddr, "HTTP_ADDR")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.LogFormat, "LOG_FORMAT")
	str(&cfg.OpenSky.URL, "OPEN_SKY_URL")
	str(&cfg.OpenSky.Username, "OPEN_SKY_USERNAME")
	str(&cfg.OpenSky.Password, "OPEN_SKY_PASSWORD")

	if v := getenv("PARTITION_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PARTITION_COUNT: %w", err)
		}
		cfg.Partitions = n
	}
	if v := getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: POLL_INTERVAL: %w", err)
		}
		cfg.Interval = d
	}
	if v := getenv("OPEN_SKY_BBOX"); v != "" {
		box, err := ParseBoundingBox(v)
		if err != nil {
			return err
		}
		cfg.OpenSky.Box = box
	}
	return nil
}

// ParseBoundingBox reads "minLat,minLon,maxLat,maxLon".
func ParseBoundingBox(s string) (*opensky.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("config: bounding box %q: want 4 comma-separated values", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("config: bounding box %q: %w", s, err)
		}
		v[i] = f
	}
	return &opensky.BoundingBox{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.ConnectionString == "" {
		errs = append(errs, errors.New("config: connection string is required (EVENT_HUB_CONNECTION_STRING or KAFKA_BROKER)"))
	}
	if c.Partitions <= 0 {
		errs = append(errs, fmt.Errorf("config: partitions must be positive, got %d", c.Partitions))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("config: interval must be positive, got %s", c.Interval))
	}
	if c.OpenSky.Password != "" && c.OpenSky.Username == "" {
		errs = append(errs, errors.New("config: OpenSky password set without username"))
	}
	if b := c.OpenSky.Box; b != nil {
		if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
			errs = append(errs, errors.New("config: bounding box min must be below max"))
		}
		if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
			errs = append(errs, errors.New("config: bounding box outside valid coordinates"))
		}
	}
	return errors.Join(errs...)
}
