package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vusociu/datn/internal/constants"
)

//go:embed doors.yaml
var doorsYAML []byte

type Config struct {
	MQTT      MQTTConfig
	Redis     RedisConfig
	Camera    CameraConfig
	Embedding EmbeddingConfig
	Locker    LockerConfig
	Web       WebConfig
	Tracing   TracingConfig
}

type MQTTConfig struct {
	Broker   string // tcp://host:port
	Username string
	Password string
	ClientID string
	QoS      byte
	Topics   TopicsConfig
}

// TopicsConfig names every topic the locker talks on.
type TopicsConfig struct {
	DoorStatus       string // inbound {door, status}
	Execute          string // inbound SEND / GET
	Recognition      string // inbound 1 / 0 preview toggle
	DoorOpen         string // outbound {door}
	DoorsFull        string // outbound literal
	RecognitionError string // outbound literal
	DoorError        string // outbound {error, identityId}
	SystemError      string // outbound literal, persistence failures
	Presence         string // online / offline, also the last will
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type CameraConfig struct {
	URL     string // snapshot endpoint, e.g. http://192.168.1.12/capture
	Timeout time.Duration
}

type EmbeddingConfig struct {
	URL      string // defaults to http://localhost:8000
	FaceSize int    // crop edge length sent to the embedder
}

type LockerConfig struct {
	Doors           []string
	MatchThreshold  float64
	CaptureAttempts int
	CaptureInterval time.Duration
	FaceDir         string // where enrolled face crops are kept; empty disables
}

type WebConfig struct {
	Host           string
	Port           int
	PreviewFPS     int
	AllowedOrigins []string // CORS origins besides localhost
}

type TracingConfig struct {
	Exporter   string // none, stdout
	SampleRate float64
}

type doorLayout struct {
	Doors []string `yaml:"doors"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a float environment variable, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration reads a Go duration string (e.g. "200ms"), falling back to defaultVal.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// defaultClientID mirrors the FaceRec-<host>-<suffix> scheme the devices expect.
func defaultClientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "locker"
	}
	return fmt.Sprintf("FaceRec-%s-%s", host, strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// parseList splits a comma-separated value, dropping blanks.
func parseList(s string) []string {
	var items []string
	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func defaultDoors() []string {
	var layout doorLayout
	if err := yaml.Unmarshal(doorsYAML, &layout); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded doors.yaml: " + err.Error())
	}
	return layout.Doors
}

func Load() *Config {
	doors := defaultDoors()
	if env := os.Getenv("LOCKER_DOORS"); env != "" {
		doors = parseList(env)
	}

	qos := envInt("MQTT_QOS", int(constants.DefaultQoS))
	if os.Getenv("MQTT_QOS") == "0" {
		qos = 0
	}

	return &Config{
		MQTT: MQTTConfig{
			Broker:   envString("MQTT_BROKER", "tcp://localhost:1883"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
			ClientID: envString("MQTT_CLIENT_ID", defaultClientID()),
			QoS:      byte(min(qos, 2)),
			Topics: TopicsConfig{
				DoorStatus:       envString("MQTT_TOPIC_DOOR_STATUS", constants.TopicDoorStatus),
				Execute:          envString("MQTT_TOPIC_EXECUTE", constants.TopicExecute),
				Recognition:      envString("MQTT_TOPIC_RECOGNITION", constants.TopicRecognition),
				DoorOpen:         envString("MQTT_TOPIC_DOOR_OPEN", constants.TopicDoorOpen),
				DoorsFull:        envString("MQTT_TOPIC_DOORS_FULL", constants.TopicDoorsFull),
				RecognitionError: envString("MQTT_TOPIC_RECOGNITION_ERROR", constants.TopicRecognitionError),
				DoorError:        envString("MQTT_TOPIC_DOOR_ERROR", constants.TopicDoorError),
				SystemError:      envString("MQTT_TOPIC_SYSTEM_ERROR", constants.TopicSystemError),
				Presence:         envString("MQTT_TOPIC_PRESENCE", constants.TopicPresence),
			},
		},
		Redis: RedisConfig{
			URL:          envString("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 1),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Camera: CameraConfig{
			URL:     os.Getenv("CAMERA_URL"),
			Timeout: envDuration("CAMERA_TIMEOUT", 5*time.Second),
		},
		Embedding: EmbeddingConfig{
			URL:      os.Getenv("EMBEDDING_URL"),
			FaceSize: envInt("EMBEDDING_FACE_SIZE", constants.DefaultFaceSize),
		},
		Locker: LockerConfig{
			Doors:           doors,
			MatchThreshold:  envFloat("LOCKER_MATCH_THRESHOLD", constants.DefaultMatchThreshold),
			CaptureAttempts: envInt("LOCKER_CAPTURE_ATTEMPTS", constants.DefaultCaptureAttempts),
			CaptureInterval: envDuration("LOCKER_CAPTURE_INTERVAL", constants.DefaultCaptureInterval),
			FaceDir:         os.Getenv("FACE_DIR"),
		},
		Web: WebConfig{
			Host:       envString("WEB_HOST", "0.0.0.0"),
			Port:       envInt("WEB_PORT", 5000),
			PreviewFPS: envInt("WEB_PREVIEW_FPS", constants.DefaultPreviewFPS),

			AllowedOrigins: parseList(os.Getenv("WEB_ALLOWED_ORIGINS")),
		},
		Tracing: TracingConfig{
			Exporter:   envString("TRACING_EXPORTER", "none"),
			SampleRate: envFloat("TRACING_SAMPLE_RATE", 1.0),
		},
	}
}

// Validate reports configuration the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Locker.Doors) == 0 {
		return errors.New("config: at least one door is required")
	}
	seen := make(map[string]struct{}, len(c.Locker.Doors))
	for _, d := range c.Locker.Doors {
		if _, dup := seen[d]; dup {
			return fmt.Errorf("config: duplicate door %q", d)
		}
		seen[d] = struct{}{}
	}
	if c.Locker.MatchThreshold < 0 || c.Locker.MatchThreshold > 2 {
		return fmt.Errorf("config: LOCKER_MATCH_THRESHOLD must be within [0, 2], got %v", c.Locker.MatchThreshold)
	}
	if c.Locker.CaptureAttempts < 1 {
		return errors.New("config: LOCKER_CAPTURE_ATTEMPTS must be at least 1")
	}
	if c.MQTT.Broker == "" {
		return errors.New("config: MQTT_BROKER must be set")
	}

	inbound := []struct{ env, topic string }{
		{"MQTT_TOPIC_DOOR_STATUS", c.MQTT.Topics.DoorStatus},
		{"MQTT_TOPIC_EXECUTE", c.MQTT.Topics.Execute},
		{"MQTT_TOPIC_RECOGNITION", c.MQTT.Topics.Recognition},
	}
	owner := make(map[string]string, len(inbound))
	for _, in := range inbound {
		if in.topic == "" {
			continue
		}
		if prev, dup := owner[in.topic]; dup {
			return fmt.Errorf("config: %s and %s share topic %q", prev, in.env, in.topic)
		}
		owner[in.topic] = in.env
	}
	return nil
}
