package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const defaultPath = "./config/config.yaml"

type HTTP struct {
	Addr           string        `yaml:"addr"`           // ":3001"
	ReadTimeout    time.Duration `yaml:"readTimeout"`    // "15s"
	WriteTimeout   time.Duration `yaml:"writeTimeout"`   // "30s"
	IdleTimeout    time.Duration `yaml:"idleTimeout"`    // "60s"
	AllowedOrigins []string      `yaml:"allowedOrigins"` // CORS и проверка Origin для /ws
	EmitRPS        float64       `yaml:"emitRPS"`        // 0 — без лимита
	EmitBurst      int           `yaml:"emitBurst"`
}

// GRPC — ингресс realtime.v1.Ingest; пустой addr выключает сервер.
type GRPC struct {
	Addr string `yaml:"addr"`
}

type WS struct {
	PingPeriod     time.Duration `yaml:"pingPeriod"`     // "54s"
	PongWait       time.Duration `yaml:"pongWait"`       // "60s"
	WriteWait      time.Duration `yaml:"writeWait"`      // "10s"
	SendBuffer     int           `yaml:"sendBuffer"`     // кадров на соединение
	MaxMessageSize int64         `yaml:"maxMessageSize"` // байт
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // realtime-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

// Postgres — хранилище счётчиков просмотров; пустой dsn — только логирование.
type Postgres struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
}

// Kafka — ингресс one-shot событий из топика; без brokers выключен.
type Kafka struct {
	Brokers []string      `yaml:"brokers"`
	Topic   string        `yaml:"topic"`
	GroupID string        `yaml:"groupId"`
	MaxWait time.Duration `yaml:"maxWait"`
}

type Analytics struct {
	Buffer       int           `yaml:"buffer"`       // размер очереди просмотров
	WriteTimeout time.Duration `yaml:"writeTimeout"` // на один upsert
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	WS        WS        `yaml:"ws"`
	Logging   Logging   `yaml:"logging"`
	Postgres  Postgres  `yaml:"postgres"`
	Kafka     Kafka     `yaml:"kafka"`
	Analytics Analytics `yaml:"analytics"`
}

// LoadConfig: .env (если есть) -> YAML из CONFIG_PATH -> переменные окружения -> дефолты.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path, explicit := os.LookupEnv("CONFIG_PATH")
	if !explicit || path == "" {
		path = defaultPath
	}
	return load(path, explicit)
}

func load(path string, required bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
		// без файла работаем на env и дефолтах
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	} else if v := os.Getenv("WS_PORT"); v != "" {
		c.HTTP.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("CLIENT_URL")); v != "" && !lo.Contains(c.HTTP.AllowedOrigins, v) {
		c.HTTP.AllowedOrigins = append(c.HTTP.AllowedOrigins, v)
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		c.GRPC.Addr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("LOG_ENV"); v != "" {
		c.Logging.Env = v
	}
}

func (c *Config) validate() error {
	// установка дефолтов, если значения не указаны
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":3001"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.HTTP.EmitRPS < 0 {
		return errors.New("http.emitRPS must be >= 0")
	}
	if c.HTTP.EmitRPS > 0 && c.HTTP.EmitBurst <= 0 {
		c.HTTP.EmitBurst = int(c.HTTP.EmitRPS) + 1
	}

	if c.WS.PongWait == 0 {
		c.WS.PongWait = 60 * time.Second
	}
	if c.WS.PingPeriod == 0 {
		c.WS.PingPeriod = c.WS.PongWait * 9 / 10
	}
	if c.WS.PingPeriod >= c.WS.PongWait {
		return fmt.Errorf("ws.pingPeriod (%s) must be less than ws.pongWait (%s)", c.WS.PingPeriod, c.WS.PongWait)
	}
	if c.WS.WriteWait == 0 {
		c.WS.WriteWait = 10 * time.Second
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = 256
	}
	if c.WS.MaxMessageSize == 0 {
		c.WS.MaxMessageSize = 64 << 10
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		c.Kafka.Topic = "marketplace.events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "realtime-service"
	}

	if c.Analytics.Buffer == 0 {
		c.Analytics.Buffer = 1024
	}
	if c.Analytics.WriteTimeout == 0 {
		c.Analytics.WriteTimeout = 3 * time.Second
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "realtime-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}

func splitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
}
