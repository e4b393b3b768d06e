package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shenikar/traffic_incident_system/internal/models"
)

// Camera - описание одной камеры и ее фиксированного местоположения
type Camera struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	Source      string  `yaml:"source"`
	EvidenceRef string  `yaml:"evidence_ref"`
}

// Location возвращает местоположение камеры
func (c Camera) Location() models.Location {
	return models.Location{Latitude: c.Latitude, Longitude: c.Longitude, Name: c.Name}
}

// SeverityTier - строка таблицы уровней: превышение порога не меньше MinExcess дает Severity
type SeverityTier struct {
	MinExcess int             `yaml:"min_excess"`
	Severity  models.Severity `yaml:"severity"`
}

// AlertRule - правило рассылки оповещений
type AlertRule struct {
	On          models.AlertTrigger `yaml:"on"`
	MinSeverity models.Severity     `yaml:"min_severity"`
	Channel     models.Channel      `yaml:"channel"`
	Audience    models.Audience     `yaml:"audience"`
}

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`

	// Redis Config
	RedisAddr string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string        `env:"REDIS_PASSWORD"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Webhook Config (шлюз провайдеров push/sms/email)
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Stats Config
	StatsTimeWindowMinutes int `env:"STATS_TIME_WINDOW_MINUTES" envDefault:"60"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`

	// Incident lifecycle
	AllowStatusSkip       bool `env:"ALLOW_STATUS_SKIP" envDefault:"false"`
	AlertAreaRadiusMeters int  `env:"ALERT_AREA_RADIUS_METERS" envDefault:"1000"`
	AlertRules            []AlertRule

	// Detector: доставка инцидентов
	IngestURL               string        `env:"INGEST_URL"`
	IngestAPIKey            string        `env:"INGEST_API_KEY"`
	IngestSecret            string        `env:"INGEST_SECRET"`
	IngestTimeout           time.Duration `env:"INGEST_TIMEOUT" envDefault:"5s"`
	ReporterQueueBackend    string        `env:"REPORTER_QUEUE_BACKEND" envDefault:"memory"`
	ReporterQueueSize       int           `env:"REPORTER_QUEUE_SIZE" envDefault:"100"`
	ReporterMaxRetries      int           `env:"REPORTER_MAX_RETRIES" envDefault:"5"`
	ReporterBaseDelay       time.Duration `env:"REPORTER_BASE_DELAY" envDefault:"500ms"`
	ReporterMaxDelay        time.Duration `env:"REPORTER_MAX_DELAY" envDefault:"30s"`
	ReporterDrainOnShutdown bool          `env:"REPORTER_DRAIN_ON_SHUTDOWN" envDefault:"true"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	DeadLetterPath          string        `env:"DEADLETTER_PATH"`
	StatsLogInterval        time.Duration `env:"STATS_LOG_INTERVAL" envDefault:"1m"`

	// Detector: классификатор объектов
	ClassifierURL     string        `env:"CLASSIFIER_URL"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"10s"`
	ModelPath         string        `env:"MODEL_PATH"`
	ModelConfigPath   string        `env:"MODEL_CONFIG_PATH"`

	// Detector: правила классификации инцидентов
	CongestionThreshold  int      `env:"CONGESTION_THRESHOLD" envDefault:"5"`
	VehicleCategories    []string `env:"VEHICLE_CATEGORIES" envDefault:"car,motorcycle,bus,truck"`
	MinObjectConfidence  float64  `env:"MIN_OBJECT_CONFIDENCE" envDefault:"0"`
	SeverityTiers        []SeverityTier
	ConfidenceFloor      float64 `env:"CONFIDENCE_FLOOR" envDefault:"0.5"`
	ConfidenceSaturation int     `env:"CONFIDENCE_SATURATION" envDefault:"10"`

	// Detector: подавление дубликатов
	DedupCooldown      time.Duration `env:"DEDUP_COOLDOWN" envDefault:"5s"`
	DedupConfirmFrames int           `env:"DEDUP_CONFIRM_FRAMES" envDefault:"1"`
	DedupKeyPrecision  int           `env:"DEDUP_KEY_PRECISION" envDefault:"3"`
	DedupKeyByName     bool          `env:"DEDUP_KEY_BY_NAME" envDefault:"true"`
	DedupStaleAfter    time.Duration `env:"DEDUP_STALE_AFTER" envDefault:"1h"`
	DedupSweepInterval time.Duration `env:"DEDUP_SWEEP_INTERVAL" envDefault:"1m"`
	DedupMaxKeys       int           `env:"DEDUP_MAX_KEYS" envDefault:"10000"`

	// Detector: источник кадров
	FrameInterval time.Duration `env:"FRAME_INTERVAL" envDefault:"0"`
	LoopSource    bool          `env:"LOOP_SOURCE" envDefault:"true"`
	Cameras       []Camera
}

// fileConfig - содержимое YAML файла CONFIG_FILE
type fileConfig struct {
	Cameras       []Camera       `yaml:"cameras"`
	SeverityTiers []SeverityTier `yaml:"severity_tiers"`
	AlertRules    []AlertRule    `yaml:"alert_rules"`
}

// DefaultSeverityTiers - таблица уровней по умолчанию
func DefaultSeverityTiers() []SeverityTier {
	return []SeverityTier{
		{MinExcess: 1, Severity: models.SeverityLow},
		{MinExcess: 3, Severity: models.SeverityMedium},
		{MinExcess: 6, Severity: models.SeverityHigh},
		{MinExcess: 10, Severity: models.SeverityCritical},
	}
}

// DefaultAlertRules - правила рассылки по умолчанию
func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		{On: models.TriggerCreated, MinSeverity: models.SeverityLow, Channel: models.ChannelInApp, Audience: models.AudiencePolice},
		{On: models.TriggerCreated, MinSeverity: models.SeverityHigh, Channel: models.ChannelPush, Audience: models.AudiencePolice},
		{On: models.TriggerVerified, MinSeverity: models.SeverityHigh, Channel: models.ChannelPush, Audience: models.AudiencePublic},
		{On: models.TriggerVerified, MinSeverity: models.SeverityHigh, Channel: models.ChannelSMS, Audience: models.AudienceSpecificArea},
		{On: models.TriggerVerified, MinSeverity: models.SeverityCritical, Channel: models.ChannelEmail, Audience: models.AudienceAll},
		{On: models.TriggerResolved, MinSeverity: models.SeverityHigh, Channel: models.ChannelInApp, Audience: models.AudiencePublic},
	}
}

// LoadConfig загружает конфигурацию API сервера из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

// LoadDetectorConfig загружает конфигурацию детектора
func LoadDetectorConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if cfg.IngestURL == "" {
		return nil, fmt.Errorf("INGEST_URL environment variable is required")
	}
	if len(cfg.Cameras) == 0 {
		return nil, fmt.Errorf("at least one camera must be configured (CONFIG_FILE or CAMERA_* variables)")
	}

	return cfg, nil
}

func load() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		MigrationsPath:         getEnv("MIGRATIONS_PATH", "file://migrations"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:              os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getEnvAsInt("REDIS_DB", 0),
		CacheTTL:               getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		WebhookURL:             os.Getenv("WEBHOOK_URL"),
		WebhookSecret:          os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:         getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:      getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:       getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		StatsTimeWindowMinutes: getEnvAsInt("STATS_TIME_WINDOW_MINUTES", 60),
		AllowStatusSkip:        getEnvAsBool("ALLOW_STATUS_SKIP", false),
		AlertAreaRadiusMeters:  getEnvAsInt("ALERT_AREA_RADIUS_METERS", 1000),

		IngestURL:               os.Getenv("INGEST_URL"),
		IngestAPIKey:            os.Getenv("INGEST_API_KEY"),
		IngestSecret:            os.Getenv("INGEST_SECRET"),
		IngestTimeout:           getEnvAsDuration("INGEST_TIMEOUT", 5*time.Second),
		ReporterQueueBackend:    getEnv("REPORTER_QUEUE_BACKEND", "memory"),
		ReporterQueueSize:       getEnvAsInt("REPORTER_QUEUE_SIZE", 100),
		ReporterMaxRetries:      getEnvAsInt("REPORTER_MAX_RETRIES", 5),
		ReporterBaseDelay:       getEnvAsDuration("REPORTER_BASE_DELAY", 500*time.Millisecond),
		ReporterMaxDelay:        getEnvAsDuration("REPORTER_MAX_DELAY", 30*time.Second),
		ReporterDrainOnShutdown: getEnvAsBool("REPORTER_DRAIN_ON_SHUTDOWN", true),
		ShutdownTimeout:         getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		DeadLetterPath:          os.Getenv("DEADLETTER_PATH"),
		StatsLogInterval:        getEnvAsDuration("STATS_LOG_INTERVAL", time.Minute),

		ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		ModelPath:         os.Getenv("MODEL_PATH"),
		ModelConfigPath:   os.Getenv("MODEL_CONFIG_PATH"),

		CongestionThreshold:  getEnvAsInt("CONGESTION_THRESHOLD", 5),
		VehicleCategories:    getEnvAsList("VEHICLE_CATEGORIES", []string{"car", "motorcycle", "bus", "truck"}),
		MinObjectConfidence:  getEnvAsFloat("MIN_OBJECT_CONFIDENCE", 0),
		SeverityTiers:        DefaultSeverityTiers(),
		ConfidenceFloor:      getEnvAsFloat("CONFIDENCE_FLOOR", 0.5),
		ConfidenceSaturation: getEnvAsInt("CONFIDENCE_SATURATION", 10),

		DedupCooldown:      getEnvAsDuration("DEDUP_COOLDOWN", 5*time.Second),
		DedupConfirmFrames: getEnvAsInt("DEDUP_CONFIRM_FRAMES", 1),
		DedupKeyPrecision:  getEnvAsInt("DEDUP_KEY_PRECISION", 3),
		DedupKeyByName:     getEnvAsBool("DEDUP_KEY_BY_NAME", true),
		DedupStaleAfter:    getEnvAsDuration("DEDUP_STALE_AFTER", time.Hour),
		DedupSweepInterval: getEnvAsDuration("DEDUP_SWEEP_INTERVAL", time.Minute),
		DedupMaxKeys:       getEnvAsInt("DEDUP_MAX_KEYS", 10000),

		FrameInterval: getEnvAsDuration("FRAME_INTERVAL", 0),
		LoopSource:    getEnvAsBool("LOOP_SOURCE", true),
		AlertRules:    DefaultAlertRules(),
	}

	cfg.APIKeys = getEnvAsList("API_KEYS", nil)

	if tiers := os.Getenv("SEVERITY_TIERS"); tiers != "" {
		parsed, err := ParseSeverityTiers(tiers)
		if err != nil {
			return nil, err
		}
		cfg.SeverityTiers = parsed
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	// Одиночная камера из переменных окружения
	if id := os.Getenv("CAMERA_ID"); id != "" {
		cfg.Cameras = append(cfg.Cameras, Camera{
			ID:          id,
			Name:        os.Getenv("CAMERA_NAME"),
			Latitude:    getEnvAsFloat("CAMERA_LAT", 0),
			Longitude:   getEnvAsFloat("CAMERA_LNG", 0),
			Source:      os.Getenv("CAMERA_SOURCE"),
			EvidenceRef: os.Getenv("CAMERA_EVIDENCE_REF"),
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile дополняет конфигурацию данными из YAML файла
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.Cameras = append(c.Cameras, fc.Cameras...)
	if len(fc.SeverityTiers) > 0 {
		c.SeverityTiers = fc.SeverityTiers
	}
	if len(fc.AlertRules) > 0 {
		c.AlertRules = fc.AlertRules
	}
	return nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.CongestionThreshold < 0 {
		return fmt.Errorf("CONGESTION_THRESHOLD must not be negative")
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("CONFIDENCE_FLOOR must be within [0, 1]")
	}
	if c.ConfidenceSaturation < 1 {
		return fmt.Errorf("CONFIDENCE_SATURATION must be positive")
	}
	if c.DedupConfirmFrames < 1 {
		return fmt.Errorf("DEDUP_CONFIRM_FRAMES must be at least 1")
	}
	if c.DedupCooldown < 0 {
		return fmt.Errorf("DEDUP_COOLDOWN must not be negative")
	}
	if c.ReporterQueueSize < 1 {
		return fmt.Errorf("REPORTER_QUEUE_SIZE must be at least 1")
	}
	if c.ReporterMaxRetries < 0 {
		return fmt.Errorf("REPORTER_MAX_RETRIES must not be negative")
	}
	if c.ReporterQueueBackend != "memory" && c.ReporterQueueBackend != "redis" {
		return fmt.Errorf("REPORTER_QUEUE_BACKEND must be memory or redis, got %q", c.ReporterQueueBackend)
	}

	if len(c.SeverityTiers) == 0 {
		return fmt.Errorf("severity tier table must not be empty")
	}
	sort.Slice(c.SeverityTiers, func(i, j int) bool {
		return c.SeverityTiers[i].MinExcess < c.SeverityTiers[j].MinExcess
	})
	for i, tier := range c.SeverityTiers {
		if !tier.Severity.Valid() {
			return fmt.Errorf("severity tier %d: unknown severity %q", i, tier.Severity)
		}
		if tier.MinExcess < 1 {
			return fmt.Errorf("severity tier %d: min_excess must be at least 1", i)
		}
		if i > 0 && tier.MinExcess == c.SeverityTiers[i-1].MinExcess {
			return fmt.Errorf("severity tier %d: duplicate min_excess %d", i, tier.MinExcess)
		}
	}

	for i, rule := range c.AlertRules {
		if !rule.On.Valid() {
			return fmt.Errorf("alert rule %d: unknown trigger %q", i, rule.On)
		}
		if !rule.MinSeverity.Valid() {
			return fmt.Errorf("alert rule %d: unknown severity %q", i, rule.MinSeverity)
		}
		if !rule.Channel.Valid() {
			return fmt.Errorf("alert rule %d: unknown channel %q", i, rule.Channel)
		}
		if !rule.Audience.Valid() {
			return fmt.Errorf("alert rule %d: unknown audience %q", i, rule.Audience)
		}
	}

	seen := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera id must not be empty")
		}
		if seen[cam.ID] {
			return fmt.Errorf("duplicate camera id %q", cam.ID)
		}
		seen[cam.ID] = true
		if cam.Latitude < -90 || cam.Latitude > 90 || cam.Longitude < -180 || cam.Longitude > 180 {
			return fmt.Errorf("camera %q: coordinates out of range", cam.ID)
		}
	}
	return nil
}

// ParseSeverityTiers разбирает таблицу вида "1:low,3:medium,6:high,10:critical"
func ParseSeverityTiers(s string) ([]SeverityTier, error) {
	var tiers []SeverityTier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		excess, severity, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid severity tier %q: expected <min_excess>:<severity>", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(excess))
		if err != nil {
			return nil, fmt.Errorf("invalid severity tier %q: %w", part, err)
		}
		sev, err := models.ParseSeverity(strings.TrimSpace(severity))
		if err != nil {
			return nil, fmt.Errorf("invalid severity tier %q: %w", part, err)
		}
		tiers = append(tiers, SeverityTier{MinExcess: n, Severity: sev})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("severity tier table is empty")
	}
	return tiers, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	items := strings.Split(value, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
