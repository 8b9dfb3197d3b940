package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Subject    SubjectConfig    `yaml:"subject" mapstructure:"subject"`
	Fusion     FusionConfig     `yaml:"fusion" mapstructure:"fusion"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Outreach   OutreachConfig   `yaml:"outreach" mapstructure:"outreach"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the ingestion API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// QueueConfig configures the background lead queue. An empty RedisURL
// means leads are processed in-process.
type QueueConfig struct {
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetry    int    `yaml:"max_retry" mapstructure:"max_retry"`
}

// ExtractionConfig configures the text-extraction provider chain.
type ExtractionConfig struct {
	Priority           []string          `yaml:"priority" mapstructure:"priority"`
	TimeoutSecs        int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitBackoffMs int               `yaml:"rate_limit_backoff_ms" mapstructure:"rate_limit_backoff_ms"`
	Tesseract          TesseractConfig   `yaml:"tesseract" mapstructure:"tesseract"`
	ClaudeVision       ClaudeVisionConf  `yaml:"claude_vision" mapstructure:"claude_vision"`
	CloudVision        CloudVisionConfig `yaml:"cloud_vision" mapstructure:"cloud_vision"`
	Circuit            CircuitConfig     `yaml:"circuit" mapstructure:"circuit"`
}

// TesseractConfig configures the local OCR engine.
type TesseractConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	Language   string `yaml:"language" mapstructure:"language"`
	PSM        int    `yaml:"psm" mapstructure:"psm"`
	Preprocess bool   `yaml:"preprocess" mapstructure:"preprocess"`
}

// ClaudeVisionConf configures the Claude vision extraction provider.
type ClaudeVisionConf struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// CloudVisionConfig configures Google Cloud Vision text detection.
type CloudVisionConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CircuitConfig configures the optional per-provider circuit breaker.
type CircuitConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int  `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// SubjectConfig configures the visual subject analyzer.
type SubjectConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FusionConfig configures the fusion merger.
type FusionConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MaxServices         int     `yaml:"max_services" mapstructure:"max_services"`
}

// ScoringConfig configures the lead scoring engine. RulesPath, when set,
// points to a YAML rule table that replaces the defaults. Threshold, when
// set, overrides the rule table's threshold, including an explicit 0.
type ScoringConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
	Threshold *int   `yaml:"threshold" mapstructure:"threshold"`
}

// EnrichmentConfig configures the enrichment collaborators.
type EnrichmentConfig struct {
	Places      bool `yaml:"places" mapstructure:"places"`
	SocialScan  bool `yaml:"social_scan" mapstructure:"social_scan"`
	TimeoutSecs int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OutreachConfig configures outreach draft generation.
type OutreachConfig struct {
	Generator      string `yaml:"generator" mapstructure:"generator"`
	SenderName     string `yaml:"sender_name" mapstructure:"sender_name"`
	PreviewBaseURL string `yaml:"preview_base_url" mapstructure:"preview_base_url"`
}

// NotifyConfig configures system notifications.
type NotifyConfig struct {
	WebhookURL string     `yaml:"webhook_url" mapstructure:"webhook_url"`
	SMTP       SMTPConfig `yaml:"smtp" mapstructure:"smtp"`
}

// MonitoringConfig configures the background lead failure-rate check.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinFinished          int     `yaml:"min_finished" mapstructure:"min_finished"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// SMTPConfig holds SMTP delivery settings for email notifications.
type SMTPConfig struct {
	Host     string   `yaml:"host" mapstructure:"host"`
	Port     int      `yaml:"port" mapstructure:"port"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	From     string   `yaml:"from" mapstructure:"from"`
	To       []string `yaml:"to" mapstructure:"to"`
}

// CRMConfig toggles downstream CRM sync of qualified leads.
type CRMConfig struct {
	Salesforce bool `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     bool `yaml:"notion" mapstructure:"notion"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GoogleConfig holds Google Maps Platform / Cloud settings.
type GoogleConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds Notion API credentials and database IDs.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIELDSNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fieldsnap.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.max_retry", 0)
	v.SetDefault("extraction.priority", []string{"tesseract", "claude_vision", "cloud_vision"})
	v.SetDefault("extraction.timeout_secs", 30)
	v.SetDefault("extraction.rate_limit_backoff_ms", 2000)
	v.SetDefault("extraction.tesseract.path", "tesseract")
	v.SetDefault("extraction.tesseract.language", "eng")
	v.SetDefault("extraction.tesseract.psm", 3)
	v.SetDefault("extraction.tesseract.preprocess", true)
	v.SetDefault("extraction.claude_vision.enabled", true)
	v.SetDefault("extraction.cloud_vision.enabled", true)
	v.SetDefault("extraction.cloud_vision.base_url", "https://vision.googleapis.com/v1")
	v.SetDefault("extraction.circuit.enabled", false)
	v.SetDefault("extraction.circuit.failure_threshold", 5)
	v.SetDefault("extraction.circuit.reset_timeout_secs", 60)
	v.SetDefault("subject.backend", "gemini")
	v.SetDefault("subject.timeout_secs", 45)
	v.SetDefault("fusion.similarity_threshold", 0.5)
	v.SetDefault("fusion.max_services", 10)
	// No default: an unset threshold defers to the rule table.
	_ = v.BindEnv("scoring.threshold")
	v.SetDefault("enrichment.places", true)
	v.SetDefault("enrichment.social_scan", true)
	v.SetDefault("enrichment.timeout_secs", 20)
	v.SetDefault("outreach.generator", "template")
	v.SetDefault("outreach.sender_name", "Field Snap")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_finished", 5)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given command mode
// are present. Modes: "serve", "worker", "process".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "worker", "process":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, "store.driver must be one of memory, sqlite, postgres")
	}

	if len(c.Extraction.Priority) == 0 {
		errs = append(errs, "extraction.priority must list at least one provider")
	}

	switch c.Subject.Backend {
	case "gemini":
		if c.Gemini.Key == "" {
			errs = append(errs, "gemini.key is required")
		}
	case "claude":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	default:
		errs = append(errs, "subject.backend must be gemini or claude")
	}

	if c.Scoring.Threshold != nil && *c.Scoring.Threshold < 0 {
		errs = append(errs, "scoring.threshold must be >= 0")
	}
	if c.Fusion.SimilarityThreshold < 0 || c.Fusion.SimilarityThreshold > 1 {
		errs = append(errs, "fusion.similarity_threshold must be between 0 and 1")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "worker":
		if c.Queue.RedisURL == "" {
			errs = append(errs, "queue.redis_url is required")
		}
		if c.Queue.Concurrency < 1 {
			errs = append(errs, "queue.concurrency must be >= 1")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
