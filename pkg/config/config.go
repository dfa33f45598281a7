package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	Stripe        StripeConfig
	Razorpay      RazorpayConfig
	Payments      PaymentsConfig
	LLM           LLMConfig
	Chat          ChatConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPZEN_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPZEN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPZEN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPZEN_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"SHOPZEN_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// IsProd accepts both the short and the long production name.
func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, AppEnvProduction)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPZEN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPZEN_DB_DSN"`
	Driver string `envconfig:"SHOPZEN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPZEN_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPZEN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPZEN_DB_USER"`
	LegacyPassword string `envconfig:"SHOPZEN_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPZEN_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPZEN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPZEN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPZEN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPZEN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPZEN_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SHOPZEN_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPZEN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPZEN_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPZEN_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPZEN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPZEN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPZEN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPZEN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPZEN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPZEN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SHOPZEN_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SHOPZEN_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SHOPZEN_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SHOPZEN_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPZEN_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPZEN_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPZEN_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPZEN_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPZEN_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SHOPZEN_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SHOPZEN_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SHOPZEN_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SHOPZEN_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SHOPZEN_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SHOPZEN_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPZEN_FEATURE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPZEN_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SHOPZEN_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SHOPZEN_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"SHOPZEN_PUBSUB_ORDERS_TOPIC" default:"shopzen-order-events"`
	PaymentsTopic string `envconfig:"SHOPZEN_PUBSUB_PAYMENTS_TOPIC" default:"shopzen-payment-events"`
	ChatTopic     string `envconfig:"SHOPZEN_PUBSUB_CHAT_TOPIC" default:"shopzen-chat-events"`
	DLQTopic      string `envconfig:"SHOPZEN_PUBSUB_DLQ_TOPIC" default:"shopzen-outbox-dlq"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"SHOPZEN_KAFKA_BROKERS"`
	ClientID     string        `envconfig:"SHOPZEN_KAFKA_CLIENT_ID" default:"shopzen-outbox"`
	WriteTimeout time.Duration `envconfig:"SHOPZEN_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

// Enabled reports whether at least one broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type OutboxConfig struct {
	Sink            string        `envconfig:"SHOPZEN_OUTBOX_SINK" default:"pubsub"`
	BatchSize       int           `envconfig:"SHOPZEN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS  int           `envconfig:"SHOPZEN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts     int           `envconfig:"SHOPZEN_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionPeriod time.Duration `envconfig:"SHOPZEN_OUTBOX_RETENTION" default:"168h"`
	MetricsAddr     string        `envconfig:"SHOPZEN_OUTBOX_METRICS_ADDR" default:":9091"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SHOPZEN_STRIPE_API_KEY"`
	Secret string `envconfig:"SHOPZEN_STRIPE_SECRET"`
	Env    string `envconfig:"SHOPZEN_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"SHOPZEN_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"SHOPZEN_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"SHOPZEN_RAZORPAY_WEBHOOK_SECRET"`
}

// Configured reports whether API credentials are present.
func (r RazorpayConfig) Configured() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

type PaymentsConfig struct {
	Currency          string        `envconfig:"SHOPZEN_PAYMENTS_CURRENCY" default:"INR"`
	MerchantName      string        `envconfig:"SHOPZEN_PAYMENTS_MERCHANT_NAME" default:"ShopZen"`
	ThemeColor        string        `envconfig:"SHOPZEN_PAYMENTS_THEME_COLOR" default:"#3399cc"`
	WebhookReplayTTL  time.Duration `envconfig:"SHOPZEN_PAYMENTS_WEBHOOK_REPLAY_TTL" default:"72h"`
	EnableMockPayment bool          `envconfig:"SHOPZEN_PAYMENTS_ENABLE_MOCK" default:"true"`
	MockSigningSecret string        `envconfig:"SHOPZEN_PAYMENTS_MOCK_SIGNING_SECRET" default:"mock_secret"`
}

type LLMConfig struct {
	APIKey          string        `envconfig:"SHOPZEN_LLM_API_KEY"`
	BaseURL         string        `envconfig:"SHOPZEN_LLM_BASE_URL" default:"https://api.openai.com/v1"`
	Model           string        `envconfig:"SHOPZEN_LLM_MODEL" default:"gpt-4o-mini"`
	Timeout         time.Duration `envconfig:"SHOPZEN_LLM_TIMEOUT" default:"30s"`
	MaxOutputTokens int           `envconfig:"SHOPZEN_LLM_MAX_OUTPUT_TOKENS" default:"1000"`
	Temperature     float64       `envconfig:"SHOPZEN_LLM_TEMPERATURE" default:"0.3"`
}

// Configured reports whether a provider key is present.
func (l LLMConfig) Configured() bool {
	return strings.TrimSpace(l.APIKey) != ""
}

type ChatConfig struct {
	ContextWindow  int     `envconfig:"SHOPZEN_CHAT_CONTEXT_WINDOW" default:"10"`
	MaxToolRounds  int     `envconfig:"SHOPZEN_CHAT_MAX_TOOL_ROUNDS" default:"5"`
	RateLimitRPS   float64 `envconfig:"SHOPZEN_CHAT_RATE_LIMIT_RPS" default:"0.5"`
	RateLimitBurst int     `envconfig:"SHOPZEN_CHAT_RATE_LIMIT_BURST" default:"5"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"SHOPZEN_CRON_INTERVAL" default:"5m"`
	PendingOrderTTL time.Duration `envconfig:"SHOPZEN_CRON_PENDING_ORDER_TTL" default:"24h"`
	ExpireBatchSize int           `envconfig:"SHOPZEN_CRON_EXPIRE_BATCH_SIZE" default:"100"`
	LockTTL         time.Duration `envconfig:"SHOPZEN_CRON_LOCK_TTL" default:"4m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
