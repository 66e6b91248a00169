package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	Observer     ObserverConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Pricing.Tax(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TASTEBUD_APP_ENV" required:"true"`
	Port         string `envconfig:"TASTEBUD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TASTEBUD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TASTEBUD_LOG_WARN_STACK" default:"false"`
	// CORSOrigins overrides the default allowed browser origins.
	CORSOrigins []string `envconfig:"TASTEBUD_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TASTEBUD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TASTEBUD_DB_DSN"`
	Driver string `envconfig:"TASTEBUD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TASTEBUD_DB_HOST"`
	LegacyPort     int    `envconfig:"TASTEBUD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TASTEBUD_DB_USER"`
	LegacyPassword string `envconfig:"TASTEBUD_DB_PASSWORD"`
	LegacyName     string `envconfig:"TASTEBUD_DB_NAME"`
	LegacySSLMode  string `envconfig:"TASTEBUD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TASTEBUD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TASTEBUD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TASTEBUD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TASTEBUD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"TASTEBUD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TASTEBUD_REDIS_ADDR"`
	Password     string        `envconfig:"TASTEBUD_REDIS_PASSWORD"`
	DB           int           `envconfig:"TASTEBUD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TASTEBUD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TASTEBUD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TASTEBUD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TASTEBUD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TASTEBUD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TASTEBUD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TASTEBUD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TASTEBUD_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TASTEBUD_AUTO_MIGRATE" default:"false"`
	// AllowForceStatus enables the admin override that bypasses lifecycle ordering.
	AllowForceStatus bool `envconfig:"TASTEBUD_FEATURE_ALLOW_FORCE_STATUS" default:"true"`
}

type PricingConfig struct {
	DeliveryFeeCents int    `envconfig:"TASTEBUD_PRICING_DELIVERY_FEE_CENTS" default:"4900"`
	TaxRate          string `envconfig:"TASTEBUD_PRICING_TAX_RATE" default:"0.05"`
	// LoyaltyEarnCentsPerPoint is the order total that earns one loyalty point.
	LoyaltyEarnCentsPerPoint int `envconfig:"TASTEBUD_PRICING_LOYALTY_EARN_CENTS_PER_POINT" default:"1000"`
}

// Tax parses the configured tax rate.
func (p PricingConfig) Tax() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.TaxRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvPricingTaxRate, p.TaxRate, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvPricingTaxRate)
	}
	return rate, nil
}

type CartConfig struct {
	TTL time.Duration `envconfig:"TASTEBUD_CART_TTL" default:"168h"`
}

type CheckoutConfig struct {
	MaxAttempts int           `envconfig:"TASTEBUD_CHECKOUT_MAX_ATTEMPTS" default:"3"`
	BaseBackoff time.Duration `envconfig:"TASTEBUD_CHECKOUT_BASE_BACKOFF" default:"50ms"`
	MaxBackoff  time.Duration `envconfig:"TASTEBUD_CHECKOUT_MAX_BACKOFF" default:"1s"`
}

type ObserverConfig struct {
	ChannelPrefix      string `envconfig:"TASTEBUD_OBSERVER_CHANNEL_PREFIX" default:"tb:orders"`
	RestaurantBacklog  int    `envconfig:"TASTEBUD_OBSERVER_RESTAURANT_BACKLOG" default:"50"`
	UseRedisBroadcasts bool   `envconfig:"TASTEBUD_OBSERVER_USE_REDIS" default:"true"`
}

// EventingConfig selects the broker cmd/outbox-publisher ships events to.
type EventingConfig struct {
	Backend string `envconfig:"TASTEBUD_EVENTING_BACKEND" default:"pubsub"`
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Backend)) {
	case EventingBackendPubSub, EventingBackendKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvEventingBackend, EventingBackendPubSub, EventingBackendKafka)
	}
}

// UsesKafka reports whether outbox events are shipped to Kafka.
func (e EventingConfig) UsesKafka() bool {
	return strings.EqualFold(strings.TrimSpace(e.Backend), EventingBackendKafka)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TASTEBUD_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TASTEBUD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TASTEBUD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"TASTEBUD_PUBSUB_ORDERS_TOPIC" default:"tb-order-events"`
	NotificationTopic string `envconfig:"TASTEBUD_PUBSUB_NOTIFICATION_TOPIC" default:"tb-notification-events"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"TASTEBUD_KAFKA_BROKERS" default:"localhost:9092"`
	OrdersTopic  string        `envconfig:"TASTEBUD_KAFKA_ORDERS_TOPIC" default:"tb.order-events"`
	BatchTimeout time.Duration `envconfig:"TASTEBUD_KAFKA_BATCH_TIMEOUT" default:"10ms"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TASTEBUD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TASTEBUD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TASTEBUD_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives cmd/cron-worker.
type CronConfig struct {
	Interval            time.Duration `envconfig:"TASTEBUD_CRON_INTERVAL" default:"15m"`
	LockTTL             time.Duration `envconfig:"TASTEBUD_CRON_LOCK_TTL" default:"14m"`
	ReconcileLookback   time.Duration `envconfig:"TASTEBUD_CRON_RECONCILE_LOOKBACK" default:"2h"`
	ReconcileBatchSize  int           `envconfig:"TASTEBUD_CRON_RECONCILE_BATCH_SIZE" default:"500"`
	OutboxRetentionDays int           `envconfig:"TASTEBUD_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
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
