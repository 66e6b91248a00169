package config

const EnvPrefix = "TASTEBUD"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EventingBackendPubSub = "pubsub"
	EventingBackendKafka  = "kafka"
)

const (
	EnvAppEnv          = "TASTEBUD_APP_ENV"
	EnvPort            = "TASTEBUD_APP_PORT"
	EnvDBDSN           = "TASTEBUD_DB_DSN"
	EnvDBDriver        = "TASTEBUD_DB_DRIVER"
	EnvDBHost          = "TASTEBUD_DB_HOST"
	EnvDBUser          = "TASTEBUD_DB_USER"
	EnvDBPassword      = "TASTEBUD_DB_PASSWORD"
	EnvDBName          = "TASTEBUD_DB_NAME"
	EnvDBPort          = "TASTEBUD_DB_PORT"
	EnvRedisURL        = "TASTEBUD_REDIS_URL"
	EnvJWTSecret       = "TASTEBUD_JWT_SECRET"
	EnvJWTIssuer       = "TASTEBUD_JWT_ISSUER"
	EnvPricingTaxRate  = "TASTEBUD_PRICING_TAX_RATE"
	EnvPricingFee      = "TASTEBUD_PRICING_DELIVERY_FEE_CENTS"
	EnvEventingBackend = "TASTEBUD_EVENTING_BACKEND"
	EnvKafkaBrokers    = "TASTEBUD_KAFKA_BROKERS"
	EnvCheckoutRetries = "TASTEBUD_CHECKOUT_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
