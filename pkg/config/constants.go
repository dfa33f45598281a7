package config

const (
	EnvPrefix = "SHOPZEN"

	AppEnvDev        = "dev"
	AppEnvProd       = "prod"
	AppEnvProduction = "production"

	EnvAppEnv                 = "SHOPZEN_APP_ENV"
	EnvPort                   = "SHOPZEN_APP_PORT"
	EnvLogLevel               = "SHOPZEN_LOG_LEVEL"
	EnvDBDSN                  = "SHOPZEN_DB_DSN"
	EnvDBHost                 = "SHOPZEN_DB_HOST"
	EnvDBUser                 = "SHOPZEN_DB_USER"
	EnvDBName                 = "SHOPZEN_DB_NAME"
	EnvRedisURL               = "SHOPZEN_REDIS_URL"
	EnvJWTSecret              = "SHOPZEN_JWT_SECRET"
	EnvJWTIssuer              = "SHOPZEN_JWT_ISSUER"
	EnvJWTExpMins             = "SHOPZEN_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SHOPZEN_REFRESH_TOKEN_TTL_MINUTES"
	EnvKafkaBrokers           = "SHOPZEN_KAFKA_BROKERS"
	EnvRazorpayKeyID          = "SHOPZEN_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret      = "SHOPZEN_RAZORPAY_KEY_SECRET"
	EnvLLMAPIKey              = "SHOPZEN_LLM_API_KEY"
	EnvChatContextWindow      = "SHOPZEN_CHAT_CONTEXT_WINDOW"
	EnvChatMaxToolRounds      = "SHOPZEN_CHAT_MAX_TOOL_ROUNDS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
