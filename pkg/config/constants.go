package config

const (
	EnvPrefix = "PACKFINDERZ"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "PACKFINDERZ_APP_ENV"
	EnvPort     = "PACKFINDERZ_APP_PORT"
	EnvDBDSN    = "PACKFINDERZ_DB_DSN"
	EnvDBHost   = "PACKFINDERZ_DB_HOST"
	EnvDBUser   = "PACKFINDERZ_DB_USER"
	EnvDBName   = "PACKFINDERZ_DB_NAME"
	EnvRedisURL = "PACKFINDERZ_REDIS_URL"

	EnvGCPProjectID       = "PACKFINDERZ_GCP_PROJECT_ID"
	EnvPubSubStockTopic   = "PACKFINDERZ_PUBSUB_STOCK_TOPIC"
	EnvCartMaxLineQty     = "PACKFINDERZ_CART_MAX_LINE_QTY"
	EnvVariantsMaxCombos  = "PACKFINDERZ_VARIANTS_MAX_COMBINATIONS"
	EnvTracingEnabled     = "PACKFINDERZ_TRACING_ENABLED"
	EnvTracingSampleRatio = "PACKFINDERZ_TRACING_SAMPLE_RATIO"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
