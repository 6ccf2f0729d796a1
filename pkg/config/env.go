package config

// EnvPrefix namespaces all uploader environment variables.
const EnvPrefix = "WANDERN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "WANDERN_APP_ENV"
	EnvPort   = "WANDERN_APP_PORT"

	EnvDBDSN  = "WANDERN_DB_DSN"
	EnvDBHost = "WANDERN_DB_HOST"
	EnvDBUser = "WANDERN_DB_USER"
	EnvDBName = "WANDERN_DB_NAME"

	EnvRedisURL = "WANDERN_REDIS_URL"

	EnvModerationAgentURL = "WANDERN_MODERATION_AGENT_URL"
	EnvArweaveNodeURL     = "WANDERN_ARWEAVE_NODE_URL"
	EnvArweaveWalletKey   = "WANDERN_ARWEAVE_WALLET_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
