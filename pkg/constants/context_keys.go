package constants

type contextKey string

const (
	TxKey     contextKey = "tx"
	PoolKey   contextKey = "pool"
	LoggerKey contextKey = "logger"
	RunIDKey  contextKey = "run_id"
)
