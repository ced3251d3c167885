package constants

import "github.com/go-playground/validator/v10"

type ContextKey string

const (
	TxKey     ContextKey = "tx"
	PoolKey   ContextKey = "pool"
	LoggerKey ContextKey = "logger"
)

// Validate is shared so struct tag caches are built once per process.
var Validate = validator.New(validator.WithRequiredStructEnabled())
