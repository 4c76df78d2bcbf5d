package client

import (
	"github.com/google/wire"

	"github.com/zeusync/objectsync/internal/core/observability/log"
)

// ProviderSet builds a *Client from a Config.
var ProviderSet = wire.NewSet(ProvideLogger, ProvideClient)

// ProvideLogger builds the zap logger at the configured level.
func ProvideLogger(config Config) log.Log {
	return log.New(log.ParseLevel(config.LogLevel))
}

// ProvideClient builds a Client that logs through logger.
func ProvideClient(config Config, logger log.Log) (*Client, error) {
	return New(config, WithLogger(logger))
}
