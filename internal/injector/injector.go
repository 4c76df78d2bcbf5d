//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/objectsync/sdk/go/client"
)

// InitializeClient builds a Client and its logger from config.
func InitializeClient(config client.Config) (*client.Client, error) {
	wire.Build(client.ProviderSet)
	return nil, nil
}
