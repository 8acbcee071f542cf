package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_RELAY_ADDR targets a running relay (http://host:port). Empty boots one in process.
	RelayAddr string `envconfig:"E2E_RELAY_ADDR"`
	// E2E_GRPC_ADDR is the health endpoint of the relay above
	GrpcAddr string `envconfig:"E2E_GRPC_ADDR"`
	// E2E_DEBUG_JSON dumps every websocket frame and gRPC body
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
