package gateway

import (
	"code.equilab.io/gateway/config/encoding"
	"code.equilab.io/gateway/logging"
)

// namedLogger is the identifier for package and should ideally match the
// package name.
const namedLogger = "gateway"

const (
	defaultGatewayIP   = "0.0.0.0"
	defaultGatewayPort = 3000
)

// Config represents the configuration of the HTTP gateway.
type Config struct {
	Level encoding.LogLevel

	IP   string
	Port int
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level: encoding.LogLevel{Level: logging.InfoLevel},
		IP:    defaultGatewayIP,
		Port:  defaultGatewayPort,
	}
}
