package trades

import (
	"time"

	"code.equilab.io/gateway/config/encoding"
	"code.equilab.io/gateway/logging"
)

// namedLogger is the identifier for package and should ideally match the
// package name.
const namedLogger = "trades"

const (
	defaultAPIEndpoint = "https://apiv3.equilibrium.io/api"
	defaultPageSize    = 100
	maximumPageSize    = 100
)

// Config represents the configuration of the trade history service.
type Config struct {
	Level encoding.LogLevel

	// APIEndpoint is the base URL of the exchange history API.
	APIEndpoint string
	Timeout     encoding.Duration
	Retries     uint64

	DefaultPageSize uint64
	MaximumPageSize uint64
}

// NewDefaultConfig creates an instance of the package specific
// configuration, given a pointer to a logger instance to be used for
// logging within the package.
func NewDefaultConfig() Config {
	return Config{
		Level:           encoding.LogLevel{Level: logging.InfoLevel},
		APIEndpoint:     defaultAPIEndpoint,
		Timeout:         encoding.Duration{Duration: 10 * time.Second},
		Retries:         5,
		DefaultPageSize: defaultPageSize,
		MaximumPageSize: maximumPageSize,
	}
}
