package markets

import (
	"code.equilab.io/gateway/config/encoding"
	"code.equilab.io/gateway/logging"
)

// namedLogger is the identifier for package and should ideally match the
// package name.
const namedLogger = "markets"

const defaultDepthLimit = 100

// Config represents the configuration of the market data service.
type Config struct {
	Level encoding.LogLevel

	// DepthLimit caps the number of price levels per book side when the
	// request does not ask for a specific depth.
	DepthLimit uint64
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:      encoding.LogLevel{Level: logging.InfoLevel},
		DepthLimit: defaultDepthLimit,
	}
}
