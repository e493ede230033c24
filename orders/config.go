package orders

import (
	"code.equilab.io/gateway/config/encoding"
	"code.equilab.io/gateway/logging"
)

// namedLogger is the identifier for package and should ideally match the
// package name.
const namedLogger = "orders"

// Config represents the configuration of the order coordinator.
type Config struct {
	Level encoding.LogLevel

	// SubmitTimeout bounds how long a detached submission waits for its
	// inclusion report before the operation is failed. Zero, the default,
	// waits forever: a never-included submission stays pending, it is
	// never guessed to have failed.
	SubmitTimeout encoding.Duration
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level: encoding.LogLevel{Level: logging.InfoLevel},
	}
}
