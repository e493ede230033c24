package pending

import (
	"code.equilab.io/gateway/config/encoding"
	"code.equilab.io/gateway/logging"
)

// namedLogger is the identifier for package and should ideally match the
// package name.
const namedLogger = "pending"

// Config represent the configuration of the operation tracker.
type Config struct {
	Level encoding.LogLevel

	// PurgeDelay is how long a resolved operation record stays queryable
	// before being deleted. Zero disables purging entirely.
	PurgeDelay encoding.Duration
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:      encoding.LogLevel{Level: logging.InfoLevel},
		PurgeDelay: encoding.Duration{Duration: 0},
	}
}
