package ledger

import (
	"code.equilab.io/gateway/config/encoding"
	"code.equilab.io/gateway/logging"
)

// namedLogger is the identifier for package and should ideally match the
// package name.
const namedLogger = "ledger"

// Config represent the configuration of the ledger session.
type Config struct {
	Level encoding.LogLevel

	// ChainNode is the websocket endpoint of the ledger node.
	ChainNode string
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:     encoding.LogLevel{Level: logging.InfoLevel},
		ChainNode: "wss://devnet.genshiro.io",
	}
}
