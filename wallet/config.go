package wallet

// Config represents the configuration of the wallet.
type Config struct {
	// SeedsPath points at a JSON array of 12 word seed phrases, one signer
	// per seed.
	SeedsPath string
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		SeedsPath: "seeds.json",
	}
}
