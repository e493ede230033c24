package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"

	"code.equilab.io/gateway/logging"

	"github.com/pkg/errors"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

const namedLogger = "wallet"

var (
	// ErrSignerNotFound is returned when no local signing capability exists
	// for the requested address.
	ErrSignerNotFound = errors.New("address not found in keyring")
	// ErrInvalidMnemonic is returned for malformed seed phrases.
	ErrInvalidMnemonic = errors.New("invalid 12 word mnemonic")
)

// Pair is one local signing capability, keyed by its derived address.
type Pair struct {
	address string
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
}

// Address returns the ledger address of the pair.
func (p *Pair) Address() string {
	return p.address
}

// PublicKey returns the raw public key bytes.
func (p *Pair) PublicKey() []byte {
	return p.pub
}

// Sign signs an arbitrary payload.
func (p *Pair) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(p.priv, payload), nil
}

// Wallet holds one signing pair per configured seed phrase.
type Wallet struct {
	log   *logging.Logger
	pairs map[string]*Pair
	order []string
}

// New reads the seeds file referenced by the config and derives one signer
// per seed phrase.
func New(log *logging.Logger, cfg Config) (*Wallet, error) {
	buf, err := os.ReadFile(cfg.SeedsPath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read seeds file")
	}
	var mnemonics []string
	if err := json.Unmarshal(buf, &mnemonics); err != nil {
		return nil, errors.Wrap(err, "unable to parse seeds file")
	}
	return FromMnemonics(log, mnemonics)
}

// FromMnemonics derives one signer per 12 word mnemonic.
func FromMnemonics(log *logging.Logger, mnemonics []string) (*Wallet, error) {
	log = log.Named(namedLogger)

	w := &Wallet{
		log:   log,
		pairs: map[string]*Pair{},
	}
	for _, m := range mnemonics {
		if len(strings.Fields(m)) != 12 || !bip39.IsMnemonicValid(m) {
			return nil, ErrInvalidMnemonic
		}
		pair := derivePair(m)
		if _, ok := w.pairs[pair.address]; ok {
			continue
		}
		w.pairs[pair.address] = pair
		w.order = append(w.order, pair.address)
		log.Info("address added to keyring", logging.String("address", pair.address))
	}
	return w, nil
}

// Pair returns the signing pair for the given address.
func (w *Wallet) Pair(address string) (*Pair, error) {
	p, ok := w.pairs[address]
	if !ok {
		return nil, ErrSignerNotFound
	}
	return p, nil
}

// Addresses lists every local signing address, in seed order.
func (w *Wallet) Addresses() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

func derivePair(mnemonic string) *Pair {
	seed := bip39.NewSeed(mnemonic, "")
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)
	sum := blake2b.Sum256(pub)
	return &Pair{
		address: hex.EncodeToString(sum[:20]),
		pub:     pub,
		priv:    priv,
	}
}
