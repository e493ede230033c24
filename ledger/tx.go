package ledger

import (
	"encoding/hex"
	"encoding/json"
)

// Subaccount roles recognised by the ledger's subaccounts module.
const (
	SubaccountTrader   = "Trader"
	SubaccountBorrower = "Borrower"
)

// Call is one dispatchable ledger call, module scoped, with positional
// arguments in the node's wire encoding.
type Call struct {
	Module string        `json:"module"`
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}

// NewCreateLimitOrder builds the create order call for a resting limit
// order. usingPool routes the order through the market maker pool module
// instead of the plain dex, everything else is identical.
func NewCreateLimitOrder(asset uint64, price, amount string, direction string, usingPool bool) Call {
	module := "eqDex"
	if usingPool {
		module = "eqMarketMaker"
	}
	return Call{
		Module: module,
		Method: "createOrder",
		Args: []interface{}{
			asset,
			map[string]interface{}{"limit": map[string]interface{}{"price": price, "expirationTime": 0}},
			direction,
			amount,
		},
	}
}

// NewCreateMarketOrder builds the create order call for a market order.
func NewCreateMarketOrder(asset uint64, amount string, direction string) Call {
	return Call{
		Module: "eqDex",
		Method: "createOrder",
		Args: []interface{}{
			asset,
			map[string]interface{}{"market": map[string]interface{}{}},
			direction,
			amount,
		},
	}
}

// NewCancelOrder builds the order deletion call. The price is part of the
// on-chain lookup key, not just identification.
func NewCancelOrder(asset uint64, orderID uint64, price string, usingPool bool) Call {
	module := "eqDex"
	if usingPool {
		module = "eqMarketMaker"
	}
	return Call{
		Module: module,
		Method: "deleteOrder",
		Args:   []interface{}{asset, orderID, price},
	}
}

// NewToSubaccount builds the transfer from a master account to one of its
// sub-accounts.
func NewToSubaccount(role string, asset uint64, amount string) Call {
	return Call{
		Module: "subaccounts",
		Method: "toSubaccount",
		Args:   []interface{}{role, asset, amount},
	}
}

// NewFromSubaccount builds the transfer from a sub-account back to its
// master account.
func NewFromSubaccount(role string, asset uint64, amount string) Call {
	return Call{
		Module: "subaccounts",
		Method: "fromSubaccount",
		Args:   []interface{}{role, asset, amount},
	}
}

// NewSudoDeposit wraps a balances deposit in a sudo call.
func NewSudoDeposit(asset uint64, to string, amount string) Call {
	return Call{
		Module: "sudo",
		Method: "sudo",
		Args: []interface{}{
			Call{
				Module: "eqBalances",
				Method: "deposit",
				Args:   []interface{}{asset, to, amount},
			},
		},
	}
}

// NewRemark builds a free form marker transaction. It has no on-chain
// effect beyond being included.
func NewRemark(text string) Call {
	return Call{
		Module: "system",
		Method: "remark",
		Args:   []interface{}{text},
	}
}

// Tx is one transaction ready for signing. A nil nonce lets the node assign
// the next free one, used only by privileged operations outside the
// registry's ownership.
type Tx struct {
	Call  Call    `json:"call"`
	Nonce *uint64 `json:"nonce"`
	Tip   uint64  `json:"tip"`
}

// Signer is an opaque signing capability for one address.
type Signer interface {
	Address() string
	PublicKey() []byte
	Sign(payload []byte) ([]byte, error)
}

type signedTx struct {
	Call      Call    `json:"call"`
	Nonce     *uint64 `json:"nonce"`
	Tip       uint64  `json:"tip"`
	Signer    string  `json:"signer"`
	PublicKey string  `json:"publicKey"`
	Signature string  `json:"signature"`
}

func signTx(tx *Tx, signer Signer) (*signedTx, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, err
	}
	return &signedTx{
		Call:      tx.Call,
		Nonce:     tx.Nonce,
		Tip:       tx.Tip,
		Signer:    signer.Address(),
		PublicKey: hex.EncodeToString(signer.PublicKey()),
		Signature: hex.EncodeToString(sig),
	}, nil
}
