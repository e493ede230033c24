package num

// Precisions applied when a decimal crosses into the ledger wire format.
// On the wire every monetary value is an integer string scaled by the
// relevant precision.
var (
	// AmountPrecision scales order amounts (1e18).
	AmountPrecision = MustDecimalFromString("1000000000000000000")
	// PricePrecision scales order and oracle prices (1e9).
	PricePrecision = MustDecimalFromString("1000000000")
	// TransferPrecision scales deposit and withdrawal amounts (1e9).
	TransferPrecision = MustDecimalFromString("1000000000")
)

// ScaleAmount renders an order amount as a ledger integer string.
func ScaleAmount(d Decimal) string {
	return d.Mul(AmountPrecision).Truncate(0).String()
}

// ScalePrice renders a price as a ledger integer string.
func ScalePrice(d Decimal) string {
	return d.Mul(PricePrecision).Truncate(0).String()
}

// ScaleTransfer renders a transfer amount as a ledger integer string.
func ScaleTransfer(d Decimal) string {
	return d.Mul(TransferPrecision).Truncate(0).String()
}

// UnscaleAmount parses a ledger integer string back into an amount.
func UnscaleAmount(s string) (Decimal, error) {
	d, err := DecimalFromString(s)
	if err != nil {
		return DecimalZero(), err
	}
	return d.Div(AmountPrecision), nil
}

// UnscalePrice parses a ledger integer string back into a price. Balances
// share the price precision so this also unscales signed balances.
func UnscalePrice(s string) (Decimal, error) {
	d, err := DecimalFromString(s)
	if err != nil {
		return DecimalZero(), err
	}
	return d.Div(PricePrecision), nil
}
