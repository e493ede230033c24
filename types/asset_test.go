package types_test

import (
	"testing"

	"code.equilab.io/gateway/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetID(t *testing.T) {
	t.Run("Round trips known symbols", testAssetIDRoundTrip)
	t.Run("Is case insensitive", testAssetIDCaseInsensitive)
	t.Run("Rejects invalid symbols", testAssetIDInvalid)
}

func testAssetIDRoundTrip(t *testing.T) {
	for _, token := range []string{"eq", "eqd", "btc", "eth", "gens"} {
		id, err := types.AssetID(token)
		require.NoError(t, err)
		assert.Equal(t, token, types.TokenFromAssetID(id))
	}
}

func testAssetIDCaseInsensitive(t *testing.T) {
	lower, err := types.AssetID("btc")
	require.NoError(t, err)
	upper, err := types.AssetID("BTC")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func testAssetIDInvalid(t *testing.T) {
	for _, token := range []string{"", "toolongtoken", "b-c", "eq1"} {
		_, err := types.AssetID(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestDirection(t *testing.T) {
	d, err := types.ParseDirection("Buy")
	require.NoError(t, err)
	assert.Equal(t, types.DirectionBuy, d)
	assert.Equal(t, "Buy", d.Ledger())

	d, err = types.ParseDirection("sell")
	require.NoError(t, err)
	assert.Equal(t, "Sell", d.Ledger())

	_, err = types.ParseDirection("hold")
	assert.Error(t, err)
}
