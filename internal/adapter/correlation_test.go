package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury/internal/model/enum"
)

func TestCorrelationRoundTrip(t *testing.T) {
	type payload struct {
		V    int    `json:"v"`
		Step string `json:"step"`
	}

	encoded, err := encodeCorrelation("sys:cmd:", payload{V: 1, Step: "scanning"})
	require.NoError(t, err)
	assert.Contains(t, encoded, "sys:cmd:")

	var decoded payload
	require.NoError(t, decodeCorrelation(encoded, "sys:cmd:", &decoded))
	assert.Equal(t, payload{V: 1, Step: "scanning"}, decoded)
}

func TestCorrelationRejectsForeignPrefix(t *testing.T) {
	encoded, err := encodeCorrelation("kraken:trade:", struct{}{})
	require.NoError(t, err)

	var decoded struct{}
	assert.Error(t, decodeCorrelation(encoded, "binance:trade:", &decoded))
}

func TestRegistryLookups(t *testing.T) {
	dex := NewDex(nil)
	registry := NewRegistry(dex)

	got, err := registry.Get(enum.SystemDex)
	require.NoError(t, err)
	assert.Equal(t, dex.System(), got.System())

	_, err = registry.Get(enum.SystemKraken)
	assert.Error(t, err)

	assert.True(t, registry.Supports(enum.SystemDex, enum.CommandBuy))
	assert.False(t, registry.Supports(enum.SystemDex, enum.CommandWithdraw))
}
