package dlmm

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef_UnmarshalNumberAndString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Ref
	}{
		{name: "number", raw: `123456789`, want: "123456789"},
		{name: "string", raw: `"123456789"`, want: "123456789"},
		{name: "integral float", raw: `123456789.0`, want: "123456789"},
		{name: "padded string", raw: `" pool_1 "`, want: "pool_1"},
		{name: "null", raw: `null`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Ref
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			assert.Equal(t, tt.want, r)
		})
	}
}

func TestRef_Equal(t *testing.T) {
	assert.True(t, Ref("42").Equal(Ref(" 42 ")))
	assert.True(t, Ref("42.00").Equal(Ref("42")))
	assert.False(t, Ref("42").Equal(Ref("pool_42")))
}

func TestRef_Short(t *testing.T) {
	assert.Equal(t, "pool_123", Ref("pool_123456789").Short(8))
	assert.Equal(t, "abc", Ref("abc").Short(8))
}

func TestRawBinPosition_DecodeMixedIDs(t *testing.T) {
	raw := `{"id":1,"pool":987654321,"lowerBinId":150,"upperBinId":250,
		"liquidityShares":[600,600],
		"tokens":[{"mint":"m","symbol":"SOL","amount":12}],"fees":6.0}`

	var bin RawBinPosition
	require.NoError(t, json.Unmarshal([]byte(raw), &bin))

	assert.Equal(t, Ref("1"), bin.ID)
	assert.True(t, bin.Pool.Equal("987654321"))
	assert.Len(t, bin.LiquidityShares, 2)
	assert.True(t, bin.Fees.Equal(decimal.NewFromInt(6)))
	assert.True(t, bin.Tokens[0].Amount.Equal(decimal.NewFromInt(12)))
}

func TestPosition_LiquidityValue(t *testing.T) {
	p := Position{RawBinPosition: RawBinPosition{
		LiquidityShares: []decimal.Decimal{decimal.NewFromInt(1000), decimal.NewFromInt(1500)},
	}}
	assert.True(t, p.LiquidityValue().Equal(decimal.NewFromInt(2500)))

	assert.True(t, Position{}.LiquidityValue().IsZero())
}
