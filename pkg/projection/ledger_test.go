package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDec(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"simple", "1", "2", "3"},
		{"negative", "-5", "3", "-2"},
		{"empty is zero", "", "7", "7"},
		{"large", "340282366920938463463374607431768211456", "1", "340282366920938463463374607431768211457"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddDec(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := AddDec("abc", "1")
	assert.Error(t, err)
}

func TestSubDec(t *testing.T) {
	got, err := SubDec("400", "1000")
	require.NoError(t, err)
	assert.Equal(t, "-600", got)

	got, err = SubDec("1000", "")
	require.NoError(t, err)
	assert.Equal(t, "1000", got)

	_, err = SubDec("1", "1.5")
	assert.Error(t, err)
}

func TestNegDec(t *testing.T) {
	got, err := NegDec("125")
	require.NoError(t, err)
	assert.Equal(t, "-125", got)

	got, err = NegDec("-7")
	require.NoError(t, err)
	assert.Equal(t, "7", got)

	got, err = NegDec("0")
	require.NoError(t, err)
	assert.Equal(t, "0", got)
}

func TestCmpDec(t *testing.T) {
	cmp, err := CmpDec("120", "100")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = CmpDec("90", "100")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = CmpDec("100", "100")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
}

func TestFormatTradeRatio(t *testing.T) {
	assert.Equal(t, "1.5", formatTradeRatio("1500000000000000000"))
	assert.Equal(t, "1", formatTradeRatio("1000000000000000000"))
	assert.Equal(t, "0.000000000000000001", formatTradeRatio("1"))
	assert.Equal(t, "", formatTradeRatio("0"))
	assert.Equal(t, "", formatTradeRatio(""))
	assert.Equal(t, "", formatTradeRatio("not-a-number"))
}
