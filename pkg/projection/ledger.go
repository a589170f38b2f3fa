package projection

import (
	"fmt"
	"math/big"
)

// Ledger arithmetic operates on decimal-string big integers end-to-end.
// Nothing in this package ever converts a token quantity through a float.

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", s)
	}
	return n, nil
}

// mustBig is for values already validated by the decoder or read back from
// NUMERIC columns; a failure here is a programming error.
func mustBig(s string) *big.Int {
	n, err := parseBig(s)
	if err != nil {
		panic(err)
	}
	return n
}

// AddDec returns a + b over decimal strings.
func AddDec(a, b string) (string, error) {
	x, err := parseBig(a)
	if err != nil {
		return "", err
	}
	y, err := parseBig(b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(x, y).String(), nil
}

// SubDec returns a - b over decimal strings.
func SubDec(a, b string) (string, error) {
	x, err := parseBig(a)
	if err != nil {
		return "", err
	}
	y, err := parseBig(b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Sub(x, y).String(), nil
}

// NegDec returns -a over a decimal string.
func NegDec(a string) (string, error) {
	x, err := parseBig(a)
	if err != nil {
		return "", err
	}
	return new(big.Int).Neg(x).String(), nil
}

// CmpDec compares two decimal strings, returning -1, 0 or 1.
func CmpDec(a, b string) (int, error) {
	x, err := parseBig(a)
	if err != nil {
		return 0, err
	}
	y, err := parseBig(b)
	if err != nil {
		return 0, err
	}
	return x.Cmp(y), nil
}
