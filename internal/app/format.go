package app

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// tokenDecimals is the fixed-point scale of ledger amounts.
const tokenDecimals = 18

var (
	weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(tokenDecimals), nil)
	// centDivisor converts the 18-digit fractional part to 2 digits.
	centDivisor = new(big.Int).Exp(big.NewInt(10), big.NewInt(tokenDecimals-2), nil)
)

// FormatAmount renders a smallest-unit integer string as a currency string,
// truncating (not rounding) the fraction to two digits:
// "1500000000000000000" -> "$1.50". Unparseable input renders as "$0.00".
func FormatAmount(raw string) string {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return "$0.00"
	}
	whole, frac := new(big.Int).QuoRem(v, weiPerToken, new(big.Int))
	cents := new(big.Int).Quo(frac, centDivisor)
	return fmt.Sprintf("$%s.%02d", whole.String(), cents.Int64())
}

// Progress returns floor(current*100/target) for smallest-unit integer
// strings. A zero or unparseable target yields 0.
func Progress(current, target string) int {
	c, okC := new(big.Int).SetString(strings.TrimSpace(current), 10)
	t, okT := new(big.Int).SetString(strings.TrimSpace(target), 10)
	if !okC || !okT || t.Sign() <= 0 || c.Sign() < 0 {
		return 0
	}
	p := new(big.Int).Div(new(big.Int).Mul(c, big.NewInt(100)), t)
	if !p.IsInt64() || p.Int64() > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(p.Int64())
}
