package arbiter

import "math/big"

// All pricing math runs on a common 1e18 fixed-point scale so tokens
// and feeds with heterogeneous decimals compare directly.
const normalizedDecimals = 18

var oneE18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(normalizedDecimals), nil)

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// normalize rescales amount from the given decimals to 1e18.
func normalize(amount *big.Int, decimals uint8) *big.Int {
	if decimals == normalizedDecimals {
		return new(big.Int).Set(amount)
	}
	if decimals < normalizedDecimals {
		return new(big.Int).Mul(amount, pow10(normalizedDecimals-decimals))
	}
	return new(big.Int).Quo(amount, pow10(decimals-normalizedDecimals))
}

// denormalize rescales amount from 1e18 back to the given decimals.
func denormalize(amount *big.Int, decimals uint8) *big.Int {
	if decimals == normalizedDecimals {
		return new(big.Int).Set(amount)
	}
	if decimals < normalizedDecimals {
		return new(big.Int).Quo(amount, pow10(normalizedDecimals-decimals))
	}
	return new(big.Int).Mul(amount, pow10(decimals-normalizedDecimals))
}

// mulDiv returns a*b/den without intermediate overflow concerns.
func mulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}
