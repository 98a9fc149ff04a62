package services

import (
	"math"
	"stocktimus/interfaces"

	"gonum.org/v1/gonum/stat/distuv"
)

// maxMoneyness bounds S/K and K/S before the closed form is abandoned
const maxMoneyness = 1000

// BlackScholesPrice prices a European option. It never returns NaN, Inf or a
// negative value: degenerate or numerically unstable inputs fall back to the
// intrinsic value.
func BlackScholesPrice(kind interfaces.OptionType, S, K, T, r, sigma float64) float64 {
	intrinsic := IntrinsicValue(kind, S, K)

	if !(T > 0) || !(sigma > 0) || !(S > 0) || !(K > 0) || !isFinite(r) || !isFinite(T) || !isFinite(sigma) {
		return intrinsic
	}
	if S/K > maxMoneyness || K/S > maxMoneyness {
		return intrinsic
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	if !isFinite(d1) || !isFinite(d2) {
		return intrinsic
	}

	discount := K * math.Exp(-r*T)
	var price float64
	if kind == interfaces.OptionTypePut {
		price = discount*distuv.UnitNormal.CDF(-d2) - S*distuv.UnitNormal.CDF(-d1)
	} else {
		price = S*distuv.UnitNormal.CDF(d1) - discount*distuv.UnitNormal.CDF(d2)
	}

	if !isFinite(price) || price < 0 {
		return intrinsic
	}
	return price
}

// IntrinsicValue is the exercise value: max(S-K, 0) for calls, max(K-S, 0) for puts
func IntrinsicValue(kind interfaces.OptionType, S, K float64) float64 {
	var v float64
	if kind == interfaces.OptionTypePut {
		v = K - S
	} else {
		v = S - K
	}
	if !(v > 0) {
		return 0
	}
	return v
}
