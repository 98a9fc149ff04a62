package services

import (
	"math"
	"stocktimus/interfaces"
	"testing"
)

func TestBlackScholesReferenceValues(t *testing.T) {
	call := BlackScholesPrice(interfaces.OptionTypeCall, 100, 100, 1, 0.05, 0.2)
	if math.Abs(call-10.4506) > 1e-3 {
		t.Errorf("call: got %.4f, want 10.4506", call)
	}

	put := BlackScholesPrice(interfaces.OptionTypePut, 100, 100, 1, 0.05, 0.2)
	if math.Abs(put-5.5735) > 1e-3 {
		t.Errorf("put: got %.4f, want 5.5735", put)
	}

	// Put-call parity: C - P = S - K e^{-rT}
	parity := call - put - (100 - 100*math.Exp(-0.05))
	if math.Abs(parity) > 1e-9 {
		t.Errorf("put-call parity off by %g", parity)
	}
}

func TestBlackScholesIntrinsicFallback(t *testing.T) {
	tests := []struct {
		name          string
		kind          interfaces.OptionType
		S, K, T, r, v float64
		want          float64
	}{
		{"expired call ITM", interfaces.OptionTypeCall, 120, 100, 0, 0.05, 0.3, 20},
		{"expired call OTM", interfaces.OptionTypeCall, 80, 100, 0, 0.05, 0.3, 0},
		{"expired put ITM", interfaces.OptionTypePut, 80, 100, 0, 0.05, 0.3, 20},
		{"negative time", interfaces.OptionTypePut, 120, 100, -1, 0.05, 0.3, 0},
		{"zero vol", interfaces.OptionTypeCall, 120, 100, 1, 0.05, 0, 20},
		{"zero spot call", interfaces.OptionTypeCall, 0, 100, 1, 0.05, 0.3, 0},
		{"zero spot put", interfaces.OptionTypePut, 0, 100, 1, 0.05, 0.3, 100},
		{"negative spot", interfaces.OptionTypeCall, -155, 150, 1, 0.05, 0.3, 0},
		{"zero strike", interfaces.OptionTypeCall, 50, 0, 1, 0.05, 0.3, 50},
		{"extreme moneyness", interfaces.OptionTypeCall, 1e6, 1, 1, 0.05, 0.3, 1e6 - 1},
		{"extreme moneyness put", interfaces.OptionTypePut, 0.001, 10, 1, 0.05, 0.3, 10 - 0.001},
		{"NaN vol", interfaces.OptionTypeCall, 120, 100, 1, 0.05, math.NaN(), 20},
		{"Inf time", interfaces.OptionTypeCall, 120, 100, math.Inf(1), 0.05, 0.3, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BlackScholesPrice(tt.kind, tt.S, tt.K, tt.T, tt.r, tt.v)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlackScholesFiniteAndNonNegative(t *testing.T) {
	spots := []float64{0.01, 1, 50, 99.99, 100, 150, 1000, 99999}
	strikes := []float64{0.5, 10, 100, 150, 5000}
	times := []float64{0.0001, 0.01, 0.5, 1, 10}
	vols := []float64{0.01, 0.3, 1, 5}

	for _, kind := range []interfaces.OptionType{interfaces.OptionTypeCall, interfaces.OptionTypePut} {
		for _, S := range spots {
			for _, K := range strikes {
				for _, T := range times {
					for _, v := range vols {
						p := BlackScholesPrice(kind, S, K, T, 0.05, v)
						if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
							t.Fatalf("%s S=%v K=%v T=%v v=%v: got %v", kind, S, K, T, v, p)
						}
					}
				}
			}
		}
	}
}

func TestBlackScholesMonotoneInSpot(t *testing.T) {
	prevCall, prevPut := -1.0, math.Inf(1)
	for S := 10.0; S <= 400; S += 2.5 {
		call := BlackScholesPrice(interfaces.OptionTypeCall, S, 150, 0.25, 0.05, 0.28)
		put := BlackScholesPrice(interfaces.OptionTypePut, S, 150, 0.25, 0.05, 0.28)
		if call < prevCall-1e-12 {
			t.Fatalf("call decreased at S=%v: %v < %v", S, call, prevCall)
		}
		if put > prevPut+1e-12 {
			t.Fatalf("put increased at S=%v: %v > %v", S, put, prevPut)
		}
		prevCall, prevPut = call, put
	}
}

func TestPercentChangeRoundTrip(t *testing.T) {
	p := BlackScholesPrice(interfaces.OptionTypeCall, 155, 150, 0.25, 0.05, 0.28)
	again := BlackScholesPrice(interfaces.OptionTypeCall, 155, 150, 0.25, 0.05, 0.28)
	if got := interfaces.PercentChange(p, again); got != 0 {
		t.Errorf("unchanged spot: got %v%%, want 0", got)
	}
	if got := interfaces.PercentChange(0, p); got != 0 {
		t.Errorf("zero base: got %v, want 0", got)
	}
}
