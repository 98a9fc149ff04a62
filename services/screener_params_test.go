package services

import (
	"errors"
	"slices"
	"stocktimus/interfaces"
	"testing"
)

func breakoutParams() interfaces.ScreenerParams {
	return interfaces.ScreenerParams{
		Label:               " breakout ",
		Tickers:             []string{"aapl", " ", "msft "},
		OptionType:          "C",
		DaysUntilExpiration: "90",
		StrikePct:           "0.2",
		DaysToGain:          "30.0",
		StockGainPct:        "-0.1",
		Allocation:          "1000",
	}
}

func TestScreenerParamsLifecycle(t *testing.T) {
	f := newManagerFixture(t)

	saved, err := f.manager.SaveScreenerParams(breakoutParams())
	if err != nil {
		t.Fatalf("SaveScreenerParams: %v", err)
	}
	if saved.ID == 0 || saved.Label != "breakout" || !slices.Equal(saved.Tickers, []string{"AAPL", "MSFT"}) {
		t.Errorf("unexpected saved params %+v", saved)
	}
	if saved.OptionType != interfaces.OptionTypeCall || saved.DaysUntilExpiration != 90 || saved.DaysToGain != 30 ||
		saved.StrikePct != 0.2 || saved.StockGainPct != -0.1 || saved.Allocation != 1000 {
		t.Errorf("unexpected coercion %+v", saved)
	}

	noAllocation := breakoutParams()
	noAllocation.Label = "no allocation"
	noAllocation.Allocation = ""
	second, err := f.manager.SaveScreenerParams(noAllocation)
	if err != nil {
		t.Fatalf("SaveScreenerParams: %v", err)
	}
	if second.Allocation != 0 {
		t.Errorf("allocation: got %v", second.Allocation)
	}

	listed, err := f.manager.ListScreenerParams()
	if err != nil {
		t.Fatalf("ListScreenerParams: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != second.ID {
		t.Fatalf("unexpected list %+v", listed)
	}

	if err := f.manager.DeleteScreenerParams(saved.ID); err != nil {
		t.Fatalf("DeleteScreenerParams: %v", err)
	}
	if err := f.manager.DeleteScreenerParams(saved.ID); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveScreenerParamsValidation(t *testing.T) {
	f := newManagerFixture(t)

	tests := []struct {
		name   string
		mutate func(p *interfaces.ScreenerParams)
	}{
		{"missing label", func(p *interfaces.ScreenerParams) { p.Label = "  " }},
		{"no tickers", func(p *interfaces.ScreenerParams) { p.Tickers = []string{"", " "} }},
		{"unknown option type", func(p *interfaces.ScreenerParams) { p.OptionType = "straddle" }},
		{"missing option type", func(p *interfaces.ScreenerParams) { p.OptionType = "" }},
		{"fractional expiration days", func(p *interfaces.ScreenerParams) { p.DaysUntilExpiration = "2.5" }},
		{"zero days to gain", func(p *interfaces.ScreenerParams) { p.DaysToGain = "0" }},
		{"overflowing days to gain", func(p *interfaces.ScreenerParams) { p.DaysToGain = "9223372036854775808" }},
		{"garbled strike pct", func(p *interfaces.ScreenerParams) { p.StrikePct = "abc" }},
		{"non-finite stock gain", func(p *interfaces.ScreenerParams) { p.StockGainPct = "1e400" }},
		{"negative allocation", func(p *interfaces.ScreenerParams) { p.Allocation = "-5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := breakoutParams()
			tt.mutate(&params)
			if _, err := f.manager.SaveScreenerParams(params); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if listed, _ := f.manager.ListScreenerParams(); len(listed) != 0 {
		t.Errorf("rejected params were stored: %+v", listed)
	}
}
