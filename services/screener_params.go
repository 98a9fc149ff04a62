package services

import (
	"fmt"
	"stocktimus/interfaces"
	"strings"

	"github.com/sirupsen/logrus"
)

// SaveScreenerParams validates a screener parameter set and stores it for
// reuse. Unlike a screening run, nothing falls back to a default: every
// field but allocation is required.
func (wm *WatchlistManager) SaveScreenerParams(params interfaces.ScreenerParams) (*interfaces.SavedScreenerParams, error) {
	saved, err := savedScreenerParams(params)
	if err != nil {
		return nil, err
	}
	if err := wm.storage.SaveScreenerParams(saved); err != nil {
		return nil, err
	}

	wm.logger.WithFields(logrus.Fields{
		"id":      saved.ID,
		"label":   saved.Label,
		"tickers": len(saved.Tickers),
	}).Info("Screener parameters saved")
	return saved, nil
}

// ListScreenerParams returns the saved screener parameter sets, newest first
func (wm *WatchlistManager) ListScreenerParams() ([]*interfaces.SavedScreenerParams, error) {
	return wm.storage.ListScreenerParams()
}

// DeleteScreenerParams removes a saved screener parameter set
func (wm *WatchlistManager) DeleteScreenerParams(id uint) error {
	return wm.storage.DeleteScreenerParams(id)
}

func savedScreenerParams(params interfaces.ScreenerParams) (*interfaces.SavedScreenerParams, error) {
	saved := &interfaces.SavedScreenerParams{
		Label:   strings.TrimSpace(params.Label),
		Tickers: []string{},
	}
	if saved.Label == "" {
		return nil, fmt.Errorf("%w: label required", ErrInvalidInput)
	}

	for _, t := range params.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			saved.Tickers = append(saved.Tickers, t)
		}
	}
	if len(saved.Tickers) == 0 {
		return nil, fmt.Errorf("%w: at least one ticker required", ErrInvalidInput)
	}

	optionType, err := interfaces.ParseOptionType(params.OptionType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	saved.OptionType = optionType

	var ok bool
	if saved.DaysUntilExpiration = positiveIntOr(params.DaysUntilExpiration, 0); saved.DaysUntilExpiration == 0 {
		return nil, fmt.Errorf("%w: days_until_exp must be a positive whole number", ErrInvalidInput)
	}
	if saved.DaysToGain = positiveIntOr(params.DaysToGain, 0); saved.DaysToGain == 0 {
		return nil, fmt.Errorf("%w: days_to_gain must be a positive whole number", ErrInvalidInput)
	}
	if saved.StrikePct, ok = parseFloat(params.StrikePct); !ok {
		return nil, fmt.Errorf("%w: invalid strike_pct %q", ErrInvalidInput, params.StrikePct)
	}
	if saved.StockGainPct, ok = parseFloat(params.StockGainPct); !ok {
		return nil, fmt.Errorf("%w: invalid stock_gain_pct %q", ErrInvalidInput, params.StockGainPct)
	}
	if strings.TrimSpace(string(params.Allocation)) != "" {
		if saved.Allocation, ok = parseFloat(params.Allocation); !ok || saved.Allocation < 0 {
			return nil, fmt.Errorf("%w: invalid allocation %q", ErrInvalidInput, params.Allocation)
		}
	}
	return saved, nil
}
