package services

import (
	"stocktimus/interfaces"
	"strings"

	"github.com/shopspring/decimal"
)

// strikeScale keeps strikes at 1/10000 of a dollar
const strikeScale = 4

// ContractKey identifies a contract independent of how its fields were
// formatted by the caller: "150", "150.0" and 150 give the same key.
type ContractKey struct {
	Ticker     string
	Type       interfaces.OptionType
	StrikeTick int64
	Expiration string
}

// NewContractKey builds the key from already-parsed fields.
// A non-finite strike gets tick 0.
func NewContractKey(ticker string, optionType interfaces.OptionType, strike float64, expiration string) ContractKey {
	key := ContractKey{
		Ticker:     strings.ToUpper(strings.TrimSpace(ticker)),
		Type:       normalizeType(optionType),
		Expiration: normalizeDate(expiration),
	}
	if isFinite(strike) {
		key.StrikeTick = decimal.NewFromFloat(strike).Shift(strikeScale).Round(0).IntPart()
	}
	return key
}

// KeyForSpec builds the key for a caller-supplied contract. ok is false
// when the strike does not parse.
func KeyForSpec(spec interfaces.ContractSpec) (ContractKey, bool) {
	strike, ok := parseDecimal(spec.Strike)
	if !ok || !isFinite(strike.InexactFloat64()) {
		return ContractKey{}, false
	}
	return ContractKey{
		Ticker:     strings.ToUpper(strings.TrimSpace(spec.Ticker)),
		Type:       normalizeType(spec.OptionType),
		StrikeTick: strike.Shift(strikeScale).Round(0).IntPart(),
		Expiration: normalizeDate(spec.Expiration),
	}, true
}

// KeyForResult builds the key a result row was produced for
func KeyForResult(row interfaces.ScenarioResult) ContractKey {
	return NewContractKey(row.Ticker, row.OptionType, row.Strike, row.Expiration)
}

func normalizeType(t interfaces.OptionType) interfaces.OptionType {
	if parsed, err := interfaces.ParseOptionType(string(t)); err == nil {
		return parsed
	}
	return interfaces.OptionType(strings.ToLower(strings.TrimSpace(string(t))))
}

func normalizeDate(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format(dateLayout)
	}
	return strings.TrimSpace(s)
}
