package services

import (
	"io"
	"stocktimus/interfaces"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

var testNow = time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() SimulatorConfig {
	cfg := DefaultSimulatorConfig()
	cfg.Now = fixedClock
	return cfg
}

func fptr(v float64) *float64 { return &v }

func iptr(v int64) *int64 { return &v }

func date(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// aaplGateway serves the AAPL 150 call used across the simulator tests
func aaplGateway() *StaticGateway {
	g := NewStaticGateway()
	g.SetPrice("AAPL", 155)
	g.AddContract(interfaces.OptionQuote{
		Symbol:            "AAPL250401C00150000",
		Underlying:        "AAPL",
		Type:              interfaces.OptionTypeCall,
		Strike:            150,
		Expiration:        date("2025-04-01"),
		Last:              fptr(8.20),
		Bid:               fptr(8.10),
		Ask:               fptr(8.30),
		Volume:            iptr(1200),
		OpenInterest:      iptr(5400),
		ImpliedVolatility: fptr(0.28),
		Greeks: interfaces.Greeks{
			Delta: fptr(0.61234),
			Theta: fptr(-0.05),
		},
	})
	return g
}

func aaplSpec() interfaces.ContractSpec {
	return interfaces.ContractSpec{
		Ticker:     "AAPL",
		OptionType: interfaces.OptionTypeCall,
		Strike:     "150",
		Expiration: "2025-04-01",
	}
}

func mustFloat(t *testing.T, name string, v *float64) float64 {
	t.Helper()
	if v == nil {
		t.Fatalf("%s: got nil", name)
	}
	return *v
}
