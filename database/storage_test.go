package database

import (
	"errors"
	"io"
	"path/filepath"
	"stocktimus/interfaces"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	storage, err := NewLocalStorage(filepath.Join(t.TempDir(), "nested", "test.db"), logger)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func sampleContract(ticker string) *interfaces.SavedContract {
	delta := 0.5
	return &interfaces.SavedContract{
		Label:                  "sample",
		Ticker:                 ticker,
		OptionType:             interfaces.OptionTypeCall,
		Strike:                 150,
		Expiration:             time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		InitialDaysToGain:      45,
		NumberOfContracts:      2,
		AverageCostPerContract: 8.2,
		InitialPremium:         8.2,
		CurrentPremium:         8.2,
		InitialEquity:          1640,
		CurrentEquity:          1640,
		IsActive:               true,
		LastResetDate:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		LatestSimulation: []interfaces.ScenarioResult{{
			Ticker:        ticker,
			ScenarioLabel: "±5%",
			Delta:         interfaces.NewGreek(&delta),
		}},
	}
}

func TestContractRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	c := sampleContract("AAPL")
	if err := s.SaveContract(c); err != nil {
		t.Fatalf("SaveContract: %v", err)
	}
	if c.ID == 0 || c.CreatedAt.IsZero() {
		t.Fatalf("expected ID and CreatedAt, got %d %v", c.ID, c.CreatedAt)
	}

	got, err := s.GetContract(c.ID)
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}
	if got.Ticker != "AAPL" || got.Strike != 150 || got.NumberOfContracts != 2 || got.InitialEquity != 1640 {
		t.Errorf("unexpected contract %+v", got)
	}
	if !got.Expiration.Equal(c.Expiration) {
		t.Errorf("expiration: got %v, want %v", got.Expiration, c.Expiration)
	}
	if len(got.LatestSimulation) != 1 || got.LatestSimulation[0].ScenarioLabel != "±5%" {
		t.Fatalf("simulation: %+v", got.LatestSimulation)
	}
	if d := got.LatestSimulation[0].Delta; !d.Valid || d.Value != 0.5 {
		t.Errorf("delta: %+v", d)
	}
	if got.LatestSimulation[0].Gamma.Valid {
		t.Errorf("gamma should stay NA")
	}

	got.CurrentPremium = 9.5
	if err := s.SaveContract(got); err != nil {
		t.Fatalf("SaveContract update: %v", err)
	}
	updated, err := s.GetContract(c.ID)
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}
	if updated.CurrentPremium != 9.5 || updated.InitialPremium != 8.2 {
		t.Errorf("update: current %v initial %v", updated.CurrentPremium, updated.InitialPremium)
	}
	if !updated.CreatedAt.Equal(c.CreatedAt) {
		t.Errorf("created_at changed on update")
	}
}

func TestGetContractsAndList(t *testing.T) {
	s := newTestStorage(t)

	var ids []uint
	for _, ticker := range []string{"AAPL", "MSFT", "SPY"} {
		c := sampleContract(ticker)
		if err := s.SaveContract(c); err != nil {
			t.Fatalf("SaveContract: %v", err)
		}
		ids = append(ids, c.ID)
	}

	got, err := s.GetContracts([]uint{ids[2], ids[0], 999})
	if err != nil {
		t.Fatalf("GetContracts: %v", err)
	}
	if len(got) != 2 || got[0].Ticker != "AAPL" || got[1].Ticker != "SPY" {
		t.Errorf("GetContracts: %+v", got)
	}

	none, err := s.GetContracts(nil)
	if err != nil || len(none) != 0 {
		t.Errorf("GetContracts(nil): %v %v", none, err)
	}

	all, err := s.ListContracts()
	if err != nil {
		t.Fatalf("ListContracts: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListContracts: got %d, want 3", len(all))
	}
}

func TestNotFound(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.GetContract(42); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("GetContract: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteContract(42); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("DeleteContract: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetGroup(42); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("GetGroup: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteGroup(42); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("DeleteGroup: expected ErrNotFound, got %v", err)
	}
	if err := s.AssignContracts(42, []uint{1}, false); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("AssignContracts: expected ErrNotFound, got %v", err)
	}
}

func TestGroupMembership(t *testing.T) {
	s := newTestStorage(t)

	a, b := sampleContract("AAPL"), sampleContract("MSFT")
	for _, c := range []*interfaces.SavedContract{a, b} {
		if err := s.SaveContract(c); err != nil {
			t.Fatalf("SaveContract: %v", err)
		}
	}

	group := &interfaces.WatchlistGroup{Name: "Tech"}
	if err := s.SaveGroup(group); err != nil {
		t.Fatalf("SaveGroup: %v", err)
	}
	if group.ID == 0 {
		t.Fatal("expected group ID")
	}

	if err := s.AssignContracts(group.ID, []uint{a.ID}, false); err != nil {
		t.Fatalf("AssignContracts: %v", err)
	}
	if err := s.AssignContracts(group.ID, []uint{b.ID, a.ID}, false); err != nil {
		t.Fatalf("AssignContracts append: %v", err)
	}
	assertMembers(t, s, group.ID, a.ID, b.ID)

	if err := s.AssignContracts(group.ID, []uint{b.ID}, true); err != nil {
		t.Fatalf("AssignContracts replace: %v", err)
	}
	assertMembers(t, s, group.ID, b.ID)

	if err := s.RemoveContractFromGroup(group.ID, b.ID); err != nil {
		t.Fatalf("RemoveContractFromGroup: %v", err)
	}
	assertMembers(t, s, group.ID)

	if err := s.AssignContracts(group.ID, []uint{a.ID, b.ID}, false); err != nil {
		t.Fatalf("AssignContracts: %v", err)
	}
	if err := s.DeleteContract(a.ID); err != nil {
		t.Fatalf("DeleteContract: %v", err)
	}
	assertMembers(t, s, group.ID, b.ID)

	group.Name = "Megacaps"
	if err := s.SaveGroup(group); err != nil {
		t.Fatalf("SaveGroup rename: %v", err)
	}
	groups, err := s.ListGroups()
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "Megacaps" || len(groups[0].ContractIDs) != 1 {
		t.Errorf("ListGroups: %+v", groups)
	}

	if err := s.DeleteGroup(group.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if _, err := s.GetContract(b.ID); err != nil {
		t.Errorf("contract should survive group deletion: %v", err)
	}
}

func assertMembers(t *testing.T, s *LocalStorage, groupID uint, want ...uint) {
	t.Helper()

	group, err := s.GetGroup(groupID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	have := make(map[uint]bool, len(group.ContractIDs))
	for _, id := range group.ContractIDs {
		have[id] = true
	}
	if len(have) != len(want) {
		t.Fatalf("members: got %v, want %v", group.ContractIDs, want)
	}
	for _, id := range want {
		if !have[id] {
			t.Errorf("members: got %v, want %v", group.ContractIDs, want)
		}
	}
}

func TestScreenerParamsLifecycle(t *testing.T) {
	s := newTestStorage(t)

	first := &interfaces.SavedScreenerParams{
		Label:               "breakout",
		Tickers:             []string{"AAPL", "MSFT"},
		OptionType:          interfaces.OptionTypeCall,
		DaysUntilExpiration: 90,
		StrikePct:           0.2,
		DaysToGain:          30,
		StockGainPct:        0.1,
		Allocation:          1000,
	}
	second := &interfaces.SavedScreenerParams{
		Label:               "hedge",
		Tickers:             []string{"SPY"},
		OptionType:          interfaces.OptionTypePut,
		DaysUntilExpiration: 45,
		StrikePct:           -0.05,
		DaysToGain:          10,
		StockGainPct:        -0.08,
	}
	for _, p := range []*interfaces.SavedScreenerParams{first, second} {
		if err := s.SaveScreenerParams(p); err != nil {
			t.Fatalf("SaveScreenerParams: %v", err)
		}
		if p.ID == 0 || p.CreatedAt.IsZero() {
			t.Fatalf("expected ID and CreatedAt to be set: %+v", p)
		}
	}

	listed, err := s.ListScreenerParams()
	if err != nil {
		t.Fatalf("ListScreenerParams: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != second.ID || listed[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", listed)
	}
	got := listed[1]
	if got.Label != "breakout" || len(got.Tickers) != 2 || got.Tickers[1] != "MSFT" ||
		got.OptionType != interfaces.OptionTypeCall || got.DaysUntilExpiration != 90 ||
		got.StrikePct != 0.2 || got.DaysToGain != 30 || got.StockGainPct != 0.1 || got.Allocation != 1000 {
		t.Errorf("unexpected round trip %+v", got)
	}

	if err := s.DeleteScreenerParams(first.ID); err != nil {
		t.Fatalf("DeleteScreenerParams: %v", err)
	}
	if err := s.DeleteScreenerParams(first.ID); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
	if listed, _ := s.ListScreenerParams(); len(listed) != 1 || listed[0].Label != "hedge" {
		t.Errorf("after delete: %+v", listed)
	}
}
