package scenario

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, time.March, 5)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-03-05"` {
		t.Fatalf("marshal = %s", b)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip = %v, want %v", back, d)
	}
	if err := json.Unmarshal([]byte(`"03/05/2024"`), &back); err == nil {
		t.Fatal("expected error for non ISO date")
	}
	if err := json.Unmarshal([]byte(`20240305`), &back); err == nil {
		t.Fatal("expected error for unquoted literal")
	}
}

func TestMovementScenarioValidate(t *testing.T) {
	valid := MovementScenario{
		ScenarioID:        "sockeye",
		Dates:             []Date{NewDate(2024, time.June, 1)},
		MaximumWindowSize: 14,
		GridSize:          100,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid scenario rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*MovementScenario)
	}{
		{"missing id", func(s *MovementScenario) { s.ScenarioID = "" }},
		{"zero grid", func(s *MovementScenario) { s.GridSize = 0 }},
		{"zero window", func(s *MovementScenario) { s.MaximumWindowSize = 0 }},
		{"no dates", func(s *MovementScenario) { s.Dates = nil }},
	}
	for _, tc := range cases {
		s := valid
		tc.mutate(&s)
		if err := s.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestAvailableRangeSpansHabitatDatesPlusWindow(t *testing.T) {
	s := MovementScenario{
		ScenarioID:        "sockeye",
		Dates:             []Date{NewDate(2024, time.June, 10), NewDate(2024, time.June, 1)},
		MaximumWindowSize: 7,
		GridSize:          100,
	}
	earliest, latest := s.AvailableRange()
	if got := earliest.Format("2006-01-02"); got != "2024-05-25" {
		t.Fatalf("earliest = %s, want 2024-05-25", got)
	}
	if got := latest.Format("2006-01-02"); got != "2024-06-17" {
		t.Fatalf("latest = %s, want 2024-06-17", got)
	}
}

func TestDepthScenarioValidate(t *testing.T) {
	valid := DepthScenario{
		ScenarioID: "halibut",
		TimeWindow: []Date{NewDate(2024, time.January, 1), NewDate(2024, time.December, 31)},
		GridSize:   250,
		DepthBins:  []int{0, 25, 50},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid scenario rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*DepthScenario)
	}{
		{"missing id", func(s *DepthScenario) { s.ScenarioID = "" }},
		{"zero grid", func(s *DepthScenario) { s.GridSize = 0 }},
		{"window wrong arity", func(s *DepthScenario) { s.TimeWindow = s.TimeWindow[:1] }},
		{"window inverted", func(s *DepthScenario) {
			s.TimeWindow = []Date{NewDate(2024, time.December, 31), NewDate(2024, time.January, 1)}
		}},
		{"no bins", func(s *DepthScenario) { s.DepthBins = nil }},
	}
	for _, tc := range cases {
		s := valid
		tc.mutate(&s)
		if err := s.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestHasDepthBin(t *testing.T) {
	s := DepthScenario{DepthBins: []int{0, 25, 50}}
	if !s.HasDepthBin(25) {
		t.Fatal("expected bin 25")
	}
	if s.HasDepthBin(75) {
		t.Fatal("unexpected bin 75")
	}
}
